package ports

import (
	"context"
	"time"
)

// MemberClaims is the member identity asserted by the membership system's
// bearer token. Groups carries the membership group ids the area-grant map
// is evaluated against.
type MemberClaims struct {
	MemberID  int64
	FirstName string
	LastName  string
	Email     string
	Groups    []int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// MemberTokenVerifier validates membership-system bearer tokens.
// Token issuance is owned by the membership system, not this service.
type MemberTokenVerifier interface {
	Verify(ctx context.Context, raw string) (MemberClaims, error)
}
