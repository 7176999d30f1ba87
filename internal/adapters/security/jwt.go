package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/communityforge/door-access-service/internal/domain"
	"github.com/communityforge/door-access-service/internal/ports"
)

// MemberTokenVerifier validates RS256 bearer tokens issued by the membership
// system. Only the public key lives here; this service never issues member
// tokens.
type MemberTokenVerifier struct {
	publicKey *rsa.PublicKey
}

// NewMemberTokenVerifier builds a verifier from the membership system's
// public key PEM.
func NewMemberTokenVerifier(publicKeyPEM string) (*MemberTokenVerifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("member token public key is required")
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse member token public key: %w", err)
	}
	return &MemberTokenVerifier{publicKey: pub}, nil
}

type memberJWTClaims struct {
	MemberID  int64   `json:"member_id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Groups    []int64 `json:"groups"`
	jwt.RegisteredClaims
}

func (v *MemberTokenVerifier) Verify(_ context.Context, raw string) (ports.MemberClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &memberJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return ports.MemberClaims{}, fmt.Errorf("%w: %s", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*memberJWTClaims)
	if !ok || !parsed.Valid {
		return ports.MemberClaims{}, domain.ErrUnauthorized
	}
	if claims.MemberID <= 0 {
		return ports.MemberClaims{}, fmt.Errorf("%w: missing member_id claim", domain.ErrUnauthorized)
	}

	out := ports.MemberClaims{
		MemberID:  claims.MemberID,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Email:     claims.Email,
		Groups:    claims.Groups,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return out, nil
}

// MemberTokenIssuer signs member tokens with the paired private key. In
// production the membership system owns issuance; the issuer exists for
// local development and tests.
type MemberTokenIssuer struct {
	privateKey *rsa.PrivateKey
}

func NewMemberTokenIssuer(privateKeyPEM string) (*MemberTokenIssuer, error) {
	if privateKeyPEM == "" {
		return nil, errors.New("member token private key is required")
	}
	priv, err := parseRSAPrivate(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse member token private key: %w", err)
	}
	return &MemberTokenIssuer{privateKey: priv}, nil
}

// NewEphemeralMemberKeypair creates an in-memory keypair and returns a
// matched issuer and verifier. Dev-only startup path.
func NewEphemeralMemberKeypair() (*MemberTokenIssuer, *MemberTokenVerifier, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	return &MemberTokenIssuer{privateKey: privateKey},
		&MemberTokenVerifier{publicKey: &privateKey.PublicKey},
		nil
}

func (i *MemberTokenIssuer) Sign(claims ports.MemberClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, memberJWTClaims{
		MemberID:  claims.MemberID,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Email:     claims.Email,
		Groups:    claims.Groups,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	return token.SignedString(i.privateKey)
}

func parseRSAPrivate(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid private PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
