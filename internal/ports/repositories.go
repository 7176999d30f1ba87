package ports

import (
	"context"
	"time"

	"github.com/communityforge/door-access-service/internal/domain"
)

// InsertJobParams captures the immutable provenance of a new pending job.
// Request metadata is stored for auditability; truncation to storage bounds
// happens in the application layer before insertion.
type InsertJobParams struct {
	Area      string
	MemberID  int64
	RequestIP string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// JobRepository is the single durable source of truth for door jobs. Every
// state-changing method is a conditional update guarded on the current
// status; the returned ok/count is the only authority on who won a race.
type JobRepository interface {
	// Insert creates a pending job. It returns domain.ErrConflict when the
	// active-slot unique constraint rejects a concurrent duplicate, in which
	// case the caller re-reads the winning row.
	Insert(ctx context.Context, params InsertJobParams) (domain.DoorJob, error)
	GetByID(ctx context.Context, id int64) (domain.DoorJob, error)
	// FindActive returns the newest job for member+area that is still
	// pending (not past its deadline at now) or dispatched at/after
	// dispatchedAfter, or nil when no such job exists.
	FindActive(ctx context.Context, memberID int64, area string, now, dispatchedAfter time.Time) (*domain.DoorJob, error)
	// ListClaimable returns up to limit pending, unexpired jobs for the
	// given areas, oldest first. The listing is advisory; Claim decides.
	ListClaimable(ctx context.Context, areas []string, now time.Time, limit int) ([]domain.DoorJob, error)
	// Claim atomically moves one pending job to dispatched for deviceID with
	// a fresh nonce. ok=false means another device (or a sweep) won.
	Claim(ctx context.Context, jobID int64, deviceID, nonce string, now time.Time) (domain.DoorJob, bool, error)
	// Finalize moves a dispatched job to executed or failed, guarded on the
	// stored device+nonce identity. ok=false means the guard did not match.
	Finalize(ctx context.Context, jobID int64, deviceID, nonce string, status domain.JobStatus, executedAt time.Time, resultCode, resultMessage string) (bool, error)
	// ExpireDispatched expires a single dispatched job whose confirm arrived
	// too late. ok=false means the job already left dispatched.
	ExpireDispatched(ctx context.Context, jobID int64, at time.Time) (bool, error)
	// ExpirePendingBefore sweeps pending jobs whose deadline passed.
	ExpirePendingBefore(ctx context.Context, now time.Time) (int64, error)
	// ExpireDispatchedBefore sweeps dispatched jobs claimed before cutoff.
	ExpireDispatchedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeviceRepository resolves and tracks registered door controllers.
// Provisioning (creating devices, minting tokens) happens outside this
// service; the repository is read-plus-heartbeat only.
type DeviceRepository interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (domain.Device, error)
	TouchSeen(ctx context.Context, deviceID string, seenAt time.Time, ip string) error
}

// DoorLogRepository appends audit records. Writes are best-effort from the
// caller's perspective; the log never gates the job lifecycle.
type DoorLogRepository interface {
	Insert(ctx context.Context, entry domain.DoorLogEntry) error
}
