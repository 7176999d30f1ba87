package application

import (
	"time"

	"github.com/communityforge/door-access-service/internal/domain"
)

// CreateOpenJobRequest carries one member door-open attempt with its
// transport provenance.
type CreateOpenJobRequest struct {
	MemberID  int64
	Area      string
	RequestIP string
	UserAgent string
}

// CreateOpenJobResult is the accepted outcome of a door-open request.
// Reused is true when an already-active job was returned instead of a new
// row. ExpiresAt is only meaningful for pending jobs.
type CreateOpenJobResult struct {
	JobID     int64
	Status    domain.JobStatus
	ExpiresAt time.Time
	Reused    bool
}

// DispatchRequest is a device's claim attempt for up to Limit jobs across
// its allowed areas.
type DispatchRequest struct {
	DeviceID string
	Areas    []string
	Limit    int
}

// DispatchedJob is the device-facing view of a freshly claimed job. Nonce is
// the capability the device must present back on confirm; ExpiresInMs is the
// remaining confirm-window budget.
type DispatchedJob struct {
	JobID       int64
	Area        string
	Nonce       string
	ExpiresInMs int64
}

// ConfirmRequest reports the outcome of a physical actuation attempt.
type ConfirmRequest struct {
	DeviceID string
	JobID    int64
	Nonce    string
	OK       bool
	Message  string
	Meta     map[string]any
}

// ConfirmReason classifies why a confirm was or was not accepted. Rejections
// are reported outcomes, never internal errors; the device decides whether
// to poll again.
type ConfirmReason string

const (
	ConfirmAccepted        ConfirmReason = "accepted"
	ConfirmNotFound        ConfirmReason = "not_found"
	ConfirmNotDispatchable ConfirmReason = "not_dispatchable"
	ConfirmForbidden       ConfirmReason = "forbidden"
	ConfirmTimeout         ConfirmReason = "confirm_timeout"
)

// ConfirmResult is the terminal outcome of one confirm call. Status reflects
// the job's state after the call when the job exists. MemberID identifies the
// member who requested the job, for audit trails.
type ConfirmResult struct {
	Accepted bool
	Status   domain.JobStatus
	Area     string
	MemberID int64
	Reason   ConfirmReason
}
