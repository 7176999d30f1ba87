package domain

import "time"

// JobStatus is the closed lifecycle state set for a door job.
// Transitions only move forward: pending -> dispatched -> {executed,failed},
// or pending/dispatched -> expired. Terminal states are never left.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobDispatched JobStatus = "dispatched"
	JobExecuted   JobStatus = "executed"
	JobFailed     JobStatus = "failed"
	JobExpired    JobStatus = "expired"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobExecuted, JobFailed, JobExpired:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving to next respects the one-way
// lifecycle. Used to guard repository fakes and sanity checks; the real
// store enforces the same rule through status-guarded conditional updates.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobDispatched || next == JobExpired
	case JobDispatched:
		return next == JobExecuted || next == JobFailed || next == JobExpired
	default:
		return false
	}
}

// DoorJob is one door-open request's full lifecycle record.
// DispatchToDeviceID, Nonce and DispatchedAt stay zero while pending and are
// set exactly once when a device claims the job.
type DoorJob struct {
	ID                  int64
	Area                string
	Status              JobStatus
	RequestedByMemberID int64
	RequestIP           string
	UserAgent           string
	CreatedAt           time.Time
	ExpiresAt           time.Time // pending-claim deadline; zero means no pending expiry
	DispatchToDeviceID  string
	DispatchedAt        time.Time
	Nonce               string
	Attempts            int
	ExecutedAt          *time.Time
	ResultCode          string
	ResultMessage       string
}

// ActiveAt reports whether the job still occupies the member+area slot:
// pending and not past its claim deadline, or dispatched and still inside
// the confirm window anchored at DispatchedAt.
func (j DoorJob) ActiveAt(now time.Time, confirmWindow time.Duration) bool {
	switch j.Status {
	case JobPending:
		return j.ExpiresAt.IsZero() || !j.ExpiresAt.Before(now)
	case JobDispatched:
		return !j.DispatchedAt.Before(now.Add(-confirmWindow))
	default:
		return false
	}
}
