package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/communityforge/door-access-service/internal/domain"
	"github.com/communityforge/door-access-service/internal/ports"
)

const (
	resultCodeTimeout = "TIMEOUT"

	msgDoorJustOpened = "door was just opened"
	msgDoorInUse      = "door is currently in use"
)

func rateKey(memberID int64, area string) string {
	return fmt.Sprintf("door:rate:m%d:%s", memberID, area)
}

func memberLockKey(memberID int64, area string) string {
	return fmt.Sprintf("door:lock:member:m%d:%s", memberID, area)
}

func areaLockKey(area string) string {
	return fmt.Sprintf("door:lock:area:%s", area)
}

// CreateOpenJob runs the member-facing open flow: sweep stale jobs, enforce
// the per-(member,area) rate limit, honor the short member and area locks,
// reuse any still-active job for the same member and area, and only then
// insert a fresh pending job and arm both locks.
func (s *Service) CreateOpenJob(ctx context.Context, req CreateOpenJobRequest) (CreateOpenJobResult, error) {
	now := s.nowFn()

	if _, err := s.ExpireOldJobs(ctx); err != nil {
		return CreateOpenJobResult{}, fmt.Errorf("expire old jobs: %w", err)
	}

	count, retryAfter, err := s.rates.Increment(ctx, rateKey(req.MemberID, req.Area), s.cfg.RateWindow)
	if err != nil {
		return CreateOpenJobResult{}, fmt.Errorf("rate limit check: %w", err)
	}
	if count > int64(s.cfg.RateLimitPerWindow) {
		return CreateOpenJobResult{}, &domain.RetryAfterError{
			Reason:     domain.ErrRateLimited,
			RetryAfter: retryAfter,
			Message:    "too many open requests",
		}
	}

	memberKey := memberLockKey(req.MemberID, req.Area)
	areaKey := areaLockKey(req.Area)

	held, lockRetry, err := s.locks.Check(ctx, memberKey)
	if err != nil {
		return CreateOpenJobResult{}, fmt.Errorf("member lock check: %w", err)
	}
	if held {
		return CreateOpenJobResult{}, &domain.RetryAfterError{
			Reason:     domain.ErrDoorLocked,
			RetryAfter: lockRetry,
			Message:    msgDoorJustOpened,
		}
	}

	held, lockRetry, err = s.locks.Check(ctx, areaKey)
	if err != nil {
		return CreateOpenJobResult{}, fmt.Errorf("area lock check: %w", err)
	}
	if held {
		return CreateOpenJobResult{}, &domain.RetryAfterError{
			Reason:     domain.ErrDoorLocked,
			RetryAfter: lockRetry,
			Message:    msgDoorInUse,
		}
	}

	// Reuse an active job instead of stacking duplicates. Reuse does not
	// re-arm the locks: the member keeps its normal retry cadence.
	dispatchedAfter := now.Add(-s.cfg.ConfirmWindow)
	active, err := s.jobs.FindActive(ctx, req.MemberID, req.Area, now, dispatchedAfter)
	if err != nil {
		return CreateOpenJobResult{}, fmt.Errorf("find active job: %w", err)
	}
	if active != nil {
		return reusedJobResult(active), nil
	}

	job, err := s.insertJob(ctx, req, now, dispatchedAfter)
	if err != nil {
		return CreateOpenJobResult{}, err
	}
	if job.Reused {
		return job, nil
	}

	if err := s.locks.Acquire(ctx, memberKey, s.cfg.LockTTL); err != nil {
		return CreateOpenJobResult{}, fmt.Errorf("acquire member lock: %w", err)
	}
	if err := s.locks.Acquire(ctx, areaKey, s.cfg.LockTTL); err != nil {
		return CreateOpenJobResult{}, fmt.Errorf("acquire area lock: %w", err)
	}

	return job, nil
}

// insertJob inserts the pending row. A unique-violation means a concurrent
// request won the race for this member and area; the loser adopts the
// winner's job instead of failing.
func (s *Service) insertJob(ctx context.Context, req CreateOpenJobRequest, now, dispatchedAfter time.Time) (CreateOpenJobResult, error) {
	expiresAt := now.Add(s.cfg.PendingTTL)
	job, err := s.jobs.Insert(ctx, ports.InsertJobParams{
		Area:      req.Area,
		MemberID:  req.MemberID,
		RequestIP: truncate(req.RequestIP, 64),
		UserAgent: truncate(req.UserAgent, 255),
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err == nil {
		return CreateOpenJobResult{
			JobID:     job.ID,
			Status:    job.Status,
			ExpiresAt: job.ExpiresAt,
		}, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return CreateOpenJobResult{}, fmt.Errorf("insert job: %w", err)
	}

	active, ferr := s.jobs.FindActive(ctx, req.MemberID, req.Area, now, dispatchedAfter)
	if ferr != nil {
		return CreateOpenJobResult{}, fmt.Errorf("find job after conflict: %w", ferr)
	}
	if active == nil {
		// The winner finished or expired between the conflict and the
		// re-read. Surface the conflict; the client simply retries.
		return CreateOpenJobResult{}, fmt.Errorf("concurrent open request: %w", domain.ErrConflict)
	}
	return reusedJobResult(active), nil
}

// reusedJobResult adopts an existing active job. The pending deadline only
// applies while the job is still pending; a reused dispatched job carries
// no deadline.
func reusedJobResult(active *domain.DoorJob) CreateOpenJobResult {
	res := CreateOpenJobResult{
		JobID:  active.ID,
		Status: active.Status,
		Reused: true,
	}
	if active.Status == domain.JobPending {
		res.ExpiresAt = active.ExpiresAt
	}
	return res
}

// ExpireOldJobs sweeps overdue pending jobs and dispatched jobs whose
// confirmation window has lapsed. It returns the total rows transitioned.
func (s *Service) ExpireOldJobs(ctx context.Context) (int64, error) {
	now := s.nowFn()
	pending, err := s.jobs.ExpirePendingBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expire pending: %w", err)
	}
	dispatched, err := s.jobs.ExpireDispatchedBefore(ctx, now.Add(-s.cfg.ConfirmWindow))
	if err != nil {
		return pending, fmt.Errorf("expire dispatched: %w", err)
	}
	return pending + dispatched, nil
}

// DispatchJobs claims up to req.Limit pending jobs for the polling device,
// oldest first, restricted to the areas the device serves. Each claim is a
// conditional update; a job lost to a concurrent poller is skipped, never
// double-dispatched.
func (s *Service) DispatchJobs(ctx context.Context, req DispatchRequest) ([]DispatchedJob, error) {
	if _, err := s.ExpireOldJobs(ctx); err != nil {
		return nil, fmt.Errorf("expire old jobs: %w", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DispatchDefaultLimit
	}
	if limit > s.cfg.DispatchMaxLimit {
		limit = s.cfg.DispatchMaxLimit
	}
	if len(req.Areas) == 0 {
		return []DispatchedJob{}, nil
	}

	now := s.nowFn()
	candidates, err := s.jobs.ListClaimable(ctx, req.Areas, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list claimable: %w", err)
	}

	dispatched := make([]DispatchedJob, 0, len(candidates))
	for _, candidate := range candidates {
		nonce, err := newNonce()
		if err != nil {
			return nil, err
		}
		job, claimed, err := s.jobs.Claim(ctx, candidate.ID, req.DeviceID, nonce, now)
		if err != nil {
			return nil, fmt.Errorf("claim job %d: %w", candidate.ID, err)
		}
		if !claimed {
			continue
		}
		dispatched = append(dispatched, DispatchedJob{
			JobID:       job.ID,
			Area:        job.Area,
			Nonce:       nonce,
			ExpiresInMs: s.cfg.ConfirmWindow.Milliseconds(),
		})
	}
	return dispatched, nil
}

// ConfirmJob finalizes a dispatched job from a device report. The outcome
// taxonomy is deliberate: repeated confirms with matching credentials are
// accepted idempotently, mismatched credentials are forbidden, and a report
// arriving after the window expires the job instead of executing it.
func (s *Service) ConfirmJob(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	now := s.nowFn()

	job, err := s.jobs.GetByID(ctx, req.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ConfirmResult{Reason: ConfirmNotFound}, nil
		}
		return ConfirmResult{}, fmt.Errorf("load job: %w", err)
	}

	if job.Status.Terminal() {
		if job.DispatchToDeviceID == req.DeviceID && nonceEqual(job.Nonce, req.Nonce) {
			return ConfirmResult{Accepted: true, Status: job.Status, Area: job.Area, MemberID: job.RequestedByMemberID, Reason: ConfirmAccepted}, nil
		}
		return ConfirmResult{Status: job.Status, Area: job.Area, MemberID: job.RequestedByMemberID, Reason: ConfirmForbidden}, nil
	}

	if job.Status != domain.JobDispatched {
		return ConfirmResult{Status: job.Status, Area: job.Area, MemberID: job.RequestedByMemberID, Reason: ConfirmNotDispatchable}, nil
	}
	if job.DispatchToDeviceID != req.DeviceID || !nonceEqual(job.Nonce, req.Nonce) {
		return ConfirmResult{Status: job.Status, Area: job.Area, MemberID: job.RequestedByMemberID, Reason: ConfirmForbidden}, nil
	}

	if job.DispatchedAt.Before(now.Add(-s.cfg.ConfirmWindow)) {
		if _, err := s.jobs.ExpireDispatched(ctx, job.ID, now); err != nil {
			return ConfirmResult{}, fmt.Errorf("expire timed-out job: %w", err)
		}
		return ConfirmResult{Status: domain.JobExpired, Area: job.Area, MemberID: job.RequestedByMemberID, Reason: ConfirmTimeout}, nil
	}

	status := domain.JobExecuted
	resultCode := "OK"
	if !req.OK {
		status = domain.JobFailed
		resultCode = "ERR"
	}
	message := confirmMessage(req)

	ok, err := s.jobs.Finalize(ctx, job.ID, req.DeviceID, req.Nonce, status, now, resultCode, message)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("finalize job: %w", err)
	}
	if !ok {
		// Lost a race against the sweeper or a duplicate confirm; the row
		// decides. Re-read and classify from the final state.
		final, rerr := s.jobs.GetByID(ctx, job.ID)
		if rerr != nil {
			return ConfirmResult{}, fmt.Errorf("reload job after finalize race: %w", rerr)
		}
		if final.Status.Terminal() && final.DispatchToDeviceID == req.DeviceID && nonceEqual(final.Nonce, req.Nonce) {
			if final.Status == domain.JobExpired {
				return ConfirmResult{Status: final.Status, Area: final.Area, MemberID: final.RequestedByMemberID, Reason: ConfirmTimeout}, nil
			}
			return ConfirmResult{Accepted: true, Status: final.Status, Area: final.Area, MemberID: final.RequestedByMemberID, Reason: ConfirmAccepted}, nil
		}
		return ConfirmResult{Status: final.Status, Area: final.Area, MemberID: final.RequestedByMemberID, Reason: ConfirmForbidden}, nil
	}

	return ConfirmResult{Accepted: true, Status: status, Area: job.Area, MemberID: job.RequestedByMemberID, Reason: ConfirmAccepted}, nil
}

// confirmMessage builds the stored result message from the device's report,
// appending a compact meta payload when present. A device that sends no
// message still gets a base text derived from the outcome. Both the meta
// fragment and the final message are bounded to their column widths.
func confirmMessage(req ConfirmRequest) string {
	message := req.Message
	if message == "" {
		message = "Door open executed"
		if !req.OK {
			message = "Door open failed"
		}
	}
	if len(req.Meta) > 0 {
		if raw, err := json.Marshal(req.Meta); err == nil {
			fragment := truncate(string(raw), 200)
			if message != "" {
				message += " "
			}
			message += "meta=" + fragment
		}
	}
	return truncate(message, 255)
}
