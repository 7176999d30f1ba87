package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/communityforge/door-access-service/internal/domain"
	"github.com/communityforge/door-access-service/internal/ports"
)

// fakeClock is the shared test time source. The service and every fake store
// read from it so advancing time moves the whole fixture together.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeJobStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*domain.DoorJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		nextID: 1,
		jobs:   make(map[int64]*domain.DoorJob),
	}
}

func (s *fakeJobStore) Insert(_ context.Context, params ports.InsertJobParams) (domain.DoorJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Mirrors the active-slot unique constraint.
	for _, job := range s.jobs {
		if job.RequestedByMemberID == params.MemberID && job.Area == params.Area && !job.Status.Terminal() {
			return domain.DoorJob{}, domain.ErrConflict
		}
	}
	job := domain.DoorJob{
		ID:                  s.nextID,
		Area:                params.Area,
		Status:              domain.JobPending,
		RequestedByMemberID: params.MemberID,
		RequestIP:           params.RequestIP,
		UserAgent:           params.UserAgent,
		CreatedAt:           params.CreatedAt,
		ExpiresAt:           params.ExpiresAt,
	}
	s.nextID++
	s.jobs[job.ID] = &job
	return job, nil
}

func (s *fakeJobStore) GetByID(_ context.Context, id int64) (domain.DoorJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.DoorJob{}, domain.ErrNotFound
	}
	return *job, nil
}

func (s *fakeJobStore) FindActive(_ context.Context, memberID int64, area string, now, dispatchedAfter time.Time) (*domain.DoorJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *domain.DoorJob
	for _, job := range s.jobs {
		if job.RequestedByMemberID != memberID || job.Area != area {
			continue
		}
		if !job.ActiveAt(now, now.Sub(dispatchedAfter)) {
			continue
		}
		if newest == nil || job.CreatedAt.After(newest.CreatedAt) {
			copied := *job
			newest = &copied
		}
	}
	return newest, nil
}

func (s *fakeJobStore) ListClaimable(_ context.Context, areas []string, now time.Time, limit int) ([]domain.DoorJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed := make(map[string]struct{}, len(areas))
	for _, a := range areas {
		allowed[a] = struct{}{}
	}
	var out []domain.DoorJob
	for _, job := range s.jobs {
		if job.Status != domain.JobPending {
			continue
		}
		if _, ok := allowed[job.Area]; !ok {
			continue
		}
		if !job.ExpiresAt.IsZero() && job.ExpiresAt.Before(now) {
			continue
		}
		out = append(out, *job)
	}
	// oldest first, id as tiebreaker
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) ||
				(out[j].CreatedAt.Equal(out[i].CreatedAt) && out[j].ID < out[i].ID) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeJobStore) Claim(_ context.Context, jobID int64, deviceID, nonce string, now time.Time) (domain.DoorJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.DoorJob{}, false, nil
	}
	if job.Status != domain.JobPending {
		return domain.DoorJob{}, false, nil
	}
	if !job.ExpiresAt.IsZero() && job.ExpiresAt.Before(now) {
		return domain.DoorJob{}, false, nil
	}
	job.Status = domain.JobDispatched
	job.DispatchToDeviceID = deviceID
	job.DispatchedAt = now
	job.Nonce = nonce
	job.Attempts++
	return *job, true, nil
}

func (s *fakeJobStore) Finalize(_ context.Context, jobID int64, deviceID, nonce string, status domain.JobStatus, executedAt time.Time, resultCode, resultMessage string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false, nil
	}
	if !job.Status.CanTransitionTo(status) || job.DispatchToDeviceID != deviceID || job.Nonce != nonce {
		return false, nil
	}
	job.Status = status
	job.ExecutedAt = &executedAt
	job.ResultCode = resultCode
	job.ResultMessage = resultMessage
	return true, nil
}

func (s *fakeJobStore) ExpireDispatched(_ context.Context, jobID int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.JobDispatched {
		return false, nil
	}
	job.Status = domain.JobExpired
	job.ExecutedAt = &at
	job.ResultCode = "TIMEOUT"
	job.ResultMessage = "Confirm timeout"
	return true, nil
}

func (s *fakeJobStore) ExpirePendingBefore(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, job := range s.jobs {
		if job.Status == domain.JobPending && !job.ExpiresAt.IsZero() && job.ExpiresAt.Before(now) {
			job.Status = domain.JobExpired
			job.ResultCode = "TIMEOUT"
			job.ResultMessage = "Pending timeout"
			n++
		}
	}
	return n, nil
}

func (s *fakeJobStore) ExpireDispatchedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, job := range s.jobs {
		if job.Status == domain.JobDispatched && job.DispatchedAt.Before(cutoff) {
			job.Status = domain.JobExpired
			job.ResultCode = "TIMEOUT"
			job.ResultMessage = "Confirm timeout"
			n++
		}
	}
	return n, nil
}

func (s *fakeJobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

type fakeRateStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	resetAt map[string]time.Time
	clock   *fakeClock
}

func newFakeRateStore(clock *fakeClock) *fakeRateStore {
	return &fakeRateStore{
		counts:  make(map[string]int64),
		resetAt: make(map[string]time.Time),
		clock:   clock,
	}
}

func (s *fakeRateStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if reset, ok := s.resetAt[key]; !ok || !reset.After(now) {
		s.counts[key] = 0
		s.resetAt[key] = now.Add(window)
	}
	s.counts[key]++
	return s.counts[key], s.resetAt[key].Sub(now), nil
}

type fakeLockStore struct {
	mu           sync.Mutex
	lockedUntil  map[string]time.Time
	acquireCount map[string]int
	clock        *fakeClock
}

func newFakeLockStore(clock *fakeClock) *fakeLockStore {
	return &fakeLockStore{
		lockedUntil:  make(map[string]time.Time),
		acquireCount: make(map[string]int),
		clock:        clock,
	}
}

func (s *fakeLockStore) Check(_ context.Context, key string) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.lockedUntil[key]
	now := s.clock.Now()
	if !ok || !until.After(now) {
		return false, 0, nil
	}
	return true, until.Sub(now), nil
}

func (s *fakeLockStore) Acquire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockedUntil[key] = s.clock.Now().Add(ttl)
	s.acquireCount[key]++
	return nil
}

func (s *fakeLockStore) acquired(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquireCount[key]
}

type fakeDeviceStore struct {
	mu      sync.Mutex
	byHash  map[string]domain.Device
	touched map[string]int
}

func newFakeDeviceStore() *fakeDeviceStore {
	return &fakeDeviceStore{
		byHash:  make(map[string]domain.Device),
		touched: make(map[string]int),
	}
}

func (s *fakeDeviceStore) add(tokenHash string, device domain.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[tokenHash] = device
}

func (s *fakeDeviceStore) GetByTokenHash(_ context.Context, tokenHash string) (domain.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	device, ok := s.byHash[tokenHash]
	if !ok {
		return domain.Device{}, domain.ErrNotFound
	}
	return device, nil
}

func (s *fakeDeviceStore) TouchSeen(_ context.Context, deviceID string, _ time.Time, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[deviceID]++
	return nil
}

type fakeDoorLog struct {
	mu      sync.Mutex
	entries []domain.DoorLogEntry
}

func (s *fakeDoorLog) Insert(_ context.Context, entry domain.DoorLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func insertParamsForTest(memberID int64, area string, now time.Time) ports.InsertJobParams {
	return ports.InsertJobParams{
		Area:      area,
		MemberID:  memberID,
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Second),
	}
}

func testMemberClaims(memberID int64, groups ...int64) ports.MemberClaims {
	return ports.MemberClaims{MemberID: memberID, Groups: groups}
}

// seedPending inserts a pending job directly, sidestepping locks and rate
// counters so scenarios can stage multiple members in one area.
func seedPending(t *testing.T, f *fixture, memberID int64, area string) domain.DoorJob {
	t.Helper()
	job, err := f.jobs.Insert(context.Background(), insertParamsForTest(memberID, area, f.clock.Now()))
	if err != nil {
		t.Fatalf("seed pending job: %v", err)
	}
	return job
}

type fixture struct {
	service *Service
	clock   *fakeClock
	jobs    *fakeJobStore
	devices *fakeDeviceStore
	doorLog *fakeDoorLog
	rates   *fakeRateStore
	locks   *fakeLockStore
}

func newFixture() *fixture {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.AreaGroups = map[string]int64{
		"depot":      101,
		"swap-house": 102,
		"workshop":   103,
		"sharing":    104,
	}
	jobs := newFakeJobStore()
	devices := newFakeDeviceStore()
	doorLog := &fakeDoorLog{}
	rates := newFakeRateStore(clock)
	locks := newFakeLockStore(clock)

	svc := NewService(Dependencies{
		Config:  cfg,
		Jobs:    jobs,
		Devices: devices,
		DoorLog: doorLog,
		Rates:   rates,
		Locks:   locks,
	}).WithNow(clock.Now)

	return &fixture{
		service: svc,
		clock:   clock,
		jobs:    jobs,
		devices: devices,
		doorLog: doorLog,
		rates:   rates,
		locks:   locks,
	}
}
