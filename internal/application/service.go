package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/communityforge/door-access-service/internal/ports"
)

// Config is the engine's policy knobs. Defaults mirror the deployed door
// hardware: a short pending TTL because devices poll sub-second, and a
// confirm window generous enough for slow relay cycles.
type Config struct {
	RateLimitPerWindow   int
	RateWindow           time.Duration
	LockTTL              time.Duration
	PendingTTL           time.Duration
	ConfirmWindow        time.Duration
	DispatchDefaultLimit int
	DispatchMaxLimit     int

	// AreaGroups maps each known area to the membership group id that
	// grants it. The key set doubles as the area registry.
	AreaGroups map[string]int64
}

// DefaultConfig returns the production policy values.
func DefaultConfig() Config {
	return Config{
		RateLimitPerWindow:   3,
		RateWindow:           60 * time.Second,
		LockTTL:              5 * time.Second,
		PendingTTL:           10 * time.Second,
		ConfirmWindow:        30 * time.Second,
		DispatchDefaultLimit: 3,
		DispatchMaxLimit:     10,
	}
}

// Service is the door-job lifecycle engine. It owns job creation with
// dedup/rate-limit/lock checks, device claim and confirmation, and the
// inline expiry sweep. All collaborators arrive by injection; there are no
// ambient singletons.
type Service struct {
	cfg     Config
	jobs    ports.JobRepository
	devices ports.DeviceRepository
	doorLog ports.DoorLogRepository
	rates   ports.RateLimitStore
	locks   ports.LockStore
	nowFn   func() time.Time
}

type Dependencies struct {
	Config  Config
	Jobs    ports.JobRepository
	Devices ports.DeviceRepository
	DoorLog ports.DoorLogRepository
	Rates   ports.RateLimitStore
	Locks   ports.LockStore
}

func NewService(deps Dependencies) *Service {
	return &Service{
		cfg:     deps.Config,
		jobs:    deps.Jobs,
		devices: deps.Devices,
		doorLog: deps.DoorLog,
		rates:   deps.Rates,
		locks:   deps.Locks,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// KnownAreas returns the configured area registry in stable order.
func (s *Service) KnownAreas() []string {
	areas := make([]string, 0, len(s.cfg.AreaGroups))
	for area := range s.cfg.AreaGroups {
		areas = append(areas, area)
	}
	sort.Strings(areas)
	return areas
}

// IsKnownArea reports whether area is in the configured registry.
func (s *Service) IsKnownArea(area string) bool {
	_, ok := s.cfg.AreaGroups[area]
	return ok
}

// GrantedAreas computes the areas the member may open from the claims'
// membership groups and the configured area->group map.
func (s *Service) GrantedAreas(claims ports.MemberClaims) []string {
	memberGroups := make(map[int64]struct{}, len(claims.Groups))
	for _, g := range claims.Groups {
		memberGroups[g] = struct{}{}
	}
	granted := make([]string, 0, len(s.cfg.AreaGroups))
	for area, groupID := range s.cfg.AreaGroups {
		if _, ok := memberGroups[groupID]; ok {
			granted = append(granted, area)
		}
	}
	sort.Strings(granted)
	return granted
}

// newNonce returns 16 bytes of cryptographic randomness, hex encoded.
// A fresh nonce is minted for every claim; it is the device's one-shot
// confirmation capability.
func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// nonceEqual compares nonces in constant time.
func nonceEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
