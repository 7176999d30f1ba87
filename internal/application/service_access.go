package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/communityforge/door-access-service/internal/domain"
)

// AuthenticateDevice resolves a raw device token to an enabled device. The
// token itself never touches the database; only its sha256 digest is looked
// up, so the devices table stays index-friendly and leak-resistant.
func (s *Service) AuthenticateDevice(ctx context.Context, rawToken, remoteIP string) (domain.Device, error) {
	if rawToken == "" {
		return domain.Device{}, domain.ErrUnauthorized
	}
	digest := sha256.Sum256([]byte(rawToken))
	device, err := s.devices.GetByTokenHash(ctx, hex.EncodeToString(digest[:]))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Device{}, domain.ErrUnauthorized
		}
		return domain.Device{}, fmt.Errorf("lookup device: %w", err)
	}
	if !device.Enabled {
		return domain.Device{}, domain.ErrUnauthorized
	}

	// Presence bookkeeping is best effort; a failed touch never blocks the
	// device's request.
	if err := s.devices.TouchSeen(ctx, device.DeviceID, s.nowFn(), truncate(remoteIP, 64)); err != nil {
		slog.Default().WarnContext(ctx, "device touch failed",
			slog.String("device_id", device.DeviceID),
			slog.String("error", err.Error()))
	}
	return device, nil
}

// RecordDoorEvent writes one audit row. Auditing is best effort: a logging
// failure is reported but never fails the member's request.
func (s *Service) RecordDoorEvent(ctx context.Context, entry domain.DoorLogEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.nowFn()
	}
	entry.IP = truncate(entry.IP, 64)
	entry.UserAgent = truncate(entry.UserAgent, 255)
	entry.Message = truncate(entry.Message, 255)
	if err := s.doorLog.Insert(ctx, entry); err != nil {
		slog.Default().WarnContext(ctx, "door audit write failed",
			slog.Int64("member_id", entry.MemberID),
			slog.String("area", entry.Area),
			slog.String("action", entry.Action),
			slog.String("error", err.Error()))
	}
}

// WithNow replaces the service clock. Test hook.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.nowFn = now
	return s
}
