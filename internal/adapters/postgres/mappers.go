package postgres

import (
	"errors"
	"strings"
	"time"

	"github.com/communityforge/door-access-service/internal/domain"
	"gorm.io/gorm"
)

func toDomainJob(row doorJobModel) domain.DoorJob {
	job := domain.DoorJob{
		ID:                  row.ID,
		Area:                row.Area,
		Status:              domain.JobStatus(row.Status),
		RequestedByMemberID: row.RequestedByMemberID,
		RequestIP:           derefString(row.RequestIP),
		UserAgent:           derefString(row.UserAgent),
		CreatedAt:           row.CreatedAt,
		DispatchToDeviceID:  derefString(row.DispatchedTo),
		Nonce:               derefString(row.Nonce),
		Attempts:            row.Attempts,
		ExecutedAt:          row.ExecutedAt,
		ResultCode:          derefString(row.ResultCode),
		ResultMessage:       derefString(row.ResultMessage),
	}
	if row.ExpiresAt != nil {
		job.ExpiresAt = *row.ExpiresAt
	}
	if row.DispatchedAt != nil {
		job.DispatchedAt = *row.DispatchedAt
	}
	return job
}

func toDomainDevice(row deviceModel) domain.Device {
	device := domain.Device{
		ID:       row.ID,
		DeviceID: row.DeviceID,
		Name:     row.Name,
		Enabled:  row.Enabled,
		Areas:    splitAreas(row.Areas),
		LastIP:   derefString(row.LastIP),
		Notes:    derefString(row.Notes),
	}
	if row.LastSeenAt != nil {
		device.LastSeenAt = *row.LastSeenAt
	}
	return device
}

// splitAreas parses the stored comma-separated area list, dropping empty
// fragments so a trailing comma never yields a phantom area.
func splitAreas(raw string) []string {
	parts := strings.Split(raw, ",")
	areas := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			areas = append(areas, trimmed)
		}
	}
	return areas
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nullableTime(v time.Time) *time.Time {
	if v.IsZero() {
		return nil
	}
	return &v
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
