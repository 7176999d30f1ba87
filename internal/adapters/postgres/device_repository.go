package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/communityforge/door-access-service/internal/domain"
	"gorm.io/gorm"
)

type deviceRepository struct {
	db *gorm.DB
}

func (r *deviceRepository) GetByTokenHash(ctx context.Context, tokenHash string) (domain.Device, error) {
	var rec deviceModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Device{}, domain.ErrNotFound
		}
		return domain.Device{}, err
	}
	return toDomainDevice(rec), nil
}

func (r *deviceRepository) TouchSeen(ctx context.Context, deviceID string, seenAt time.Time, ip string) error {
	return r.db.WithContext(ctx).
		Model(&deviceModel{}).
		Where("device_id = ?", deviceID).
		Updates(map[string]any{
			"last_seen_at": seenAt,
			"last_ip":      nullableString(ip),
		}).Error
}
