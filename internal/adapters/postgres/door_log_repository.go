package postgres

import (
	"context"
	"encoding/json"

	"github.com/communityforge/door-access-service/internal/domain"
	"gorm.io/gorm"
)

type doorLogRepository struct {
	db *gorm.DB
}

func (r *doorLogRepository) Insert(ctx context.Context, entry domain.DoorLogEntry) error {
	rec := doorLogModel{
		MemberID:  entry.MemberID,
		Area:      entry.Area,
		Action:    entry.Action,
		Result:    entry.Result,
		IPAddress: nullableString(entry.IP),
		UserAgent: nullableString(entry.UserAgent),
		Message:   nullableString(entry.Message),
		CreatedAt: entry.CreatedAt,
	}
	if len(entry.Context) > 0 {
		raw, err := json.Marshal(entry.Context)
		if err != nil {
			return err
		}
		payload := string(raw)
		rec.Context = &payload
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}
