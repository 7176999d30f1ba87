package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/communityforge/door-access-service/internal/domain"
	"github.com/communityforge/door-access-service/internal/ports"
	"gorm.io/gorm"
)

type jobRepository struct {
	db *gorm.DB
}

func (r *jobRepository) Insert(ctx context.Context, params ports.InsertJobParams) (domain.DoorJob, error) {
	rec := doorJobModel{
		Area:                params.Area,
		Status:              string(domain.JobPending),
		RequestedByMemberID: params.MemberID,
		RequestIP:           nullableString(params.RequestIP),
		UserAgent:           nullableString(params.UserAgent),
		CreatedAt:           params.CreatedAt,
		ExpiresAt:           nullableTime(params.ExpiresAt),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.DoorJob{}, domain.ErrConflict
		}
		return domain.DoorJob{}, err
	}
	return toDomainJob(rec), nil
}

func (r *jobRepository) GetByID(ctx context.Context, id int64) (domain.DoorJob, error) {
	var rec doorJobModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DoorJob{}, domain.ErrNotFound
		}
		return domain.DoorJob{}, err
	}
	return toDomainJob(rec), nil
}

// FindActive is the SQL mirror of DoorJob.ActiveAt: a pending job before its
// claim deadline, or a dispatched job still inside the confirm window.
func (r *jobRepository) FindActive(ctx context.Context, memberID int64, area string, now, dispatchedAfter time.Time) (*domain.DoorJob, error) {
	var rec doorJobModel
	err := r.db.WithContext(ctx).
		Where("requested_by_member_id = ? AND area = ?", memberID, area).
		Where(
			r.db.Where("status = ? AND (expires_at IS NULL OR expires_at >= ?)", string(domain.JobPending), now).
				Or("status = ? AND dispatched_at >= ?", string(domain.JobDispatched), dispatchedAfter),
		).
		Order("created_at DESC").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	job := toDomainJob(rec)
	return &job, nil
}

func (r *jobRepository) ListClaimable(ctx context.Context, areas []string, now time.Time, limit int) ([]domain.DoorJob, error) {
	var rows []doorJobModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.JobPending)).
		Where("area IN ?", areas).
		Where("expires_at IS NULL OR expires_at >= ?", now).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	jobs := make([]domain.DoorJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, toDomainJob(row))
	}
	return jobs, nil
}

// Claim is the exclusivity point of the dispatch path: the status guard in
// the WHERE clause means at most one poller's update lands, and RowsAffected
// is the sole authority on who won.
func (r *jobRepository) Claim(ctx context.Context, jobID int64, deviceID, nonce string, now time.Time) (domain.DoorJob, bool, error) {
	res := r.db.WithContext(ctx).
		Model(&doorJobModel{}).
		Where("id = ?", jobID).
		Where("status = ?", string(domain.JobPending)).
		Where("expires_at IS NULL OR expires_at >= ?", now).
		Updates(map[string]any{
			"status":        string(domain.JobDispatched),
			"dispatched_to": deviceID,
			"dispatched_at": now,
			"nonce":         nonce,
			"attempts":      gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return domain.DoorJob{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.DoorJob{}, false, nil
	}
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return domain.DoorJob{}, false, err
	}
	return job, true, nil
}

func (r *jobRepository) Finalize(ctx context.Context, jobID int64, deviceID, nonce string, status domain.JobStatus, executedAt time.Time, resultCode, resultMessage string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&doorJobModel{}).
		Where("id = ?", jobID).
		Where("status = ?", string(domain.JobDispatched)).
		Where("dispatched_to = ? AND nonce = ?", deviceID, nonce).
		Updates(map[string]any{
			"status":         string(status),
			"executed_at":    executedAt,
			"result_code":    resultCode,
			"result_message": nullableString(resultMessage),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRepository) ExpireDispatched(ctx context.Context, jobID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&doorJobModel{}).
		Where("id = ?", jobID).
		Where("status = ?", string(domain.JobDispatched)).
		Updates(map[string]any{
			"status":         string(domain.JobExpired),
			"executed_at":    at,
			"result_code":    "TIMEOUT",
			"result_message": "Confirm timeout",
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRepository) ExpirePendingBefore(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&doorJobModel{}).
		Where("status = ?", string(domain.JobPending)).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Updates(map[string]any{
			"status":         string(domain.JobExpired),
			"result_code":    "TIMEOUT",
			"result_message": "Pending timeout",
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *jobRepository) ExpireDispatchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&doorJobModel{}).
		Where("status = ?", string(domain.JobDispatched)).
		Where("dispatched_at < ?", cutoff).
		Updates(map[string]any{
			"status":         string(domain.JobExpired),
			"result_code":    "TIMEOUT",
			"result_message": "Confirm timeout",
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
