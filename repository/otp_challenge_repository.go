package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/taptag/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OTPChallengeRepositoryImpl implements OTPChallengeRepository interface
type OTPChallengeRepositoryImpl struct {
	*BaseRepository[models.OTPChallenge, models.OTPChallengeFilter]
}

// NewOTPChallengeRepository creates a new challenge repository
func NewOTPChallengeRepository(db *gorm.DB) OTPChallengeRepository {
	return &OTPChallengeRepositoryImpl{
		BaseRepository: NewBaseRepository[models.OTPChallenge, models.OTPChallengeFilter](db),
	}
}

// ByTagAndPhone retrieves the live challenge of a (tag, phone) pair
func (r *OTPChallengeRepositoryImpl) ByTagAndPhone(ctx context.Context, tagID uint, phone string) (*models.OTPChallenge, error) {
	db := r.getDB(ctx)
	var row models.OTPChallenge
	err := db.Where("tag_id = ? AND phone = ?", tagID, phone).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Upsert creates the challenge or replaces the previous one for the same (tag, phone),
// resetting its attempt counter
func (r *OTPChallengeRepositoryImpl) Upsert(ctx context.Context, challenge *models.OTPChallenge) error {
	challenge.Attempts = 0
	db := r.getDB(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tag_id"}, {Name: "phone"}},
		DoUpdates: clause.Assignments(map[string]any{
			"otp_hash":     clause.Expr{SQL: "EXCLUDED.otp_hash"},
			"expires_at":   clause.Expr{SQL: "EXCLUDED.expires_at"},
			"attempts":     0,
			"max_attempts": clause.Expr{SQL: "EXCLUDED.max_attempts"},
			"context":      clause.Expr{SQL: "EXCLUDED.context"},
			"updated_at":   clause.Expr{SQL: "CURRENT_TIMESTAMP AT TIME ZONE 'UTC'"},
		}),
	}).Create(challenge).Error
	if err != nil {
		return fmt.Errorf("failed to upsert otp challenge: %w", err)
	}
	return nil
}

// IncrementAttempts reserves one attempt with a single compare-and-increment before
// a guess is compared. It returns false when the challenge was already exhausted or is gone.
func (r *OTPChallengeRepositoryImpl) IncrementAttempts(ctx context.Context, id uint) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.OTPChallenge{}).
		Where("id = ? AND attempts < max_attempts", id).
		UpdateColumns(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP AT TIME ZONE 'UTC'"),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to increment otp attempts: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Consume deletes a verified challenge. It only succeeds while the challenge still carries
// the verified hash and has not expired, so a verification can be spent once.
func (r *OTPChallengeRepositoryImpl) Consume(ctx context.Context, id uint, otpHash string, now time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Where("id = ? AND otp_hash = ? AND expires_at > ?", id, otpHash, now).Delete(&models.OTPChallenge{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume otp challenge: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteExpired removes up to limit challenges that expired before the given time
func (r *OTPChallengeRepositoryImpl) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	db := r.getDB(ctx)
	sub := db.Model(&models.OTPChallenge{}).Select("id").Where("expires_at <= ?", before).Order("id ASC")
	if limit > 0 {
		sub = sub.Limit(limit)
	}
	res := db.Where("id IN (?)", sub).Delete(&models.OTPChallenge{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired otp challenges: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *OTPChallengeRepositoryImpl) applyFilter(query *gorm.DB, filter models.OTPChallengeFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.TagID != nil {
		query = query.Where("tag_id = ?", *filter.TagID)
	}
	if filter.Phone != nil {
		query = query.Where("phone = ?", *filter.Phone)
	}
	if filter.ExpiresBefore != nil {
		query = query.Where("expires_at <= ?", *filter.ExpiresBefore)
	}
	return query
}

// ByFilter retrieves challenges based on filter criteria
func (r *OTPChallengeRepositoryImpl) ByFilter(ctx context.Context, filter models.OTPChallengeFilter, orderBy string, limit, offset int) ([]*models.OTPChallenge, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OTPChallenge{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.OTPChallenge
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of challenges matching the filter
func (r *OTPChallengeRepositoryImpl) Count(ctx context.Context, filter models.OTPChallengeFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.OTPChallenge{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any challenge matches the filter
func (r *OTPChallengeRepositoryImpl) Exists(ctx context.Context, filter models.OTPChallengeFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
