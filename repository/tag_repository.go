package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/taptag/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TagRepositoryImpl implements TagRepository interface
type TagRepositoryImpl struct {
	*BaseRepository[models.Tag, models.TagFilter]
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *gorm.DB) TagRepository {
	return &TagRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Tag, models.TagFilter](db),
	}
}

// ByTagID retrieves a tag by its public UUID
func (r *TagRepositoryImpl) ByTagID(ctx context.Context, tagID uuid.UUID) (*models.Tag, error) {
	return r.first(ctx, "tag_id = ?", tagID)
}

// ByShortCode retrieves a tag by its short code
func (r *TagRepositoryImpl) ByShortCode(ctx context.Context, shortCode string) (*models.Tag, error) {
	return r.first(ctx, "short_code = ?", shortCode)
}

func (r *TagRepositoryImpl) first(ctx context.Context, query string, args ...any) (*models.Tag, error) {
	db := r.getDB(ctx)
	var row models.Tag
	if err := db.Where(query, args...).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ByIDForUpdate locks the tag row for the rest of the surrounding transaction
func (r *TagRepositoryImpl) ByIDForUpdate(ctx context.Context, id uint) (*models.Tag, error) {
	return r.byIDForUpdate(ctx, id)
}

// ListByShortCodes retrieves the tags matching any of the given short codes
func (r *TagRepositoryImpl) ListByShortCodes(ctx context.Context, shortCodes []string) ([]*models.Tag, error) {
	if len(shortCodes) == 0 {
		return []*models.Tag{}, nil
	}
	db := r.getDB(ctx)
	var rows []*models.Tag
	if err := db.Model(&models.Tag{}).Where("short_code IN ?", shortCodes).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AssignGenerated moves still-generated tags to the given affiliate and returns how many moved
func (r *TagRepositoryImpl) AssignGenerated(ctx context.Context, ids []uint, affiliateID uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db := r.getDB(ctx)
	res := db.Model(&models.Tag{}).
		Where("id IN ? AND status = ?", ids, models.TagStatusGenerated).
		Updates(map[string]any{
			"status":      models.TagStatusAssigned,
			"assigned_to": affiliateID,
			"updated_at":  gorm.Expr("CURRENT_TIMESTAMP AT TIME ZONE 'UTC'"),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to assign tags: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountByStatus returns the number of tags per status
func (r *TagRepositoryImpl) CountByStatus(ctx context.Context) (map[models.TagStatus]int64, error) {
	db := r.getDB(ctx)
	var rows []struct {
		Status models.TagStatus
		Total  int64
	}
	if err := db.Model(&models.Tag{}).Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[models.TagStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *TagRepositoryImpl) applyFilter(query *gorm.DB, filter models.TagFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.TagID != nil {
		query = query.Where("tag_id = ?", *filter.TagID)
	}
	if filter.ShortCode != nil {
		query = query.Where("short_code = ?", *filter.ShortCode)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.BatchName != nil {
		query = query.Where("batch_name = ?", *filter.BatchName)
	}
	if filter.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *filter.AssignedTo)
	}
	if filter.Search != nil && *filter.Search != "" {
		like := "%" + *filter.Search + "%"
		query = query.Where("(tag_id::text ILIKE ? OR short_code ILIKE ?)", like, like)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves tags based on filter criteria
func (r *TagRepositoryImpl) ByFilter(ctx context.Context, filter models.TagFilter, orderBy string, limit, offset int) ([]*models.Tag, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Tag{}).Omit("qr_code")

	query = r.applyFilter(query, filter)

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

	var rows []*models.Tag
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of tags matching the filter
func (r *TagRepositoryImpl) Count(ctx context.Context, filter models.TagFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Tag{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any tag matches the filter
func (r *TagRepositoryImpl) Exists(ctx context.Context, filter models.TagFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
