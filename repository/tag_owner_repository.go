package repository

import (
	"context"
	"errors"

	"github.com/amirphl/taptag/models"
	"gorm.io/gorm"
)

// TagOwnerRepositoryImpl implements TagOwnerRepository interface
type TagOwnerRepositoryImpl struct {
	*BaseRepository[models.TagOwner, models.TagOwnerFilter]
}

// NewTagOwnerRepository creates a new owner repository
func NewTagOwnerRepository(db *gorm.DB) TagOwnerRepository {
	return &TagOwnerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.TagOwner, models.TagOwnerFilter](db),
	}
}

// ByPhone retrieves an owner by normalized phone number
func (r *TagOwnerRepositoryImpl) ByPhone(ctx context.Context, phone string) (*models.TagOwner, error) {
	return r.first(ctx, models.TagOwnerFilter{Phone: &phone})
}

// ByVehicleNumber retrieves an owner by normalized vehicle number
func (r *TagOwnerRepositoryImpl) ByVehicleNumber(ctx context.Context, vehicleNumber string) (*models.TagOwner, error) {
	return r.first(ctx, models.TagOwnerFilter{VehicleNumber: &vehicleNumber})
}

func (r *TagOwnerRepositoryImpl) first(ctx context.Context, filter models.TagOwnerFilter) (*models.TagOwner, error) {
	db := r.getDB(ctx)
	var row models.TagOwner
	if err := r.applyFilter(db.Model(&models.TagOwner{}), filter).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// CountActive returns the number of active owners
func (r *TagOwnerRepositoryImpl) CountActive(ctx context.Context) (int64, error) {
	active := true
	return r.Count(ctx, models.TagOwnerFilter{IsActive: &active})
}

func (r *TagOwnerRepositoryImpl) applyFilter(query *gorm.DB, filter models.TagOwnerFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Phone != nil {
		query = query.Where("phone = ?", *filter.Phone)
	}
	if filter.VehicleNumber != nil {
		query = query.Where("vehicle_number = ?", *filter.VehicleNumber)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves owners based on filter criteria
func (r *TagOwnerRepositoryImpl) ByFilter(ctx context.Context, filter models.TagOwnerFilter, orderBy string, limit, offset int) ([]*models.TagOwner, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TagOwner{}), filter)
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
	var rows []*models.TagOwner
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of owners matching the filter
func (r *TagOwnerRepositoryImpl) Count(ctx context.Context, filter models.TagOwnerFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.TagOwner{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any owner matches the filter
func (r *TagOwnerRepositoryImpl) Exists(ctx context.Context, filter models.TagOwnerFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
