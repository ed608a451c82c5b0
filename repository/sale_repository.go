package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/taptag/models"
	"gorm.io/gorm"
)

// SaleRepositoryImpl implements SaleRepository interface
type SaleRepositoryImpl struct {
	*BaseRepository[models.Sale, models.SaleFilter]
}

// NewSaleRepository creates a new sale repository
func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &SaleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Sale, models.SaleFilter](db),
	}
}

// ByTagID retrieves the sale recorded for a tag
func (r *SaleRepositoryImpl) ByTagID(ctx context.Context, tagID uint) (*models.Sale, error) {
	db := r.getDB(ctx)
	var row models.Sale
	if err := db.Where("tag_id = ?", tagID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpdateStatuses applies a status correction and appends its audit message.
// Amount columns are never touched here.
func (r *SaleRepositoryImpl) UpdateStatuses(ctx context.Context, id uint, update SaleStatusUpdate) error {
	values := map[string]any{
		"updated_by": update.UpdatedBy,
		"updated_at": gorm.Expr("CURRENT_TIMESTAMP AT TIME ZONE 'UTC'"),
	}
	if update.PaymentStatus != nil {
		values["payment_status"] = *update.PaymentStatus
	}
	if update.VerificationStatus != nil {
		values["verification_status"] = *update.VerificationStatus
	}
	if update.PaymentProofRef != nil {
		values["payment_proof_ref"] = *update.PaymentProofRef
	}
	if update.Message != "" {
		values["messages"] = gorm.Expr("array_append(messages, ?)", update.Message)
	}

	db := r.getDB(ctx)
	res := db.Model(&models.Sale{}).Where("id = ?", id).UpdateColumns(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update sale %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AppendMessage adds one entry to the sale's message trail
func (r *SaleRepositoryImpl) AppendMessage(ctx context.Context, id uint, message string, updatedBy uint) error {
	return r.UpdateStatuses(ctx, id, SaleStatusUpdate{Message: message, UpdatedBy: updatedBy})
}

const saleTotalsSelect = `COALESCE(SUM(commission_amount_of_sales_person), 0) AS commission,
	COALESCE(SUM(total_sale_amount), 0) AS sales_amount,
	COALESCE(SUM(cost_amount_of_product_and_services), 0) AS cost,
	COALESCE(SUM(commission_amount_of_owner), 0) AS owner_commission,
	COUNT(*) AS cards`

// CompletedTotals aggregates the sales of an affiliate that are both paid and verified
func (r *SaleRepositoryImpl) CompletedTotals(ctx context.Context, salesPersonID uint) (models.SalesTotals, error) {
	db := r.getDB(ctx)
	var totals models.SalesTotals
	err := db.Model(&models.Sale{}).
		Select(saleTotalsSelect).
		Where("sales_person_id = ?", salesPersonID).
		Where("payment_status = ? AND verification_status = ?", models.SaleStatusCompleted, models.SaleStatusCompleted).
		Scan(&totals).Error
	if err != nil {
		return models.SalesTotals{}, fmt.Errorf("failed to aggregate completed sales: %w", err)
	}
	return totals, nil
}

// PendingTotals aggregates the sales of an affiliate that are not yet paid or verified
func (r *SaleRepositoryImpl) PendingTotals(ctx context.Context, salesPersonID uint) (models.SalesTotals, error) {
	db := r.getDB(ctx)
	var totals models.SalesTotals
	err := db.Model(&models.Sale{}).
		Select(saleTotalsSelect).
		Where("sales_person_id = ?", salesPersonID).
		Where("(payment_status <> ? OR verification_status <> ?)", models.SaleStatusCompleted, models.SaleStatusCompleted).
		Scan(&totals).Error
	if err != nil {
		return models.SalesTotals{}, fmt.Errorf("failed to aggregate pending sales: %w", err)
	}
	return totals, nil
}

func (r *SaleRepositoryImpl) applyFilter(query *gorm.DB, filter models.SaleFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.TagID != nil {
		query = query.Where("tag_id = ?", *filter.TagID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.SalesPersonID != nil {
		query = query.Where("sales_person_id = ?", *filter.SalesPersonID)
	}
	if filter.SalesPersonRole != nil {
		query = query.Where("sales_person_role = ?", *filter.SalesPersonRole)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.VerificationStatus != nil {
		query = query.Where("verification_status = ?", *filter.VerificationStatus)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves sales based on filter criteria
func (r *SaleRepositoryImpl) ByFilter(ctx context.Context, filter models.SaleFilter, orderBy string, limit, offset int) ([]*models.Sale, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Sale{}), filter)
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
	var rows []*models.Sale
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of sales matching the filter
func (r *SaleRepositoryImpl) Count(ctx context.Context, filter models.SaleFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.Sale{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any sale matches the filter
func (r *SaleRepositoryImpl) Exists(ctx context.Context, filter models.SaleFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
