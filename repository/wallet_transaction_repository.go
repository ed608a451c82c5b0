package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/taptag/models"
	"gorm.io/gorm"
)

// WalletTransactionRepositoryImpl implements WalletTransactionRepository interface
type WalletTransactionRepositoryImpl struct {
	*BaseRepository[models.WalletTransaction, models.WalletTransactionFilter]
}

// NewWalletTransactionRepository creates a new wallet transaction repository
func NewWalletTransactionRepository(db *gorm.DB) WalletTransactionRepository {
	return &WalletTransactionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WalletTransaction, models.WalletTransactionFilter](db),
	}
}

// ByIDForUpdate locks a wallet transaction for a status change
func (r *WalletTransactionRepositoryImpl) ByIDForUpdate(ctx context.Context, id uint) (*models.WalletTransaction, error) {
	return r.byIDForUpdate(ctx, id)
}

// Totals sums the debit and credit movements of one user by status
func (r *WalletTransactionRepositoryImpl) Totals(ctx context.Context, userID uint) (models.WalletTotals, error) {
	db := r.getDB(ctx)
	var totals models.WalletTotals
	err := db.Model(&models.WalletTransaction{}).
		Select(`COALESCE(SUM(CASE WHEN type = ? AND status = ? THEN amount ELSE 0 END), 0) AS total_withdrawn,
			COALESCE(SUM(CASE WHEN type = ? AND status = ? THEN amount ELSE 0 END), 0) AS pending_withdrawals,
			COALESCE(SUM(CASE WHEN type = ? AND status = ? THEN amount ELSE 0 END), 0) AS manual_credits`,
			models.WalletTransactionTypeDebit, models.WalletTransactionStatusCompleted,
			models.WalletTransactionTypeDebit, models.WalletTransactionStatusPending,
			models.WalletTransactionTypeCredit, models.WalletTransactionStatusCompleted).
		Where("user_id = ?", userID).
		Scan(&totals).Error
	if err != nil {
		return models.WalletTotals{}, fmt.Errorf("failed to aggregate wallet transactions: %w", err)
	}
	return totals, nil
}

func (r *WalletTransactionRepositoryImpl) applyFilter(query *gorm.DB, filter models.WalletTransactionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves wallet transactions based on filter criteria
func (r *WalletTransactionRepositoryImpl) ByFilter(ctx context.Context, filter models.WalletTransactionFilter, orderBy string, limit, offset int) ([]*models.WalletTransaction, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WalletTransaction{}), filter)
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
	var rows []*models.WalletTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of wallet transactions matching the filter
func (r *WalletTransactionRepositoryImpl) Count(ctx context.Context, filter models.WalletTransactionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.WalletTransaction{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any wallet transaction matches the filter
func (r *WalletTransactionRepositoryImpl) Exists(ctx context.Context, filter models.WalletTransactionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
