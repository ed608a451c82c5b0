// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/taptag/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// TxManager runs a function inside a database transaction carried by the context
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
	WithSerializableTransaction(ctx context.Context, fn func(context.Context) error) error
}

// TagRepository defines operations for tags
type TagRepository interface {
	Repository[models.Tag, models.TagFilter]
	ByTagID(ctx context.Context, tagID uuid.UUID) (*models.Tag, error)
	ByShortCode(ctx context.Context, shortCode string) (*models.Tag, error)
	ByIDForUpdate(ctx context.Context, id uint) (*models.Tag, error)
	ListByShortCodes(ctx context.Context, shortCodes []string) ([]*models.Tag, error)
	AssignGenerated(ctx context.Context, ids []uint, affiliateID uint) (int64, error)
	Update(ctx context.Context, tag *models.Tag) error
	CountByStatus(ctx context.Context) (map[models.TagStatus]int64, error)
}

// OTPChallengeRepository defines operations for activation passcode challenges
type OTPChallengeRepository interface {
	Repository[models.OTPChallenge, models.OTPChallengeFilter]
	ByTagAndPhone(ctx context.Context, tagID uint, phone string) (*models.OTPChallenge, error)
	Upsert(ctx context.Context, challenge *models.OTPChallenge) error
	IncrementAttempts(ctx context.Context, id uint) (bool, error)
	Consume(ctx context.Context, id uint, otpHash string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}

// TagOwnerRepository defines operations for vehicle owners
type TagOwnerRepository interface {
	Repository[models.TagOwner, models.TagOwnerFilter]
	ByPhone(ctx context.Context, phone string) (*models.TagOwner, error)
	ByVehicleNumber(ctx context.Context, vehicleNumber string) (*models.TagOwner, error)
	Update(ctx context.Context, owner *models.TagOwner) error
	CountActive(ctx context.Context) (int64, error)
}

// UserRepository defines operations for affiliates and administrators
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByIDForUpdate(ctx context.Context, id uint) (*models.User, error)
}

// SaleRepository defines operations for the sale ledger
type SaleRepository interface {
	Repository[models.Sale, models.SaleFilter]
	ByTagID(ctx context.Context, tagID uint) (*models.Sale, error)
	UpdateStatuses(ctx context.Context, id uint, update SaleStatusUpdate) error
	AppendMessage(ctx context.Context, id uint, message string, updatedBy uint) error
	CompletedTotals(ctx context.Context, salesPersonID uint) (models.SalesTotals, error)
	PendingTotals(ctx context.Context, salesPersonID uint) (models.SalesTotals, error)
}

// SaleStatusUpdate carries a status correction; nil fields are left untouched
type SaleStatusUpdate struct {
	PaymentStatus      *models.SaleStatus
	VerificationStatus *models.SaleStatus
	PaymentProofRef    *string
	Message            string
	UpdatedBy          uint
}

// WalletTransactionRepository defines operations for the withdrawal ledger
type WalletTransactionRepository interface {
	Repository[models.WalletTransaction, models.WalletTransactionFilter]
	ByIDForUpdate(ctx context.Context, id uint) (*models.WalletTransaction, error)
	Update(ctx context.Context, tx *models.WalletTransaction) error
	Totals(ctx context.Context, userID uint) (models.WalletTotals, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
}
