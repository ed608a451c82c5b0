package models

import (
	"time"

	"github.com/google/uuid"
)

// WalletTransactionType is the direction of a wallet movement
type WalletTransactionType string

const (
	WalletTransactionTypeCredit WalletTransactionType = "credit" // Manual adjustment in favour of the affiliate
	WalletTransactionTypeDebit  WalletTransactionType = "debit"  // Withdrawal
)

// WalletTransactionStatus represents the approval state of a wallet movement
type WalletTransactionStatus string

const (
	WalletTransactionStatusPending   WalletTransactionStatus = "pending"
	WalletTransactionStatusCompleted WalletTransactionStatus = "completed"
	WalletTransactionStatusCancelled WalletTransactionStatus = "cancelled"
)

func (s WalletTransactionStatus) IsValid() bool {
	switch s {
	case WalletTransactionStatusPending, WalletTransactionStatusCompleted, WalletTransactionStatusCancelled:
		return true
	}
	return false
}

// WalletTransaction is an entry of the withdrawal ledger. The wallet balance itself is
// never stored; BalanceSnapshot is advisory only.
type WalletTransaction struct {
	ID              uint                    `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID            uuid.UUID               `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	UserID          uint                    `gorm:"not null;index:idx_wallet_transactions_user_id" json:"user_id"`
	SaleID          *uint                   `gorm:"index" json:"sale_id,omitempty"`
	Type            WalletTransactionType   `gorm:"type:wallet_tx_type_enum;not null;index" json:"type"`
	Status          WalletTransactionStatus `gorm:"type:wallet_tx_status_enum;not null;default:pending;index" json:"status"`
	Amount          int64                   `gorm:"not null;check:amount >= 0" json:"amount"`
	BalanceSnapshot int64                   `gorm:"not null;default:0" json:"balance_snapshot"`
	Description     string                  `gorm:"size:255;not null" json:"description"`
	Notes           *string                 `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy       *uint                   `json:"created_by,omitempty"`
	ApprovedBy      *uint                   `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time              `json:"approved_at,omitempty"`
	CreatedAt       time.Time               `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index" json:"created_at"`
	UpdatedAt       time.Time               `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// WalletTransactionFilter represents filter criteria for wallet transaction queries
type WalletTransactionFilter struct {
	ID     *uint
	UserID *uint
	Type   *WalletTransactionType
	Status *WalletTransactionStatus
}

// WalletTotals aggregates the withdrawal ledger of one affiliate
type WalletTotals struct {
	TotalWithdrawn     int64 `json:"total_withdrawn"`
	PendingWithdrawals int64 `json:"pending_withdrawals"`
	ManualCredits      int64 `json:"manual_credits"`
}

func (t *WalletTransaction) IsPending() bool {
	return t.Status == WalletTransactionStatusPending
}
