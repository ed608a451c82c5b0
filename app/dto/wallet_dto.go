package dto

import "time"

// SalesAggregates are the sale derived parts of a wallet, in minor units
type SalesAggregates struct {
	CompletedCommission      int64 `json:"completed_commission"`
	CompletedSalesAmount     int64 `json:"completed_sales_amount"`
	CompletedCost            int64 `json:"completed_cost"`
	CompletedOwnerCommission int64 `json:"completed_owner_commission"`
	CompletedCards           int64 `json:"completed_cards"`
	PendingCommission        int64 `json:"pending_commission"`
	PendingSalesAmount       int64 `json:"pending_sales_amount"`
	PendingCards             int64 `json:"pending_cards"`
}

// WalletSummaryResponse reports AvailableBalance before pending withdrawals and
// WithdrawableBalance after them
type WalletSummaryResponse struct {
	UserID              uint                   `json:"user_id"`
	Sales               SalesAggregates        `json:"sales"`
	TotalWithdrawn      int64                  `json:"total_withdrawn"`
	PendingWithdrawals  int64                  `json:"pending_withdrawals"`
	ManualCredits       int64                  `json:"manual_credits"`
	AvailableBalance    int64                  `json:"available_balance"`
	WithdrawableBalance int64                  `json:"withdrawable_balance"`
	Transactions        []WalletTransactionDTO `json:"transactions"`
	Pagination          PaginationInfo         `json:"pagination"`
}

type WalletTransactionDTO struct {
	ID              uint       `json:"id"`
	UUID            string     `json:"uuid"`
	UserID          uint       `json:"user_id"`
	SaleID          *uint      `json:"sale_id,omitempty"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	Amount          int64      `json:"amount"`
	BalanceSnapshot int64      `json:"balance_snapshot"`
	Description     string     `json:"description"`
	Notes           *string    `json:"notes,omitempty"`
	ApprovedBy      *uint      `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// RequestWithdrawalRequest asks to pay out part of the available balance
type RequestWithdrawalRequest struct {
	Amount int64   `json:"amount" validate:"required,gt=0"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type UpdateTransactionStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=pending completed cancelled"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type CreateManualCreditRequest struct {
	UserID      uint   `json:"user_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"required,max=255"`
}
