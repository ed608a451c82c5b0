package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/amirphl/taptag/app/dto"
	"github.com/amirphl/taptag/config"
	"github.com/amirphl/taptag/models"
	"github.com/amirphl/taptag/repository"
	"github.com/amirphl/taptag/utils"
	"github.com/google/uuid"
)

const withdrawalDescription = "Withdrawal request"

// WalletFlow derives affiliate balances from the sale ledger and manages the withdrawal ledger.
// A balance is never stored; it is recomputed from both ledgers on every read.
type WalletFlow interface {
	GetWalletSummary(ctx context.Context, userID uint, page, limit int, actor Actor) (*dto.WalletSummaryResponse, error)
	RequestWithdrawal(ctx context.Context, req *dto.RequestWithdrawalRequest, actor Actor, metadata *ClientMetadata) (*dto.WalletTransactionDTO, error)
	UpdateTransactionStatus(ctx context.Context, txID uint, req *dto.UpdateTransactionStatusRequest, actor Actor, metadata *ClientMetadata) (*dto.WalletTransactionDTO, error)
	CreateManualCredit(ctx context.Context, req *dto.CreateManualCreditRequest, actor Actor, metadata *ClientMetadata) (*dto.WalletTransactionDTO, error)
}

type WalletFlowImpl struct {
	userRepo           repository.UserRepository
	saleRepo           repository.SaleRepository
	walletRepo         repository.WalletTransactionRepository
	txManager          repository.TxManager
	countManualCredits bool
	logger             *log.Logger
	audit              auditRecorder
	now                clock
}

func NewWalletFlow(
	userRepo repository.UserRepository,
	saleRepo repository.SaleRepository,
	walletRepo repository.WalletTransactionRepository,
	auditRepo repository.AuditLogRepository,
	txManager repository.TxManager,
	cfg *config.ProductionConfig,
	logger *log.Logger,
) WalletFlow {
	return &WalletFlowImpl{
		userRepo:           userRepo,
		saleRepo:           saleRepo,
		walletRepo:         walletRepo,
		txManager:          txManager,
		countManualCredits: cfg.Commission.CountManualCredits,
		logger:             logger,
		audit:              auditRecorder{repo: auditRepo, logger: logger},
		now:                utils.UTCNow,
	}
}

// balance is the wallet projection of one affiliate at a point in time
type balance struct {
	completed    models.SalesTotals
	pending      models.SalesTotals
	ledger       models.WalletTotals
	available    int64
	withdrawable int64
}

// AvailableBalance is earned commission minus completed withdrawals, floored at zero.
// Pending withdrawals are reported but not deducted.
func AvailableBalance(earned, totalWithdrawn int64) int64 {
	return max(earned-totalWithdrawn, 0)
}

// WithdrawableBalance is what a new withdrawal may take once pending ones are reserved
func WithdrawableBalance(available, pendingWithdrawals int64) int64 {
	return max(available-pendingWithdrawals, 0)
}

func (f *WalletFlowImpl) loadBalance(ctx context.Context, userID uint) (*balance, error) {
	completed, err := f.saleRepo.CompletedTotals(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending, err := f.saleRepo.PendingTotals(ctx, userID)
	if err != nil {
		return nil, err
	}
	ledger, err := f.walletRepo.Totals(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned := completed.Commission
	if f.countManualCredits {
		earned += ledger.ManualCredits
	}
	available := AvailableBalance(earned, ledger.TotalWithdrawn)
	return &balance{
		completed:    completed,
		pending:      pending,
		ledger:       ledger,
		available:    available,
		withdrawable: WithdrawableBalance(available, ledger.PendingWithdrawals),
	}, nil
}

func (f *WalletFlowImpl) GetWalletSummary(ctx context.Context, userID uint, page, limit int, actor Actor) (*dto.WalletSummaryResponse, error) {
	if !actor.Role.IsAdministrative() && actor.ID != userID {
		return nil, toBusinessError(ErrForbidden, "", "")
	}
	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return nil, toBusinessError(err, "", "")
	}

	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("WALLET_SUMMARY_FAILED", "Failed to load wallet", err)
	}
	if user == nil {
		return nil, toBusinessError(ErrAffiliateNotFound, "", "")
	}

	bal, err := f.loadBalance(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("WALLET_SUMMARY_FAILED", "Failed to load wallet", err)
	}

	filter := models.WalletTransactionFilter{UserID: &userID}
	total, err := f.walletRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("WALLET_SUMMARY_FAILED", "Failed to load wallet", err)
	}
	rows, err := f.walletRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("WALLET_SUMMARY_FAILED", "Failed to load wallet", err)
	}
	txs := make([]dto.WalletTransactionDTO, 0, len(rows))
	for _, t := range rows {
		txs = append(txs, ToWalletTransactionDTO(t))
	}

	return &dto.WalletSummaryResponse{
		UserID: userID,
		Sales: dto.SalesAggregates{
			CompletedCommission:      bal.completed.Commission,
			CompletedSalesAmount:     bal.completed.SalesAmount,
			CompletedCost:            bal.completed.Cost,
			CompletedOwnerCommission: bal.completed.OwnerCommission,
			CompletedCards:           bal.completed.Cards,
			PendingCommission:        bal.pending.Commission,
			PendingSalesAmount:       bal.pending.SalesAmount,
			PendingCards:             bal.pending.Cards,
		},
		TotalWithdrawn:      bal.ledger.TotalWithdrawn,
		PendingWithdrawals:  bal.ledger.PendingWithdrawals,
		ManualCredits:       bal.ledger.ManualCredits,
		AvailableBalance:    bal.available,
		WithdrawableBalance: bal.withdrawable,
		Transactions:        txs,
		Pagination:          buildPagination(total, page, limit),
	}, nil
}

// RequestWithdrawal records a pending debit against the withdrawable balance. The
// affiliate row lock serializes concurrent requests so two of them can never both
// spend the same balance.
func (f *WalletFlowImpl) RequestWithdrawal(ctx context.Context, req *dto.RequestWithdrawalRequest, actor Actor, metadata *ClientMetadata) (*dto.WalletTransactionDTO, error) {
	if actor.Role != models.UserRoleAffiliate {
		return nil, toBusinessError(ErrUserNotAffiliate, "", "")
	}
	if req.Amount <= 0 {
		return nil, toBusinessError(ErrInvalidAmount, "", "")
	}

	var (
		created      *models.WalletTransaction
		withdrawable int64
	)
	err := f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		user, err := f.userRepo.ByIDForUpdate(txCtx, actor.ID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrAffiliateNotFound
		}
		if !user.IsActive {
			return ErrUserInactive
		}

		bal, err := f.loadBalance(txCtx, user.ID)
		if err != nil {
			return err
		}
		withdrawable = bal.withdrawable
		if req.Amount > withdrawable {
			return ErrInsufficientBalance
		}

		created = &models.WalletTransaction{
			UUID:            uuid.New(),
			UserID:          user.ID,
			Type:            models.WalletTransactionTypeDebit,
			Status:          models.WalletTransactionStatusPending,
			Amount:          req.Amount,
			BalanceSnapshot: withdrawable - req.Amount,
			Description:     withdrawalDescription,
			Notes:           trimmedOrNil(req.Notes),
			CreatedBy:       &actor.ID,
		}
		return f.walletRepo.Save(txCtx, created)
	})
	if err != nil {
		withdrawalsTotal.WithLabelValues(withdrawalResult(err)).Inc()
		if IsInsufficientBalance(err) {
			f.audit.record(ctx, &actor.ID, models.AuditActionWithdrawalRejected,
				fmt.Sprintf("Withdrawal of %s rejected, withdrawable %s", utils.FormatMinor(req.Amount), utils.FormatMinor(withdrawable)),
				false, err, metadata, map[string]any{"amount": req.Amount, "withdrawable": withdrawable})
			return nil, NewBusinessError("INSUFFICIENT_BALANCE", ErrInsufficientBalance.Error(), err).
				WithDetails(map[string]any{"withdrawable_balance": withdrawable})
		}
		return nil, toBusinessError(err, "WITHDRAWAL_FAILED", "Failed to request withdrawal")
	}
	withdrawalsTotal.WithLabelValues("ok").Inc()

	f.audit.record(ctx, &actor.ID, models.AuditActionWithdrawalRequested,
		fmt.Sprintf("Withdrawal of %s requested", utils.FormatMinor(req.Amount)), true, nil, metadata,
		map[string]any{"wallet_transaction_id": created.ID, "amount": req.Amount})
	out := ToWalletTransactionDTO(created)
	return &out, nil
}

// UpdateTransactionStatus settles a pending movement. Setting the current status again is a no-op.
// A debit is completed only while the affiliate's available balance still covers it.
func (f *WalletFlowImpl) UpdateTransactionStatus(ctx context.Context, txID uint, req *dto.UpdateTransactionStatusRequest, actor Actor, metadata *ClientMetadata) (*dto.WalletTransactionDTO, error) {
	next := models.WalletTransactionStatus(req.Status)
	if !next.IsValid() {
		return nil, toBusinessError(ErrInvalidStatus, "", "")
	}

	var (
		updated *models.WalletTransaction
		changed bool
	)
	err := f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		t, err := f.walletRepo.ByIDForUpdate(txCtx, txID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTransactionNotFound
		}
		updated = t
		if t.Status == next {
			return nil
		}
		if !t.IsPending() || next == models.WalletTransactionStatusPending {
			return ErrInvalidStatusTransition
		}

		t.Status = next
		if notes := trimmedOrNil(req.Notes); notes != nil {
			t.Notes = notes
		}
		if next == models.WalletTransactionStatusCompleted {
			if t.Type == models.WalletTransactionTypeDebit {
				if err := f.coverDebit(txCtx, t); err != nil {
					return err
				}
			}
			now := f.now()
			t.ApprovedBy = &actor.ID
			t.ApprovedAt = &now
		}
		changed = true
		return f.walletRepo.Update(txCtx, t)
	})
	if err != nil {
		return nil, toBusinessError(err, "UPDATE_TRANSACTION_FAILED", "Failed to update wallet transaction")
	}

	if changed {
		f.audit.record(ctx, &actor.ID, models.AuditActionTransactionUpdated,
			fmt.Sprintf("Wallet transaction %d set to %s", updated.ID, updated.Status), true, nil, metadata,
			map[string]any{"wallet_transaction_id": updated.ID, "status": string(updated.Status)})
	}
	out := ToWalletTransactionDTO(updated)
	return &out, nil
}

// coverDebit locks the affiliate and checks the balance before a debit is paid out
func (f *WalletFlowImpl) coverDebit(ctx context.Context, t *models.WalletTransaction) error {
	user, err := f.userRepo.ByIDForUpdate(ctx, t.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrAffiliateNotFound
	}
	bal, err := f.loadBalance(ctx, user.ID)
	if err != nil {
		return err
	}
	if t.Amount > bal.available {
		return ErrInsufficientBalance
	}
	return nil
}

// CreateManualCredit appends a completed credit in favour of an affiliate
func (f *WalletFlowImpl) CreateManualCredit(ctx context.Context, req *dto.CreateManualCreditRequest, actor Actor, metadata *ClientMetadata) (*dto.WalletTransactionDTO, error) {
	if req.Amount <= 0 {
		return nil, toBusinessError(ErrInvalidAmount, "", "")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Manual credit"
	}

	var created *models.WalletTransaction
	err := f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		user, err := f.userRepo.ByIDForUpdate(txCtx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrAffiliateNotFound
		}
		if user.Role != models.UserRoleAffiliate {
			return ErrUserNotAffiliate
		}

		bal, err := f.loadBalance(txCtx, user.ID)
		if err != nil {
			return err
		}
		snapshot := bal.available
		if f.countManualCredits {
			snapshot += req.Amount
		}
		now := f.now()
		created = &models.WalletTransaction{
			UUID:            uuid.New(),
			UserID:          user.ID,
			Type:            models.WalletTransactionTypeCredit,
			Status:          models.WalletTransactionStatusCompleted,
			Amount:          req.Amount,
			BalanceSnapshot: snapshot,
			Description:     description,
			CreatedBy:       &actor.ID,
			ApprovedBy:      &actor.ID,
			ApprovedAt:      &now,
		}
		return f.walletRepo.Save(txCtx, created)
	})
	if err != nil {
		return nil, toBusinessError(err, "MANUAL_CREDIT_FAILED", "Failed to create manual credit")
	}

	f.audit.record(ctx, &actor.ID, models.AuditActionManualCreditCreated,
		fmt.Sprintf("Manual credit of %s for user %d", utils.FormatMinor(req.Amount), req.UserID), true, nil, metadata,
		map[string]any{"wallet_transaction_id": created.ID, "user_id": req.UserID, "amount": req.Amount})
	out := ToWalletTransactionDTO(created)
	return &out, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func withdrawalResult(err error) string {
	switch {
	case IsInsufficientBalance(err):
		return "insufficient_balance"
	case errors.Is(err, ErrUserInactive), errors.Is(err, ErrAffiliateNotFound):
		return "rejected"
	default:
		return "error"
	}
}
