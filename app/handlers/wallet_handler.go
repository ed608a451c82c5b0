package handlers

import (
	"log"

	"github.com/amirphl/taptag/app/dto"
	businessflow "github.com/amirphl/taptag/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type WalletHandlerInterface interface {
	GetMyWallet(c fiber.Ctx) error
	RequestWithdrawal(c fiber.Ctx) error
	GetUserWallet(c fiber.Ctx) error
	UpdateTransactionStatus(c fiber.Ctx) error
	CreateManualCredit(c fiber.Ctx) error
}

type WalletHandler struct {
	flow      businessflow.WalletFlow
	validator *validator.Validate
	logger    *log.Logger
}

func NewWalletHandler(flow businessflow.WalletFlow, logger *log.Logger) *WalletHandler {
	return &WalletHandler{
		flow:      flow,
		validator: validator.New(),
		logger:    logger,
	}
}

func (h *WalletHandler) summary(c fiber.Ctx, userID uint, actor businessflow.Actor, endpoint string) error {
	page, limit, err := pageQuery(c)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", false, nil)
	}

	ctx, cancel := createRequestContext(c, endpoint)
	defer cancel()

	res, err := h.flow.GetWalletSummary(ctx, userID, page, limit, actor)
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Wallet retrieved", res)
}

// GetMyWallet returns the caller's balance and transactions
// @Summary Get own wallet
// @Description Available balance is settled commission plus manual credits minus completed withdrawals
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.WalletSummaryResponse} "Wallet retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/wallet [get]
func (h *WalletHandler) GetMyWallet(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	return h.summary(c, actor.ID, actor, "/api/v1/wallet")
}

// GetUserWallet returns any user's wallet
// @Summary Get user wallet
// @Tags Admin Wallet
// @Produce json
// @Security BearerAuth
// @Param id path int true "User id"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.WalletSummaryResponse} "Wallet retrieved"
// @Failure 404 {object} dto.APIResponse "User not found"
// @Router /api/v1/admin/wallet/users/{id} [get]
func (h *WalletHandler) GetUserWallet(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid user id", "INVALID_ID", false, nil)
	}
	return h.summary(c, userID, actor, "/api/v1/admin/wallet/users/:id")
}

// RequestWithdrawal asks for a payout
// @Summary Request withdrawal
// @Tags Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.RequestWithdrawalRequest true "Amount in minor units"
// @Success 201 {object} dto.APIResponse{data=dto.WalletTransactionDTO} "Withdrawal requested"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 422 {object} dto.APIResponse "Insufficient balance"
// @Router /api/v1/wallet/withdrawals [post]
func (h *WalletHandler) RequestWithdrawal(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	var req dto.RequestWithdrawalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", false, err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/wallet/withdrawals")
	defer cancel()

	res, err := h.flow.RequestWithdrawal(ctx, &req, actor, clientMetadata(c))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusCreated, "Withdrawal requested", res)
}

// UpdateTransactionStatus settles or cancels a pending transaction
// @Summary Update wallet transaction status
// @Tags Admin Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction id"
// @Param request body dto.UpdateTransactionStatusRequest true "New status"
// @Success 200 {object} dto.APIResponse{data=dto.WalletTransactionDTO} "Transaction updated"
// @Failure 404 {object} dto.APIResponse "Transaction not found"
// @Failure 409 {object} dto.APIResponse "Invalid status transition"
// @Router /api/v1/admin/wallet/transactions/{id} [patch]
func (h *WalletHandler) UpdateTransactionStatus(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	txID, ok := parseIDParam(c, "id")
	if !ok {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid transaction id", "INVALID_ID", false, nil)
	}
	var req dto.UpdateTransactionStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", false, err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/wallet/transactions/:id")
	defer cancel()

	res, err := h.flow.UpdateTransactionStatus(ctx, txID, &req, actor, clientMetadata(c))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Transaction updated", res)
}

// CreateManualCredit credits an affiliate's wallet
// @Summary Create manual credit
// @Tags Admin Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateManualCreditRequest true "User, amount and description"
// @Success 201 {object} dto.APIResponse{data=dto.WalletTransactionDTO} "Credit created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "User not found"
// @Router /api/v1/admin/wallet/credits [post]
func (h *WalletHandler) CreateManualCredit(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	var req dto.CreateManualCreditRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", false, err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/wallet/credits")
	defer cancel()

	res, err := h.flow.CreateManualCredit(ctx, &req, actor, clientMetadata(c))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusCreated, "Credit created", res)
}
