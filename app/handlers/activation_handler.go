package handlers

import (
	"log"

	"github.com/amirphl/taptag/app/dto"
	businessflow "github.com/amirphl/taptag/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type ActivationHandlerInterface interface {
	GetCaptcha(c fiber.Ctx) error
	RequestOTP(c fiber.Ctx) error
	ConfirmActivation(c fiber.Ctx) error
}

type ActivationHandler struct {
	flow      businessflow.ActivationFlow
	validator *validator.Validate
	logger    *log.Logger
}

func NewActivationHandler(flow businessflow.ActivationFlow, logger *log.Logger) *ActivationHandler {
	return &ActivationHandler{
		flow:      flow,
		validator: validator.New(),
		logger:    logger,
	}
}

// GetCaptcha issues a rotate captcha for the passcode request form
// @Summary Get activation captcha
// @Description Returns a rotate captcha challenge; its id and the chosen angle go with request-otp when captcha is enforced
// @Tags Activation
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CaptchaResponse} "Captcha generated"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/activation/captcha [get]
func (h *ActivationHandler) GetCaptcha(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/activation/captcha")
	defer cancel()

	res, err := h.flow.GetCaptcha(ctx)
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Captcha generated", res)
}

// RequestOTP sends an activation passcode to the owner's phone
// @Summary Request activation passcode
// @Description Issues a six digit passcode for a tag and phone pair and sends it by SMS. A new request replaces the previous passcode.
// @Tags Activation
// @Accept json
// @Produce json
// @Param request body dto.RequestOTPRequest true "Tag and phone"
// @Success 200 {object} dto.APIResponse{data=dto.RequestOTPResponse} "Passcode sent"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 409 {object} dto.APIResponse "Tag archived or already activated"
// @Failure 429 {object} dto.APIResponse "Passcode requested too recently"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/activation/request-otp [post]
func (h *ActivationHandler) RequestOTP(c fiber.Ctx) error {
	var req dto.RequestOTPRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", false, err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/activation/request-otp")
	defer cancel()

	res, err := h.flow.RequestOTP(ctx, &req, clientMetadata(c))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Passcode sent", res)
}

// ConfirmActivation verifies the passcode and activates the tag
// @Summary Confirm activation
// @Description Verifies the passcode, binds the tag to its owner and records the sale with its commission split, all in one transaction
// @Tags Activation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ConfirmActivationRequest true "Passcode, owner profile and optional sale parameters"
// @Success 201 {object} dto.APIResponse{data=dto.ConfirmActivationResponse} "Tag activated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Tag or passcode not found"
// @Failure 409 {object} dto.APIResponse "Tag already activated or owner identity conflict"
// @Failure 422 {object} dto.APIResponse "Passcode invalid or expired, or commission profile missing"
// @Failure 429 {object} dto.APIResponse "Too many wrong attempts"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/activation/confirm [post]
func (h *ActivationHandler) ConfirmActivation(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}

	var req dto.ConfirmActivationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", false, err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/activation/confirm")
	defer cancel()

	res, err := h.flow.ConfirmActivation(ctx, &req, actor, clientMetadata(c))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusCreated, "Tag activated", res)
}
