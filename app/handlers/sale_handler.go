package handlers

import (
	"log"

	"github.com/amirphl/taptag/app/dto"
	businessflow "github.com/amirphl/taptag/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type SaleHandlerInterface interface {
	ListSales(c fiber.Ctx) error
	GetSale(c fiber.Ctx) error
	CreateSale(c fiber.Ctx) error
	UpdateStatus(c fiber.Ctx) error
	AppendMessage(c fiber.Ctx) error
	ExportSales(c fiber.Ctx) error
}

type SaleHandler struct {
	flow      businessflow.SaleFlow
	validator *validator.Validate
	logger    *log.Logger
}

func NewSaleHandler(flow businessflow.SaleFlow, logger *log.Logger) *SaleHandler {
	return &SaleHandler{
		flow:      flow,
		validator: validator.New(),
		logger:    logger,
	}
}

func parseListSalesQuery(c fiber.Ctx) (*dto.ListSalesRequest, error) {
	page, limit, err := pageQuery(c)
	if err != nil {
		return nil, err
	}
	req := &dto.ListSalesRequest{
		PaymentStatus:      optionalQuery(c, "payment_status"),
		VerificationStatus: optionalQuery(c, "verification_status"),
		Role:               optionalQuery(c, "role"),
		Page:               page,
		Limit:              limit,
	}
	if req.SalesPersonID, err = optionalUintQuery(c, "sales_person_id"); err != nil {
		return nil, err
	}
	if req.OwnerID, err = optionalUintQuery(c, "owner_id"); err != nil {
		return nil, err
	}
	if req.TagID, err = optionalUintQuery(c, "tag_id"); err != nil {
		return nil, err
	}
	return req, nil
}

// ListSales lists sales; affiliates only ever see their own
// @Summary List sales
// @Tags Sales
// @Produce json
// @Security BearerAuth
// @Param sales_person_id query int false "Sales person user id (ignored for affiliates)"
// @Param owner_id query int false "Owner id"
// @Param tag_id query int false "Tag id"
// @Param payment_status query string false "pending, completed or cancelled"
// @Param verification_status query string false "pending, completed or cancelled"
// @Param role query string false "Sales person role"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListSalesResponse} "Sales retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/sales [get]
func (h *SaleHandler) ListSales(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	req, err := parseListSalesQuery(c)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", false, nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/sales")
	defer cancel()

	res, err := h.flow.ListSales(ctx, req, actor)
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Sales retrieved", res)
}

// GetSale returns one sale
// @Summary Get sale
// @Tags Sales
// @Produce json
// @Security BearerAuth
// @Param id path int true "Sale id"
// @Success 200 {object} dto.APIResponse{data=dto.SaleDTO} "Sale retrieved"
// @Failure 404 {object} dto.APIResponse "Sale not found"
// @Router /api/v1/sales/{id} [get]
func (h *SaleHandler) GetSale(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid sale id", "INVALID_ID", false, nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/sales/:id")
	defer cancel()

	res, err := h.flow.GetSale(ctx, id, actor)
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Sale retrieved", res)
}

// CreateSale records a sale by hand for an activated tag without one
// @Summary Record sale
// @Description Use GET /api/v1/sales/verify-tag/{shortCode} first to check the tag
// @Tags Admin Sales
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateSaleRequest true "Tag, amounts and message"
// @Success 201 {object} dto.APIResponse{data=dto.SaleDTO} "Sale recorded"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 409 {object} dto.APIResponse "Tag not activated or sale already exists"
// @Router /api/v1/admin/sales [post]
func (h *SaleHandler) CreateSale(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	var req dto.CreateSaleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", false, err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/sales")
	defer cancel()

	res, err := h.flow.CreateSale(ctx, &req, actor, clientMetadata(c))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusCreated, "Sale recorded", res)
}

// UpdateStatus corrects payment and verification state
// @Summary Correct sale status
// @Description Amounts never change; the message is appended to the sale history
// @Tags Admin Sales
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Sale id"
// @Param request body dto.UpdateSaleStatusRequest true "New statuses and reason"
// @Success 200 {object} dto.APIResponse{data=dto.SaleDTO} "Sale updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Sale not found"
// @Router /api/v1/admin/sales/{id}/status [patch]
func (h *SaleHandler) UpdateStatus(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid sale id", "INVALID_ID", false, nil)
	}
	var req dto.UpdateSaleStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", false, err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/sales/:id/status")
	defer cancel()

	res, err := h.flow.UpdateStatus(ctx, id, &req, actor, clientMetadata(c))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Sale updated", res)
}

// AppendMessage adds a note to a sale
// @Summary Append sale message
// @Tags Admin Sales
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Sale id"
// @Param request body dto.AppendSaleMessageRequest true "Message"
// @Success 200 {object} dto.APIResponse{data=dto.SaleDTO} "Message appended"
// @Failure 404 {object} dto.APIResponse "Sale not found"
// @Router /api/v1/admin/sales/{id}/messages [post]
func (h *SaleHandler) AppendMessage(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid sale id", "INVALID_ID", false, nil)
	}
	var req dto.AppendSaleMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", false, err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/sales/:id/messages")
	defer cancel()

	res, err := h.flow.AppendMessage(ctx, id, &req, actor, clientMetadata(c))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Message appended", res)
}

// ExportSales downloads the filtered sales as a workbook
// @Summary Export sales
// @Tags Admin Sales
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param payment_status query string false "pending, completed or cancelled"
// @Param verification_status query string false "pending, completed or cancelled"
// @Param sales_person_id query int false "Sales person user id"
// @Success 200 {file} binary "XLSX file"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Router /api/v1/admin/sales/export [get]
func (h *SaleHandler) ExportSales(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	req, err := parseListSalesQuery(c)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", false, nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/sales/export")
	defer cancel()

	filename, data, err := h.flow.ExportSales(ctx, req, actor)
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}
