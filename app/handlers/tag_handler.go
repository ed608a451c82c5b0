package handlers

import (
	"log"

	"github.com/amirphl/taptag/app/dto"
	businessflow "github.com/amirphl/taptag/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type TagHandlerInterface interface {
	BulkGenerate(c fiber.Ctx) error
	ListTags(c fiber.Ctx) error
	Summary(c fiber.Ctx) error
	AssignTags(c fiber.Ctx) error
	ArchiveTag(c fiber.Ctx) error
	StickerQR(c fiber.Ctx) error
	PublicScan(c fiber.Ctx) error
	VerifyTagForSale(c fiber.Ctx) error
}

type TagHandler struct {
	flow      businessflow.TagFlow
	validator *validator.Validate
	logger    *log.Logger
}

func NewTagHandler(flow businessflow.TagFlow, logger *log.Logger) *TagHandler {
	return &TagHandler{
		flow:      flow,
		validator: validator.New(),
		logger:    logger,
	}
}

// BulkGenerate creates a batch of tags
// @Summary Bulk generate tags
// @Tags Admin Tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BulkGenerateTagsRequest true "Count and optional batch name"
// @Success 201 {object} dto.APIResponse{data=dto.BulkGenerateTagsResponse} "Tags generated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/tags/bulk [post]
func (h *TagHandler) BulkGenerate(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	var req dto.BulkGenerateTagsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", false, err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/tags/bulk")
	defer cancel()

	res, err := h.flow.BulkGenerate(ctx, &req, actor, clientMetadata(c))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusCreated, "Tags generated", res)
}

// ListTags lists tags with optional filters
// @Summary List tags
// @Tags Admin Tags
// @Produce json
// @Security BearerAuth
// @Param status query string false "generated, assigned, activated or archived"
// @Param batch_name query string false "Batch name"
// @Param search query string false "Matches short code or tag id"
// @Param assigned_to query int false "Affiliate user id"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListTagsResponse} "Tags retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/admin/tags [get]
func (h *TagHandler) ListTags(c fiber.Ctx) error {
	page, limit, err := pageQuery(c)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", false, nil)
	}
	assignedTo, err := optionalUintQuery(c, "assigned_to")
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", false, nil)
	}
	req := &dto.ListTagsRequest{
		Status:     optionalQuery(c, "status"),
		BatchName:  optionalQuery(c, "batch_name"),
		Search:     optionalQuery(c, "search"),
		AssignedTo: assignedTo,
		Page:       page,
		Limit:      limit,
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/tags")
	defer cancel()

	res, err := h.flow.ListTags(ctx, req)
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Tags retrieved", res)
}

// Summary returns the dashboard counters
// @Summary Tag summary
// @Tags Admin Tags
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.TagSummaryResponse} "Summary retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/admin/tags/summary [get]
func (h *TagHandler) Summary(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/admin/tags/summary")
	defer cancel()

	res, err := h.flow.Summary(ctx)
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Summary retrieved", res)
}

// AssignTags hands generated tags to an affiliate
// @Summary Assign tags to an affiliate
// @Tags Admin Tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AssignTagsRequest true "Short codes and affiliate"
// @Success 200 {object} dto.APIResponse{data=dto.AssignTagsResponse} "Tags assigned"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Affiliate not found"
// @Router /api/v1/admin/tags/assign [post]
func (h *TagHandler) AssignTags(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}
	var req dto.AssignTagsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", false, err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/tags/assign")
	defer cancel()

	res, err := h.flow.AssignTags(ctx, &req, actor, clientMetadata(c))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Tags assigned", res)
}

// ArchiveTag retires a tag permanently
// @Summary Archive tag
// @Tags Admin Tags
// @Produce json
// @Security BearerAuth
// @Param shortCode path string true "Tag short code or id"
// @Success 200 {object} dto.APIResponse{data=dto.TagDTO} "Tag archived"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 409 {object} dto.APIResponse "Tag already archived"
// @Router /api/v1/admin/tags/{shortCode}/archive [post]
func (h *TagHandler) ArchiveTag(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", false, nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/tags/archive")
	defer cancel()

	res, err := h.flow.ArchiveTag(ctx, c.Params("shortCode"), actor, clientMetadata(c))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Tag archived", res)
}

// StickerQR returns the printable sticker image
// @Summary Tag QR sticker
// @Tags Admin Tags
// @Produce png
// @Security BearerAuth
// @Param shortCode path string true "Tag short code or id"
// @Success 200 {file} binary "PNG image"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Router /api/v1/admin/tags/{shortCode}/qr [get]
func (h *TagHandler) StickerQR(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/admin/tags/qr")
	defer cancel()

	shortCode := c.Params("shortCode")
	data, err := h.flow.StickerPNG(ctx, shortCode)
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	c.Set("Content-Type", "image/png")
	c.Set("Content-Disposition", "inline; filename=tag_"+shortCode+".png")
	return c.Send(data)
}

// PublicScan is the landing point of a scanned sticker
// @Summary Scan a tag
// @Description Public view of a tag. Only the owner's first name, vehicle type and contact preferences are returned.
// @Tags Public
// @Produce json
// @Param shortCode path string true "Tag short code"
// @Success 200 {object} dto.APIResponse{data=dto.PublicTagResponse} "Tag found"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Router /r/{shortCode} [get]
func (h *TagHandler) PublicScan(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/r")
	defer cancel()

	res, err := h.flow.PublicScan(ctx, c.Params("shortCode"))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Tag found", res)
}

// VerifyTagForSale checks a tag before a sale is recorded by hand
// @Summary Verify tag for a manual sale
// @Tags Sales
// @Produce json
// @Security BearerAuth
// @Param shortCode path string true "Tag short code or id"
// @Success 200 {object} dto.APIResponse{data=dto.VerifyTagForSaleResponse} "Tag can take a sale"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 409 {object} dto.APIResponse "Tag not activated, archived or already sold"
// @Router /api/v1/sales/verify-tag/{shortCode} [get]
func (h *TagHandler) VerifyTagForSale(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/sales/verify-tag")
	defer cancel()

	res, err := h.flow.VerifyTagForSale(ctx, c.Params("shortCode"))
	if err != nil {
		return handleFlowError(c, h.logger, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "Tag verified", res)
}
