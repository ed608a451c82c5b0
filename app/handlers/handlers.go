// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/taptag/app/dto"
	"github.com/amirphl/taptag/app/middleware"
	businessflow "github.com/amirphl/taptag/business_flow"
	"github.com/amirphl/taptag/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

const defaultRequestTimeout = 30 * time.Second

func ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, retryable bool, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:      errorCode,
			Retryable: retryable,
			Details:   details,
		},
	})
}

func SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// StatusForKind maps a business error kind to its HTTP status
func StatusForKind(kind businessflow.ErrorKind) int {
	switch kind {
	case businessflow.KindNotFound:
		return fiber.StatusNotFound
	case businessflow.KindConflict:
		return fiber.StatusConflict
	case businessflow.KindValidationFailed:
		return fiber.StatusBadRequest
	case businessflow.KindChallengeExpiredOrInvalid,
		businessflow.KindInsufficientBalance,
		businessflow.KindCommissionProfileMissing:
		return fiber.StatusUnprocessableEntity
	case businessflow.KindAttemptsExceeded, businessflow.KindRateLimited:
		return fiber.StatusTooManyRequests
	case businessflow.KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// handleFlowError writes a business error; internal causes are logged and never shown to the client
func handleFlowError(c fiber.Ctx, logger *log.Logger, err error) error {
	var be *businessflow.BusinessError
	if !errors.As(err, &be) {
		logger.Printf("unclassified error on %s %s: %v", c.Method(), c.Path(), err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", false, nil)
	}

	status := StatusForKind(be.Kind)
	if status == fiber.StatusInternalServerError {
		logger.Printf("%s on %s %s: %v", be.Code, c.Method(), c.Path(), be)
		return ErrorResponse(c, status, be.Message, be.Code, be.Retryable, nil)
	}
	return ErrorResponse(c, status, be.Message, be.Code, be.Retryable, be.Details)
}

func validateRequest(c fiber.Ctx, v *validator.Validate, req any) error {
	if err := v.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", false, err.Error())
		}
		messages := make([]string, 0, len(fieldErrors))
		for _, fe := range fieldErrors {
			messages = append(messages, getValidationErrorMessage(fe))
		}
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", false, messages)
	}
	return nil
}

// actorFrom builds the caller identity placed by the auth middleware
func actorFrom(c fiber.Ctx) (businessflow.Actor, bool) {
	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return businessflow.Actor{}, false
	}
	return businessflow.Actor{ID: claims.UserID, Role: claims.Role}, true
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestid.FromContext(c))
	return metadata
}

// createRequestContext detaches the flow from fiber's pooled context and bounds it with a timeout
func createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, defaultRequestTimeout)
	return ctx, cancel
}

func parseIDParam(c fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// optionalQuery returns nil for an absent or empty query value
func optionalQuery(c fiber.Ctx, key string) *string {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	return &v
}

func optionalUintQuery(c fiber.Ctx, key string) (*uint, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a positive integer", key)
	}
	id := uint(n)
	return &id, nil
}

func pageQuery(c fiber.Ctx) (int, int, error) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil {
		return 0, 0, fmt.Errorf("page must be an integer")
	}
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(utils.DefaultPageSize)))
	if err != nil {
		return 0, 0, fmt.Errorf("limit must be an integer")
	}
	return page, limit, nil
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
