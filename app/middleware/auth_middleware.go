// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/amirphl/taptag/app/dto"
	"github.com/amirphl/taptag/app/services"
	"github.com/amirphl/taptag/models"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// Locals keys set by Authenticate
const (
	LocalUserID      = "user_id"
	LocalUserRole    = "user_role"
	LocalTokenID     = "token_id"
	LocalTokenClaims = "token_claims"
	LocalRequestID   = "request_id"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// Authenticate validates the bearer token and stores the caller's id and role for downstream handlers
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return unauthorized(c, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
			default:
				return unauthorized(c, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalUserRole, claims.Role)
		c.Locals(LocalTokenID, claims.TokenID)
		c.Locals(LocalTokenClaims, claims)
		if requestID := requestid.FromContext(c); requestID != "" {
			c.Locals(LocalRequestID, requestID)
		}

		return c.Next()
	}
}

// RequireRoles rejects authenticated callers whose role is not listed. It must run after Authenticate.
func RequireRoles(roles ...models.UserRole) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := GetTokenClaimsFromContext(c)
		if !ok {
			return unauthorized(c, "Authentication required", "AUTHENTICATION_REQUIRED")
		}
		if !slices.Contains(roles, claims.Role) {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "You are not allowed to perform this action",
				Error:   dto.ErrorDetail{Code: "FORBIDDEN"},
			})
		}
		return c.Next()
	}
}

// RequireAdmin accepts every administrative role
func RequireAdmin() fiber.Handler {
	return RequireRoles(models.UserRoleSupportAdmin, models.UserRoleAdmin, models.UserRoleSuperAdmin)
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals(LocalTokenClaims).(*services.TokenClaims)
	return claims, ok && claims != nil && claims.UserID != 0
}
