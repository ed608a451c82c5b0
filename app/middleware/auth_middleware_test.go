package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/taptag/app/services"
	"github.com/amirphl/taptag/models"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret-at-least-32-chars"

type envelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
	Data map[string]any `json:"data"`
}

func signToken(t *testing.T, subject, role string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := services.AccessClaims{
		Role:      role,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "taptag-test",
			Audience:  jwt.ClaimStrings{"taptag"},
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        "jti-1",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	tokenService, err := services.NewTokenService("taptag-test", "taptag", false, "", testSecret)
	require.NoError(t, err)
	auth := NewAuthMiddleware(tokenService)

	app := fiber.New()
	echo := func(c fiber.Ctx) error {
		claims, ok := GetTokenClaimsFromContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.JSON(fiber.Map{"data": fiber.Map{
			"user_id":  claims.UserID,
			"role":     string(claims.Role),
			"token_id": c.Locals(LocalTokenID),
		}})
	}
	app.Get("/me", auth.Authenticate(), echo)
	app.Get("/admin", auth.Authenticate(), RequireAdmin(), echo)
	app.Get("/affiliates", auth.Authenticate(), RequireRoles(models.UserRoleAffiliate), echo)
	return app
}

func call(t *testing.T, app *fiber.App, path, authHeader string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	if resp.StatusCode != fiber.StatusTeapot {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func TestAuthenticate(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{name: "missing header", wantStatus: 401, wantCode: "MISSING_AUTHORIZATION_HEADER"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantStatus: 401, wantCode: "INVALID_AUTHORIZATION_FORMAT"},
		{name: "garbage token", header: "Bearer not.a.jwt", wantStatus: 401, wantCode: "TOKEN_INVALID"},
		{name: "expired token", header: "Bearer " + signToken(t, "7", "affiliate", -time.Minute), wantStatus: 401, wantCode: "TOKEN_EXPIRED"},
		{name: "unknown role", header: "Bearer " + signToken(t, "7", "janitor", time.Hour), wantStatus: 401, wantCode: "TOKEN_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, "/me", tt.header)
			assert.Equal(t, tt.wantStatus, status)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}

	t.Run("valid token exposes claims", func(t *testing.T) {
		status, body := call(t, app, "/me", "Bearer "+signToken(t, "7", "affiliate", time.Hour))
		require.Equal(t, 200, status)
		assert.Equal(t, float64(7), body.Data["user_id"])
		assert.Equal(t, "affiliate", body.Data["role"])
		assert.Equal(t, "jti-1", body.Data["token_id"])
	})
}

func TestRequireRoles(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name       string
		path       string
		role       string
		wantStatus int
	}{
		{name: "affiliate on admin route", path: "/admin", role: "affiliate", wantStatus: 403},
		{name: "support admin on admin route", path: "/admin", role: "support_admin", wantStatus: 200},
		{name: "super admin on admin route", path: "/admin", role: "super_admin", wantStatus: 200},
		{name: "admin on affiliate route", path: "/affiliates", role: "admin", wantStatus: 403},
		{name: "affiliate on affiliate route", path: "/affiliates", role: "affiliate", wantStatus: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, tt.path, "Bearer "+signToken(t, "3", tt.role, time.Hour))
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantStatus == 403 {
				assert.Equal(t, "FORBIDDEN", body.Error.Code)
			}
		})
	}
}

func TestGetTokenClaimsFromContextWithoutAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c fiber.Ctx) error {
		_, ok := GetTokenClaimsFromContext(c)
		if ok {
			return c.SendStatus(fiber.StatusOK)
		}
		return c.SendStatus(fiber.StatusUnauthorized)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
