package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/amirphl/taptag/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

func signTestToken(t *testing.T, method jwt.SigningMethod, key any, claims AccessClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() AccessClaims {
	now := time.Now()
	return AccessClaims{
		Role:      string(models.UserRoleAffiliate),
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test-audience"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
			ID:        "token-1",
		},
	}
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name         string
		useRSAKeys   bool
		publicKeyPEM string
		secretKey    string
		expectError  bool
	}{
		{name: "valid symmetric key configuration", secretKey: testSecret},
		{name: "missing secret key", expectError: true},
		{name: "rsa without key", useRSAKeys: true, expectError: true},
		{name: "rsa with garbage key", useRSAKeys: true, publicKeyPEM: "not a pem", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService("test-issuer", "test-audience", tt.useRSAKeys, tt.publicKeyPEM, tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestValidateToken_HMAC(t *testing.T) {
	service, err := NewTokenService("test-issuer", "test-audience", false, "", testSecret)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		token := signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())
		claims, err := service.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.UserID)
		assert.Equal(t, models.UserRoleAffiliate, claims.Role)
		assert.Equal(t, "token-1", claims.TokenID)
	})

	tests := []struct {
		name    string
		mutate  func(c *AccessClaims)
		key     []byte
		wantErr error
	}{
		{"expired", func(c *AccessClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) }, nil, ErrTokenExpired},
		{"wrong key", func(c *AccessClaims) {}, []byte("another-secret-key-for-jwt-32-chars!"), ErrTokenInvalid},
		{"wrong issuer", func(c *AccessClaims) { c.Issuer = "someone-else" }, nil, ErrTokenInvalid},
		{"wrong audience", func(c *AccessClaims) { c.Audience = jwt.ClaimStrings{"other"} }, nil, ErrTokenInvalid},
		{"refresh token", func(c *AccessClaims) { c.TokenType = "refresh" }, nil, ErrTokenInvalid},
		{"unknown role", func(c *AccessClaims) { c.Role = "owner" }, nil, ErrTokenInvalid},
		{"non numeric subject", func(c *AccessClaims) { c.Subject = "abc" }, nil, ErrTokenInvalid},
		{"missing expiry", func(c *AccessClaims) { c.ExpiresAt = nil }, nil, ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(&claims)
			key := tt.key
			if key == nil {
				key = []byte(testSecret)
			}
			_, err := service.ValidateToken(signTestToken(t, jwt.SigningMethodHS256, key, claims))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = service.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateToken_RSA(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	publicPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	service, err := NewTokenService("test-issuer", "test-audience", true, publicPEM, "")
	require.NoError(t, err)

	claims := validClaims()
	claims.Role = string(models.UserRoleAdmin)
	got, err := service.ValidateToken(signTestToken(t, jwt.SigningMethodRS256, privateKey, claims))
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdmin, got.Role)

	// HS256 token signed with the public key bytes must not pass
	forged := signTestToken(t, jwt.SigningMethodHS256, []byte(publicPEM), claims)
	_, err = service.ValidateToken(forged)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
