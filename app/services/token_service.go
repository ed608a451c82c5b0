// Package services provides external service integrations and technical concerns like notifications, tokens and media
package services

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"

	"github.com/amirphl/taptag/models"
	"github.com/golang-jwt/jwt/v5"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

const accessTokenType = "access"

// TokenService verifies access tokens minted by the identity service
type TokenService interface {
	ValidateToken(token string) (*TokenClaims, error)
}

// AccessClaims is the JWT payload: sub carries the user id
type AccessClaims struct {
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenClaims is the verified caller identity
type TokenClaims struct {
	UserID  uint
	Role    models.UserRole
	TokenID string
}

type TokenServiceImpl struct {
	parser    *jwt.Parser
	publicKey *rsa.PublicKey
	secretKey []byte
}

// NewTokenService verifies RS256 tokens against publicKeyPEM when useRSAKeys is set, HS256 against secretKey otherwise
func NewTokenService(issuer, audience string, useRSAKeys bool, publicKeyPEM, secretKey string) (TokenService, error) {
	s := &TokenServiceImpl{}
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	if useRSAKeys {
		key, err := parseRSAPublicKey(publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		s.publicKey = key
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	} else {
		if secretKey == "" {
			return nil, fmt.Errorf("secret key is required when not using RSA keys")
		}
		s.secretKey = []byte(secretKey)
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	}

	s.parser = jwt.NewParser(opts...)
	return s, nil
}

func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaPub, nil
}

// ValidateToken checks signature, expiry, issuer and audience, then extracts the actor
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	claims := &AccessClaims{}
	parsed, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		if s.publicKey != nil {
			return s.publicKey, nil
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.TokenType != accessTokenType {
		return nil, ErrTokenInvalid
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return nil, ErrTokenInvalid
	}
	role, ok := models.ParseUserRole(claims.Role)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return &TokenClaims{
		UserID:  uint(userID),
		Role:    role,
		TokenID: claims.ID,
	}, nil
}
