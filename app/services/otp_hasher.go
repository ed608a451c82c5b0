// Package services provides external service integrations and technical concerns like notifications, tokens and media
package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// OTPHasher generates passcodes and turns them into the form kept at rest
type OTPHasher interface {
	Generate(length int) (string, error)
	Hash(code string) (string, error)
	Matches(hash, code string) bool
}

type otpHasherImpl struct {
	pepper []byte
	cost   int
}

// NewOTPHasher peppers codes with HMAC-SHA256 before bcrypt
func NewOTPHasher(pepper string, cost int) (OTPHasher, error) {
	if pepper == "" {
		return nil, errors.New("otp pepper is required")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	return &otpHasherImpl{pepper: []byte(pepper), cost: cost}, nil
}

// Generate returns a uniformly random numeric code of the given length
func (h *otpHasherImpl) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("otp length must be positive")
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate otp: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

func (h *otpHasherImpl) Hash(code string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(h.mac(code), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash otp: %w", err)
	}
	return string(hashed), nil
}

func (h *otpHasherImpl) Matches(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), h.mac(code)) == nil
}

func (h *otpHasherImpl) mac(code string) []byte {
	m := hmac.New(sha256.New, h.pepper)
	m.Write([]byte(code))
	return []byte(hex.EncodeToString(m.Sum(nil)))
}
