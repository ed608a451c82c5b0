// Package services provides external service integrations and technical concerns like notifications, tokens and media
package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	phoneCipherIVSize  = 16
	phoneCipherTagSize = 16
	phoneCipherSalt    = "salt"
)

var ErrMalformedCiphertext = errors.New("malformed phone ciphertext")

// PhoneCipher encrypts owner phone numbers into the "iv:tag:ciphertext" hex format
type PhoneCipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(encoded string) (string, error)
}

type phoneCipherImpl struct {
	aead cipher.AEAD
}

// NewPhoneCipher derives an AES-256-GCM key from secret with scrypt
func NewPhoneCipher(secret string) (PhoneCipher, error) {
	if secret == "" {
		return nil, errors.New("phone encryption secret is required")
	}
	key, err := scrypt.Key([]byte(secret), []byte(phoneCipherSalt), 16384, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive phone key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, phoneCipherIVSize)
	if err != nil {
		return nil, err
	}
	return &phoneCipherImpl{aead: aead}, nil
}

func (c *phoneCipherImpl) Encrypt(plain string) (string, error) {
	iv := make([]byte, phoneCipherIVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, []byte(plain), nil)
	// Seal appends the tag to the ciphertext
	ct, tag := sealed[:len(sealed)-phoneCipherTagSize], sealed[len(sealed)-phoneCipherTagSize:]
	return strings.Join([]string{hex.EncodeToString(iv), hex.EncodeToString(tag), hex.EncodeToString(ct)}, ":"), nil
}

func (c *phoneCipherImpl) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", ErrMalformedCiphertext
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != phoneCipherIVSize {
		return "", ErrMalformedCiphertext
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != phoneCipherTagSize {
		return "", ErrMalformedCiphertext
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	plain, err := c.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt phone: %w", err)
	}
	return string(plain), nil
}
