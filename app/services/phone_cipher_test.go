package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneCipher_RoundTrip(t *testing.T) {
	c, err := NewPhoneCipher("taptag-phone-encryption-secret-test")
	require.NoError(t, err)

	encoded, err := c.Encrypt("+919999999999")
	require.NoError(t, err)

	parts := strings.Split(encoded, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 32) // 16 byte iv
	assert.Len(t, parts[1], 32) // 16 byte tag
	assert.Len(t, parts[2], 2*len("+919999999999"))

	plain, err := c.Decrypt(encoded)
	require.NoError(t, err)
	assert.Equal(t, "+919999999999", plain)

	other, err := c.Encrypt("+919999999999")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, other)
}

func TestPhoneCipher_RejectsTampering(t *testing.T) {
	c, err := NewPhoneCipher("taptag-phone-encryption-secret-test")
	require.NoError(t, err)

	encoded, err := c.Encrypt("9999999999")
	require.NoError(t, err)
	parts := strings.Split(encoded, ":")

	flipped := []byte(parts[2])
	if flipped[0] == '0' {
		flipped[0] = '1'
	} else {
		flipped[0] = '0'
	}
	_, err = c.Decrypt(parts[0] + ":" + parts[1] + ":" + string(flipped))
	assert.Error(t, err)

	_, err = c.Decrypt("not-a-ciphertext")
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	_, err = c.Decrypt("zz:" + parts[1] + ":" + parts[2])
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestPhoneCipher_WrongSecret(t *testing.T) {
	a, err := NewPhoneCipher("secret-one-secret-one")
	require.NoError(t, err)
	b, err := NewPhoneCipher("secret-two-secret-two")
	require.NoError(t, err)

	encoded, err := a.Encrypt("9999999999")
	require.NoError(t, err)
	_, err = b.Decrypt(encoded)
	assert.Error(t, err)

	_, err = NewPhoneCipher("")
	assert.Error(t, err)
}
