package utils

import (
	"strings"
	"unicode"
)

// NormalizePhone keeps the digits of a phone number and an optional leading plus sign
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeVehicleNumber trims, uppercases and drops inner whitespace
func NormalizeVehicleNumber(number string) string {
	return strings.ToUpper(strings.Join(strings.Fields(number), ""))
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MaskPhone hides the middle of a phone number, e.g. 9999****9999
func MaskPhone(phone string) string {
	if len(phone) <= 8 {
		return phone[:min(2, len(phone))] + "****"
	}
	return phone[:4] + "****" + phone[len(phone)-4:]
}

// FirstName returns the first word of a full name
func FirstName(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
