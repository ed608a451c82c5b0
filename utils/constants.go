package utils

import (
	"time"
)

// OTP constants
const (
	// OTPLength is the number of digits of an activation passcode
	OTPLength = 6

	// OTPExpiry is the default time-to-live for activation passcodes (10 minutes)
	OTPExpiry = 10 * time.Minute

	// OTPMaxAttempts is the default number of wrong guesses a challenge tolerates
	OTPMaxAttempts = 5
)

// Tag constants
const (
	// MaxBulkTagCount caps a single bulk generation batch
	MaxBulkTagCount = 500

	// ShortCodeLength is the length of a tag short code
	ShortCodeLength = 8

	// ShortCodeRandomBytes is the entropy drawn for each short code
	ShortCodeRandomBytes = 6

	// ShortURLPathPrefix is the path visitors land on when scanning a tag
	ShortURLPathPrefix = "/r/"

	// BatchNameDateLayout formats the default batch name suffix
	BatchNameDateLayout = "2006-01-02"
)

// Sale defaults, in minor units (1/100 of the currency unit)
const (
	DefaultTotalSaleAmount = 29900
	DefaultCostAmount      = 12900

	DefaultActivationMessage = "Tag activated by affiliate/admin"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Pagination
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
