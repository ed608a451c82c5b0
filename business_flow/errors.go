// Package businessflow contains the core use cases of tag activation, sales and wallets
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Tag errors
	ErrTagNotFound          = errors.New("tag not found")
	ErrTagArchived          = errors.New("tag is archived")
	ErrTagAlreadyActivated  = errors.New("tag is already activated")
	ErrTagNotActivated      = errors.New("tag is not activated")
	ErrInvalidTagTransition = errors.New("invalid tag status transition")
	ErrInvalidBulkCount     = errors.New("bulk count must be between 1 and 500")

	// Challenge errors
	ErrOTPNotRequested  = errors.New("no passcode was requested for this tag and phone")
	ErrOTPExpired       = errors.New("passcode has expired")
	ErrInvalidOTP       = errors.New("invalid passcode")
	ErrAttemptsExceeded = errors.New("too many wrong passcode attempts")
	ErrOTPCooldown      = errors.New("a passcode was sent recently")
	ErrCaptchaRequired  = errors.New("captcha is required")
	ErrCaptchaInvalid   = errors.New("captcha answer is invalid")

	// Owner errors
	ErrOwnerIdentityConflict = errors.New("phone and vehicle number belong to different owners")
	ErrInvalidPhone          = errors.New("phone number is invalid")
	ErrInvalidVehicleNumber  = errors.New("vehicle number is invalid")

	// Sale and commission errors
	ErrSaleNotFound             = errors.New("sale not found")
	ErrSaleAlreadyExists        = errors.New("a sale already exists for this tag")
	ErrInvalidAmount            = errors.New("amount is invalid")
	ErrInvalidPercentage        = errors.New("commission percentage must be between 0 and 100")
	ErrInvalidStatus            = errors.New("status is invalid")
	ErrMessageRequired          = errors.New("message is required")
	ErrInvalidRole              = errors.New("role is not recognised")
	ErrCommissionProfileMissing = errors.New("commission profile is missing")

	// Affiliate and wallet errors
	ErrAffiliateNotFound       = errors.New("affiliate not found")
	ErrUserNotAffiliate        = errors.New("user is not an affiliate")
	ErrUserInactive            = errors.New("user is inactive")
	ErrTransactionNotFound     = errors.New("wallet transaction not found")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// Access and concurrency
	ErrForbidden        = errors.New("forbidden")
	ErrConcurrentUpdate = errors.New("concurrent update, please retry")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

// ErrorKind classifies a BusinessError for transport mapping
type ErrorKind string

const (
	KindNotFound                  ErrorKind = "NotFound"
	KindConflict                  ErrorKind = "Conflict"
	KindValidationFailed          ErrorKind = "ValidationFailed"
	KindChallengeExpiredOrInvalid ErrorKind = "ChallengeExpiredOrInvalid"
	KindAttemptsExceeded          ErrorKind = "AttemptsExceeded"
	KindInsufficientBalance       ErrorKind = "InsufficientBalance"
	KindCommissionProfileMissing  ErrorKind = "CommissionProfileMissing"
	KindForbidden                 ErrorKind = "Forbidden"
	KindRateLimited               ErrorKind = "RateLimited"
	KindInternal                  ErrorKind = "Internal"
)

type BusinessError struct {
	Code      string
	Message   string
	Kind      ErrorKind
	Retryable bool
	Details   any
	Err       error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError derives Kind and Retryable from the wrapped sentinel
func NewBusinessError(code, message string, err error) *BusinessError {
	kind, retryable := classify(err)
	return &BusinessError{
		Code:      code,
		Message:   message,
		Kind:      kind,
		Retryable: retryable,
		Err:       err,
	}
}

// WithDetails attaches a client visible payload, such as the remaining cooldown
func (e *BusinessError) WithDetails(details any) *BusinessError {
	e.Details = details
	return e
}

func classify(err error) (ErrorKind, bool) {
	switch {
	case err == nil:
		return KindInternal, false
	case errors.Is(err, ErrConcurrentUpdate):
		return KindConflict, true
	case errors.Is(err, ErrOTPCooldown):
		return KindRateLimited, true
	case errors.Is(err, ErrTagNotFound),
		errors.Is(err, ErrOTPNotRequested),
		errors.Is(err, ErrSaleNotFound),
		errors.Is(err, ErrAffiliateNotFound),
		errors.Is(err, ErrTransactionNotFound):
		return KindNotFound, false
	case errors.Is(err, ErrTagArchived),
		errors.Is(err, ErrTagAlreadyActivated),
		errors.Is(err, ErrTagNotActivated),
		errors.Is(err, ErrInvalidTagTransition),
		errors.Is(err, ErrSaleAlreadyExists),
		errors.Is(err, ErrOwnerIdentityConflict),
		errors.Is(err, ErrInvalidStatusTransition):
		return KindConflict, false
	case errors.Is(err, ErrOTPExpired), errors.Is(err, ErrInvalidOTP):
		return KindChallengeExpiredOrInvalid, false
	case errors.Is(err, ErrAttemptsExceeded):
		return KindAttemptsExceeded, false
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance, false
	case errors.Is(err, ErrCommissionProfileMissing):
		return KindCommissionProfileMissing, false
	case errors.Is(err, ErrForbidden):
		return KindForbidden, false
	case errors.Is(err, ErrInvalidBulkCount),
		errors.Is(err, ErrCaptchaRequired),
		errors.Is(err, ErrCaptchaInvalid),
		errors.Is(err, ErrInvalidPhone),
		errors.Is(err, ErrInvalidVehicleNumber),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidPercentage),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrMessageRequired),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrUserNotAffiliate),
		errors.Is(err, ErrUserInactive),
		errors.Is(err, ErrInvalidPage),
		errors.Is(err, ErrInvalidPageSize):
		return KindValidationFailed, false
	default:
		return KindInternal, false
	}
}

// KindOf returns the kind of err, KindInternal when it is not a BusinessError
func KindOf(err error) ErrorKind {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

func IsOTPNotRequested(err error) bool {
	return errors.Is(err, ErrOTPNotRequested)
}

func IsOTPExpired(err error) bool {
	return errors.Is(err, ErrOTPExpired)
}

func IsInvalidOTP(err error) bool {
	return errors.Is(err, ErrInvalidOTP)
}

func IsAttemptsExceeded(err error) bool {
	return errors.Is(err, ErrAttemptsExceeded)
}

func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrTagNotFound, "TAG_NOT_FOUND"},
	{ErrTagArchived, "TAG_ARCHIVED"},
	{ErrTagAlreadyActivated, "TAG_ALREADY_ACTIVATED"},
	{ErrTagNotActivated, "TAG_NOT_ACTIVATED"},
	{ErrInvalidTagTransition, "INVALID_TAG_TRANSITION"},
	{ErrInvalidBulkCount, "INVALID_BULK_COUNT"},
	{ErrOTPNotRequested, "OTP_NOT_REQUESTED"},
	{ErrOTPExpired, "CHALLENGE_EXPIRED_OR_INVALID"},
	{ErrInvalidOTP, "INVALID_OTP"},
	{ErrAttemptsExceeded, "ATTEMPTS_EXCEEDED"},
	{ErrOTPCooldown, "OTP_COOLDOWN"},
	{ErrCaptchaRequired, "CAPTCHA_REQUIRED"},
	{ErrCaptchaInvalid, "CAPTCHA_INVALID"},
	{ErrOwnerIdentityConflict, "OWNER_IDENTITY_CONFLICT"},
	{ErrInvalidPhone, "INVALID_PHONE"},
	{ErrInvalidVehicleNumber, "INVALID_VEHICLE_NUMBER"},
	{ErrSaleNotFound, "SALE_NOT_FOUND"},
	{ErrSaleAlreadyExists, "SALE_ALREADY_EXISTS"},
	{ErrInvalidAmount, "INVALID_AMOUNT"},
	{ErrInvalidPercentage, "INVALID_PERCENTAGE"},
	{ErrInvalidStatus, "INVALID_STATUS"},
	{ErrMessageRequired, "MESSAGE_REQUIRED"},
	{ErrInvalidRole, "VALIDATION_FAILED"},
	{ErrCommissionProfileMissing, "COMMISSION_PROFILE_MISSING"},
	{ErrAffiliateNotFound, "AFFILIATE_NOT_FOUND"},
	{ErrUserNotAffiliate, "USER_NOT_AFFILIATE"},
	{ErrUserInactive, "USER_INACTIVE"},
	{ErrTransactionNotFound, "TRANSACTION_NOT_FOUND"},
	{ErrInsufficientBalance, "INSUFFICIENT_BALANCE"},
	{ErrInvalidStatusTransition, "INVALID_STATUS_TRANSITION"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrConcurrentUpdate, "CONCURRENT_UPDATE"},
	{ErrInvalidPage, "INVALID_PAGE"},
	{ErrInvalidPageSize, "INVALID_PAGE_SIZE"},
}

// toBusinessError keeps an existing BusinessError, names a known sentinel by its
// code and falls back to an internal error otherwise
func toBusinessError(err error, fallbackCode, fallbackMessage string) error {
	if err == nil {
		return nil
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return be
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return NewBusinessError(ec.code, ec.err.Error(), err)
		}
	}
	return NewBusinessError(fallbackCode, fallbackMessage, err)
}
