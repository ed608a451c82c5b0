package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoTransaction is returned by row-locking reads issued outside a transaction
var ErrNoTransaction = errors.New("row lock requires an open transaction")

// PostgreSQL SQLSTATE codes the business layer reacts to
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
)

// IsSerializationFailure reports whether err is a serialization or deadlock abort that is safe to retry
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

// IsUniqueViolation reports whether err violates the named unique constraint (any when constraint is empty)
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsCheckViolation reports whether err violates a CHECK constraint
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation
}

// Constraint names referenced by callers
const (
	ConstraintTagShortCode         = "uk_tags_short_code"
	ConstraintSaleTagID            = "uk_sales_tag_id"
	ConstraintOwnerPhone           = "uk_tag_owners_phone"
	ConstraintOwnerVehicleNumber   = "uk_tag_owners_vehicle_number"
	ConstraintOTPChallengeTagPhone = "uk_otp_challenges_tag_phone"
)
