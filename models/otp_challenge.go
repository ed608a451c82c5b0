package models

import (
	"time"

	"gorm.io/datatypes"
)

// OTPChallenge is a short-lived passcode scoped to one (tag, phone) pair.
// Only the hash of the passcode is ever stored.
type OTPChallenge struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	TagID       uint              `gorm:"not null;uniqueIndex:uk_otp_challenges_tag_phone,priority:1" json:"tag_id"`
	Phone       string            `gorm:"size:32;not null;uniqueIndex:uk_otp_challenges_tag_phone,priority:2" json:"phone"`
	OTPHash     string            `gorm:"size:255;not null" json:"-"`
	ExpiresAt   time.Time         `gorm:"not null;index:idx_otp_challenges_expires_at" json:"expires_at"`
	Attempts    int               `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int               `gorm:"not null;default:5" json:"max_attempts"`
	Context     datatypes.JSONMap `gorm:"type:jsonb" json:"context,omitempty"`
	CreatedAt   time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (OTPChallenge) TableName() string {
	return "otp_challenges"
}

// OTPChallengeFilter represents filter criteria for challenge queries
type OTPChallengeFilter struct {
	ID            *uint
	TagID         *uint
	Phone         *string
	ExpiresBefore *time.Time
}

func (o *OTPChallenge) IsExpiredAt(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

func (o *OTPChallenge) AttemptsExhausted() bool {
	return o.Attempts >= o.MaxAttempts
}

func (o *OTPChallenge) CanAttemptAt(now time.Time) bool {
	return !o.AttemptsExhausted() && !o.IsExpiredAt(now)
}
