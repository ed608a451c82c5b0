// Package models contains domain entities for tags, owners, sales and wallets
package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	ActorID      *uint             `gorm:"index:idx_audit_actor_id" json:"actor_id,omitempty"`
	Action       string            `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string           `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string           `gorm:"size:64;index:idx_audit_ip_address" json:"ip_address,omitempty"`
	UserAgent    *string           `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string           `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool             `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string           `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time         `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionOTPRequested        = "otp_requested"
	AuditActionOTPFailed           = "otp_failed"
	AuditActionTagActivated        = "tag_activated"
	AuditActionTagActivationFailed = "tag_activation_failed"
	AuditActionTagsGenerated       = "tags_generated"
	AuditActionTagsAssigned        = "tags_assigned"
	AuditActionTagArchived         = "tag_archived"
	AuditActionSaleStatusCorrected = "sale_status_corrected"
	AuditActionSaleMessageAppended = "sale_message_appended"
	AuditActionSaleRecorded        = "sale_recorded"
	AuditActionWithdrawalRequested = "withdrawal_requested"
	AuditActionWithdrawalRejected  = "withdrawal_rejected"
	AuditActionTransactionUpdated  = "wallet_transaction_updated"
	AuditActionManualCreditCreated = "manual_credit_created"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	ActorID       *uint
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
