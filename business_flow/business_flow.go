// Package businessflow contains the core use cases of tag activation, sales and wallets
package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/taptag/app/dto"
	"github.com/amirphl/taptag/models"
	"github.com/amirphl/taptag/repository"
	"github.com/amirphl/taptag/utils"
	"gorm.io/datatypes"
)

// ClientMetadata holds the request origin used for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// Actor is the authenticated caller as verified by the transport layer
type Actor struct {
	ID   uint
	Role models.UserRole
}

// normalizePage applies the default page size and rejects out of range values
func normalizePage(page, limit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = utils.DefaultPageSize
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if limit < 1 || limit > utils.MaxPageSize {
		return 0, 0, ErrInvalidPageSize
	}
	return page, limit, nil
}

func buildPagination(total int64, page, limit int) dto.PaginationInfo {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return dto.PaginationInfo{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

// auditRecorder writes audit rows outside business transactions; a failure is logged, never returned
type auditRecorder struct {
	repo   repository.AuditLogRepository
	logger *log.Logger
}

func (a auditRecorder) record(ctx context.Context, actorID *uint, action, description string, success bool, cause error, metadata *ClientMetadata, extra map[string]any) {
	if a.repo == nil {
		return
	}
	entry := &models.AuditLog{
		ActorID:     actorID,
		Action:      action,
		Description: &description,
		Success:     &success,
		Metadata:    datatypes.JSONMap(extra),
	}
	if cause != nil {
		msg := cause.Error()
		entry.ErrorMessage = &msg
	}
	if metadata != nil {
		entry.IPAddress = &metadata.IPAddress
		entry.UserAgent = &metadata.UserAgent
		if metadata.RequestID != "" {
			entry.RequestID = &metadata.RequestID
		}
	}
	if err := a.repo.Save(ctx, entry); err != nil && a.logger != nil {
		a.logger.Printf("audit: failed to record %s: %v", action, err)
	}
}

func ToTagDTO(tag *models.Tag) dto.TagDTO {
	return dto.TagDTO{
		ID:              tag.ID,
		TagID:           tag.TagID.String(),
		ShortCode:       tag.ShortCode,
		ShortURL:        tag.ShortURL,
		Status:          string(tag.Status),
		BatchName:       tag.BatchName,
		AssignedTo:      tag.AssignedTo,
		OwnerAssignedTo: tag.OwnerAssignedTo,
		ActivatedAt:     tag.ActivatedAt,
		CreatedAt:       tag.CreatedAt,
	}
}

func ToSaleDTO(sale *models.Sale) dto.SaleDTO {
	out := dto.SaleDTO{
		ID:                             sale.ID,
		TagID:                          sale.TagID,
		OwnerID:                        sale.OwnerID,
		SalesPersonID:                  sale.SalesPersonID,
		SaleDate:                       sale.SaleDate,
		SaleType:                       string(sale.SaleType),
		TotalSaleAmount:                sale.TotalSaleAmount,
		CommissionAmountOfSalesPerson:  sale.CommissionAmountOfSalesPerson,
		CommissionAmountOfOwner:        sale.CommissionAmountOfOwner,
		CostAmountOfProductAndServices: sale.CostAmountOfProductAndServices,
		CommissionPercentage:           sale.CommissionPercentage.StringFixed(2),
		PaymentStatus:                  string(sale.PaymentStatus),
		VerificationStatus:             string(sale.VerificationStatus),
		Messages:                       append([]string{}, sale.Messages...),
		PaymentProofRef:                sale.PaymentProofRef,
		CreatedAt:                      sale.CreatedAt,
		UpdatedAt:                      sale.UpdatedAt,
	}
	if sale.SalesPersonRole != nil {
		role := string(*sale.SalesPersonRole)
		out.SalesPersonRole = &role
	}
	return out
}

func ToWalletTransactionDTO(tx *models.WalletTransaction) dto.WalletTransactionDTO {
	return dto.WalletTransactionDTO{
		ID:              tx.ID,
		UUID:            tx.UUID.String(),
		UserID:          tx.UserID,
		SaleID:          tx.SaleID,
		Type:            string(tx.Type),
		Status:          string(tx.Status),
		Amount:          tx.Amount,
		BalanceSnapshot: tx.BalanceSnapshot,
		Description:     tx.Description,
		Notes:           tx.Notes,
		ApprovedBy:      tx.ApprovedBy,
		ApprovedAt:      tx.ApprovedAt,
		CreatedAt:       tx.CreatedAt,
	}
}

// clock is swapped in tests
type clock func() time.Time
