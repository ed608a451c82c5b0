package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// SaleType classifies how a sale was closed
type SaleType string

const (
	SaleTypeOnline       SaleType = "online"
	SaleTypeOffline      SaleType = "offline"
	SaleTypeNotConfirmed SaleType = "not-confirmed"
)

func (t SaleType) IsValid() bool {
	switch t {
	case SaleTypeOnline, SaleTypeOffline, SaleTypeNotConfirmed:
		return true
	}
	return false
}

// SaleStatus is shared by payment and verification tracks
type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusCancelled SaleStatus = "cancelled"
)

func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusPending, SaleStatusCompleted, SaleStatusCancelled:
		return true
	}
	return false
}

// Sale is the commercial event recorded when a tag is activated.
// Amounts are minor units and the three parts always sum to TotalSaleAmount.
type Sale struct {
	ID                             uint            `gorm:"primaryKey" json:"id"`
	TagID                          uint            `gorm:"not null;uniqueIndex:uk_sales_tag_id" json:"tag_id"`
	OwnerID                        uint            `gorm:"not null;index:idx_sales_owner_id" json:"owner_id"`
	SalesPersonID                  *uint           `gorm:"index:idx_sales_sales_person_id" json:"sales_person_id,omitempty"`
	SalesPersonRole                *UserRole       `gorm:"type:user_role_enum" json:"sales_person_role,omitempty"`
	SaleDate                       time.Time       `gorm:"not null" json:"sale_date"`
	SaleType                       SaleType        `gorm:"type:sale_type_enum;not null;default:not-confirmed" json:"sale_type"`
	TotalSaleAmount                int64           `gorm:"not null" json:"total_sale_amount"`
	CommissionAmountOfSalesPerson  int64           `gorm:"not null" json:"commission_amount_of_sales_person"`
	CommissionAmountOfOwner        int64           `gorm:"not null" json:"commission_amount_of_owner"`
	CostAmountOfProductAndServices int64           `gorm:"not null" json:"cost_amount_of_product_and_services"`
	CommissionPercentage           decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"commission_percentage"`
	PaymentStatus                  SaleStatus      `gorm:"type:sale_status_enum;not null;default:pending;index:idx_sales_payment_status" json:"payment_status"`
	VerificationStatus             SaleStatus      `gorm:"type:sale_status_enum;not null;default:pending;index:idx_sales_verification_status" json:"verification_status"`
	Messages                       pq.StringArray  `gorm:"type:text[];not null;default:'{}'" json:"messages"`
	PaymentProofRef                *string         `gorm:"size:512" json:"payment_proof_ref,omitempty"`
	CreatedBy                      *uint           `json:"created_by,omitempty"`
	UpdatedBy                      *uint           `json:"updated_by,omitempty"`
	CreatedAt                      time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_sales_created_at" json:"created_at"`
	UpdatedAt                      time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Sale) TableName() string { return "sales" }

// SaleFilter represents filter criteria for sale queries
type SaleFilter struct {
	ID                 *uint
	TagID              *uint
	OwnerID            *uint
	SalesPersonID      *uint
	SalesPersonRole    *UserRole
	PaymentStatus      *SaleStatus
	VerificationStatus *SaleStatus
	CreatedAfter       *time.Time
	CreatedBefore      *time.Time
}

// IsSettled reports whether both payment and verification are completed
func (s *Sale) IsSettled() bool {
	return s.PaymentStatus == SaleStatusCompleted && s.VerificationStatus == SaleStatusCompleted
}

// IsBalanced checks money conservation across the commission split
func (s *Sale) IsBalanced() bool {
	return s.CommissionAmountOfSalesPerson+s.CommissionAmountOfOwner+s.CostAmountOfProductAndServices == s.TotalSaleAmount
}

// SalesTotals aggregates an affiliate's sales
type SalesTotals struct {
	Commission      int64 `json:"commission"`
	SalesAmount     int64 `json:"sales_amount"`
	Cost            int64 `json:"cost"`
	OwnerCommission int64 `json:"owner_commission"`
	Cards           int64 `json:"cards"`
}
