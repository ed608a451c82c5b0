package dto

import "time"

// ListSalesRequest is parsed from the query string; affiliates are pinned to their own id
type ListSalesRequest struct {
	SalesPersonID      *uint
	OwnerID            *uint
	TagID              *uint
	PaymentStatus      *string
	VerificationStatus *string
	Role               *string
	Page               int
	Limit              int
}

type SaleDTO struct {
	ID                             uint      `json:"id"`
	TagID                          uint      `json:"tag_id"`
	OwnerID                        uint      `json:"owner_id"`
	SalesPersonID                  *uint     `json:"sales_person_id,omitempty"`
	SalesPersonRole                *string   `json:"sales_person_role,omitempty"`
	SaleDate                       time.Time `json:"sale_date"`
	SaleType                       string    `json:"sale_type"`
	TotalSaleAmount                int64     `json:"total_sale_amount"`
	CommissionAmountOfSalesPerson  int64     `json:"commission_amount_of_sales_person"`
	CommissionAmountOfOwner        int64     `json:"commission_amount_of_owner"`
	CostAmountOfProductAndServices int64     `json:"cost_amount_of_product_and_services"`
	CommissionPercentage           string    `json:"commission_percentage"`
	PaymentStatus                  string    `json:"payment_status"`
	VerificationStatus             string    `json:"verification_status"`
	Messages                       []string  `json:"messages"`
	PaymentProofRef                *string   `json:"payment_proof_ref,omitempty"`
	CreatedAt                      time.Time `json:"created_at"`
	UpdatedAt                      time.Time `json:"updated_at"`
}

type ListSalesResponse struct {
	Items      []SaleDTO      `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// UpdateSaleStatusRequest corrects the settlement state of a sale; amounts never change
type UpdateSaleStatusRequest struct {
	PaymentStatus      *string `json:"payment_status,omitempty" validate:"omitempty,oneof=pending completed cancelled"`
	VerificationStatus *string `json:"verification_status,omitempty" validate:"omitempty,oneof=pending completed cancelled"`
	PaymentProofRef    *string `json:"payment_proof_ref,omitempty" validate:"omitempty,max=512"`
	Message            string  `json:"message" validate:"required,max=1000"`
}

type AppendSaleMessageRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
}

// CreateSaleRequest records a sale by hand for an activated tag that has none.
// Omitted amounts fall back to the configured defaults.
type CreateSaleRequest struct {
	Tag             string  `json:"tag" validate:"required,max=64"`
	TotalSaleAmount *int64  `json:"total_sale_amount,omitempty" validate:"omitempty,gte=0"`
	CostAmount      *int64  `json:"cost_amount,omitempty" validate:"omitempty,gte=0"`
	SaleType        *string `json:"sale_type,omitempty" validate:"omitempty,oneof=online offline not-confirmed"`
	Message         string  `json:"message" validate:"required,max=1000"`
}
