package dto

import "time"

// RequestOTPRequest asks for an activation passcode for a tag and phone
type RequestOTPRequest struct {
	Tag          string   `json:"tag" validate:"required,max=64"` // tag UUID or short code
	Phone        string   `json:"phone" validate:"required,min=8,max=20"`
	CaptchaID    string   `json:"captcha_id,omitempty" validate:"omitempty,max=64"`
	CaptchaAngle *float64 `json:"captcha_angle,omitempty"`
}

// RequestOTPResponse confirms a passcode was issued. OTP is only filled outside production.
type RequestOTPResponse struct {
	TagID       string    `json:"tag_id"`
	ShortCode   string    `json:"short_code"`
	MaskedPhone string    `json:"masked_phone"`
	ExpiresAt   time.Time `json:"expires_at"`
	OTP         string    `json:"otp,omitempty"`
}

// CaptchaResponse carries a rotate captcha challenge
type CaptchaResponse struct {
	ID                string    `json:"id"`
	MasterImageBase64 string    `json:"master_image_base64"`
	ThumbImageBase64  string    `json:"thumb_image_base64"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// OwnerInput is the owner profile collected at activation
type OwnerInput struct {
	FullName      string  `json:"full_name" validate:"required,min=2,max=255"`
	Email         *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	VehicleNumber string  `json:"vehicle_number" validate:"required,min=2,max=32"`
	VehicleType   *string `json:"vehicle_type,omitempty" validate:"omitempty,oneof=car bike truck other"`
	VehicleBrand  *string `json:"vehicle_brand,omitempty" validate:"omitempty,max=100"`
	VehicleModel  *string `json:"vehicle_model,omitempty" validate:"omitempty,max=100"`
	VehicleColor  *string `json:"vehicle_color,omitempty" validate:"omitempty,max=50"`
	City          *string `json:"city,omitempty" validate:"omitempty,max=100"`
	PrefSMS       *bool   `json:"pref_sms,omitempty"`
	PrefWhatsApp  *bool   `json:"pref_whatsapp,omitempty"`
	PrefCall      *bool   `json:"pref_call,omitempty"`
}

// SaleParams overrides the default sale amounts, in minor units
type SaleParams struct {
	TotalSaleAmount *int64  `json:"total_sale_amount,omitempty" validate:"omitempty,gte=0"`
	CostAmount      *int64  `json:"cost_amount,omitempty" validate:"omitempty,gte=0"`
	SaleType        *string `json:"sale_type,omitempty" validate:"omitempty,oneof=online offline not-confirmed"`
	Message         *string `json:"message,omitempty" validate:"omitempty,max=1000"`
}

// ConfirmActivationRequest activates a tag with a verified passcode
type ConfirmActivationRequest struct {
	Tag   string      `json:"tag" validate:"required,max=64"`
	Phone string      `json:"phone" validate:"required,min=8,max=20"`
	OTP   string      `json:"otp" validate:"required,len=6,numeric"`
	Owner OwnerInput  `json:"owner" validate:"required"`
	Sale  *SaleParams `json:"sale,omitempty" validate:"omitempty"`
}

type OwnerSummary struct {
	ID            uint   `json:"id"`
	FullName      string `json:"full_name"`
	MaskedPhone   string `json:"masked_phone"`
	VehicleNumber string `json:"vehicle_number"`
	VehicleType   string `json:"vehicle_type"`
}

// CommissionBreakdown shows how the sale amount was split, in minor units
type CommissionBreakdown struct {
	Total       int64  `json:"total"`
	Cost        int64  `json:"cost"`
	SalesPerson int64  `json:"sales_person"`
	Owner       int64  `json:"owner"`
	Percentage  string `json:"percentage"`
}

type ConfirmActivationResponse struct {
	TagID         string              `json:"tag_id"`
	ShortCode     string              `json:"short_code"`
	ShortURL      string              `json:"short_url"`
	Owner         OwnerSummary        `json:"owner"`
	SaleID        uint                `json:"sale_id"`
	SalesPersonID *uint               `json:"sales_person_id,omitempty"`
	Commission    CommissionBreakdown `json:"commission"`
	ActivatedAt   time.Time           `json:"activated_at"`
}
