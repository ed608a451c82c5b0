package dto

import "time"

// BulkGenerateTagsRequest creates a batch of unassigned tags
type BulkGenerateTagsRequest struct {
	Count     int     `json:"count" validate:"required,min=1,max=500"`
	BatchName *string `json:"batch_name,omitempty" validate:"omitempty,max=255"`
}

type BulkGenerateTagsResponse struct {
	BatchName string   `json:"batch_name"`
	Count     int      `json:"count"`
	Tags      []TagDTO `json:"tags"`
}

type TagDTO struct {
	ID              uint       `json:"id"`
	TagID           string     `json:"tag_id"`
	ShortCode       string     `json:"short_code"`
	ShortURL        string     `json:"short_url"`
	Status          string     `json:"status"`
	BatchName       string     `json:"batch_name"`
	AssignedTo      *uint      `json:"assigned_to,omitempty"`
	OwnerAssignedTo *uint      `json:"owner_assigned_to,omitempty"`
	ActivatedAt     *time.Time `json:"activated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ListTagsRequest is parsed from the query string
type ListTagsRequest struct {
	Status     *string
	BatchName  *string
	Search     *string
	AssignedTo *uint
	Page       int
	Limit      int
}

type ListTagsResponse struct {
	Items      []TagDTO       `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// TagSummaryResponse feeds the admin dashboard counters
type TagSummaryResponse struct {
	Total        int64 `json:"total"`
	Generated    int64 `json:"generated"`
	Assigned     int64 `json:"assigned"`
	Activated    int64 `json:"activated"`
	Archived     int64 `json:"archived"`
	ActiveOwners int64 `json:"active_owners"`
}

// AssignTagsRequest hands generated tags to an affiliate
type AssignTagsRequest struct {
	ShortCodes  []string `json:"short_codes" validate:"required,min=1,max=500,dive,required,max=16"`
	AffiliateID uint     `json:"affiliate_id" validate:"required"`
}

type SkippedTag struct {
	ShortCode string `json:"short_code"`
	Reason    string `json:"reason"`
}

type AssignTagsResponse struct {
	AffiliateID uint         `json:"affiliate_id"`
	Assigned    []string     `json:"assigned"`
	Skipped     []SkippedTag `json:"skipped"`
}

// PublicTagResponse is what a visitor sees after scanning a tag
type PublicTagResponse struct {
	ShortCode string          `json:"short_code"`
	Status    string          `json:"status"`
	Activated bool            `json:"activated"`
	Owner     *PublicOwnerDTO `json:"owner,omitempty"`
}

type PublicOwnerDTO struct {
	FirstName    string `json:"first_name"`
	VehicleType  string `json:"vehicle_type"`
	PrefSMS      bool   `json:"pref_sms"`
	PrefWhatsApp bool   `json:"pref_whatsapp"`
	PrefCall     bool   `json:"pref_call"`
}

// VerifyTagForSaleResponse confirms a tag can take a manually recorded sale
type VerifyTagForSaleResponse struct {
	ID          uint       `json:"id"`
	TagID       string     `json:"tag_id"`
	ShortCode   string     `json:"short_code"`
	Status      string     `json:"status"`
	OwnerID     *uint      `json:"owner_id,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}
