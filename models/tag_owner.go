package models

import (
	"slices"
	"time"

	"github.com/lib/pq"
)

// Vehicle types accepted for an owner record
const (
	VehicleTypeCar   = "car"
	VehicleTypeBike  = "bike"
	VehicleTypeTruck = "truck"
	VehicleTypeOther = "other"
)

// TagOwner is the vehicle owner that claimed one or more tags.
// Phone and vehicle number each resolve to at most one owner.
type TagOwner struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	FullName       string         `gorm:"size:255;not null" json:"full_name"`
	Phone          string         `gorm:"size:32;not null;uniqueIndex:uk_tag_owners_phone" json:"-"`
	EncryptedPhone string         `gorm:"type:text;not null" json:"-"`
	Email          *string        `gorm:"size:255;index:idx_tag_owners_email" json:"email,omitempty"`
	VehicleNumber  string         `gorm:"size:32;not null;uniqueIndex:uk_tag_owners_vehicle_number" json:"vehicle_number"`
	VehicleType    string         `gorm:"size:32;not null;default:car" json:"vehicle_type"`
	VehicleBrand   *string        `gorm:"size:100" json:"vehicle_brand,omitempty"`
	VehicleModel   *string        `gorm:"size:100" json:"vehicle_model,omitempty"`
	VehicleColor   *string        `gorm:"size:50" json:"vehicle_color,omitempty"`
	City           *string        `gorm:"size:100" json:"city,omitempty"`
	PrefSMS        bool           `gorm:"not null;default:true" json:"pref_sms"`
	PrefWhatsApp   bool           `gorm:"column:pref_whatsapp;not null;default:true" json:"pref_whatsapp"`
	PrefCall       bool           `gorm:"not null;default:true" json:"pref_call"`
	TagIDs         pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"tag_ids"`
	IsActive       bool           `gorm:"not null;default:true;index:idx_tag_owners_is_active" json:"is_active"`
	CreatedAt      time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (TagOwner) TableName() string { return "tag_owners" }

// TagOwnerFilter represents filter criteria for owner queries
type TagOwnerFilter struct {
	ID            *uint
	Phone         *string
	VehicleNumber *string
	IsActive      *bool
}

// AddTag adds a tag id to the owner's set, reporting whether it was new
func (o *TagOwner) AddTag(tagID string) bool {
	if slices.Contains(o.TagIDs, tagID) {
		return false
	}
	o.TagIDs = append(o.TagIDs, tagID)
	return true
}
