package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TagStatus is the lifecycle state of a physical tag
type TagStatus string

const (
	TagStatusGenerated TagStatus = "generated"
	TagStatusAssigned  TagStatus = "assigned"
	TagStatusActivated TagStatus = "activated"
	TagStatusArchived  TagStatus = "archived"
)

var tagStatusRank = map[TagStatus]int{
	TagStatusGenerated: 0,
	TagStatusAssigned:  1,
	TagStatusActivated: 2,
	TagStatusArchived:  3,
}

// IsValid reports whether s is one of the known tag states
func (s TagStatus) IsValid() bool {
	_, ok := tagStatusRank[s]
	return ok
}

// Tag represents a printed QR/NFC tag that is bound at most once to an owner
// Table: tags
// Unique by tag_id and short_code; owner_assigned_to is set iff status is activated
type Tag struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	TagID           uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uk_tags_tag_id" json:"tag_id"`
	ShortCode       string            `gorm:"size:16;not null;uniqueIndex:uk_tags_short_code" json:"short_code"`
	ShortURL        string            `gorm:"size:512;not null" json:"short_url"`
	QRCode          []byte            `gorm:"type:bytea" json:"-"`
	Status          TagStatus         `gorm:"type:tag_status_enum;not null;default:generated;index:idx_tags_status" json:"status"`
	BatchName       string            `gorm:"size:255;not null;index:idx_tags_batch_name" json:"batch_name"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	AssignedTo      *uint             `gorm:"index:idx_tags_assigned_to" json:"assigned_to,omitempty"`
	OwnerAssignedTo *uint             `gorm:"index:idx_tags_owner_assigned_to" json:"owner_assigned_to,omitempty"`
	ActivatedAt     *time.Time        `json:"activated_at,omitempty"`
	ActivatedIP     *string           `gorm:"size:64" json:"activated_ip,omitempty"`
	ActivatedBy     *uint             `json:"activated_by,omitempty"`
	GeneratedBy     *uint             `json:"generated_by,omitempty"`
	CreatedAt       time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_tags_created_at" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Tag) TableName() string { return "tags" }

// TagFilter represents filter criteria for tag queries
type TagFilter struct {
	ID            *uint
	TagID         *uuid.UUID
	ShortCode     *string
	Status        *TagStatus
	BatchName     *string
	AssignedTo    *uint
	Search        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (t *Tag) IsActivated() bool { return t.Status == TagStatusActivated }

func (t *Tag) IsArchived() bool { return t.Status == TagStatusArchived }

// CanActivate reports whether the tag is still unclaimed
func (t *Tag) CanActivate() bool {
	return t.Status == TagStatusGenerated || t.Status == TagStatusAssigned
}

// CanTransitionTo enforces forward-only movement; archive is reachable from any live state
func (t *Tag) CanTransitionTo(next TagStatus) bool {
	if !next.IsValid() || t.IsArchived() {
		return false
	}
	if next == TagStatusArchived {
		return true
	}
	return tagStatusRank[next] == tagStatusRank[t.Status]+1
}
