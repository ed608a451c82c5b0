package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserRole is the closed set of back-office roles
type UserRole string

const (
	UserRoleAffiliate    UserRole = "affiliate"
	UserRoleSupportAdmin UserRole = "support_admin"
	UserRoleAdmin        UserRole = "admin"
	UserRoleSuperAdmin   UserRole = "super_admin"
)

// ParseUserRole maps a raw role claim onto the closed set
func ParseUserRole(raw string) (UserRole, bool) {
	switch r := UserRole(raw); r {
	case UserRoleAffiliate, UserRoleSupportAdmin, UserRoleAdmin, UserRoleSuperAdmin:
		return r, true
	default:
		return "", false
	}
}

// IsAdministrative reports whether the role belongs to the back office staff
func (r UserRole) IsAdministrative() bool {
	switch r {
	case UserRoleSupportAdmin, UserRoleAdmin, UserRoleSuperAdmin:
		return true
	case UserRoleAffiliate:
		return false
	default:
		return false
	}
}

// User is an affiliate or an administrator, and carries the commission profile
type User struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	UUID                 uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	Name                 string          `gorm:"size:255;not null" json:"name"`
	Email                string          `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	Phone                *string         `gorm:"size:32" json:"phone,omitempty"`
	Role                 UserRole        `gorm:"type:user_role_enum;not null;index:idx_users_role" json:"role"`
	CommissionPercentage decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"commission_percentage"`
	IsActive             bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt            time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID       *uint
	Email    *string
	Role     *UserRole
	IsActive *bool
}
