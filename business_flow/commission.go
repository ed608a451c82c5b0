package businessflow

import (
	"context"

	"github.com/amirphl/taptag/config"
	"github.com/amirphl/taptag/models"
	"github.com/amirphl/taptag/repository"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CommissionSplit is a sale amount divided between salesperson, owner and cost, in minor units.
// SalesPerson + Owner + Cost always equals Total.
type CommissionSplit struct {
	Total       int64
	Cost        int64
	SalesPerson int64
	Owner       int64
	Percentage  decimal.Decimal
}

// ComputeCommission rounds the salesperson share half up to the minor unit and
// gives the remainder after cost to the owner
func ComputeCommission(total, cost int64, pct decimal.Decimal) (CommissionSplit, error) {
	if total < 0 || cost < 0 || cost > total {
		return CommissionSplit{}, ErrInvalidAmount
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return CommissionSplit{}, ErrInvalidPercentage
	}

	salesPerson := decimal.NewFromInt(total).Mul(pct).Div(hundred).Round(0).IntPart()
	return CommissionSplit{
		Total:       total,
		Cost:        cost,
		SalesPerson: salesPerson,
		Owner:       (total - cost) - salesPerson,
		Percentage:  pct,
	}, nil
}

// ResolveSalesPerson picks who is credited for an activation. A nil id means
// the sale carries no salesperson.
func ResolveSalesPerson(actor Actor, tag *models.Tag, adminFallback string) (*uint, error) {
	switch actor.Role {
	case models.UserRoleAffiliate:
		id := actor.ID
		return &id, nil
	case models.UserRoleSupportAdmin, models.UserRoleAdmin, models.UserRoleSuperAdmin:
		if tag.AssignedTo != nil {
			id := *tag.AssignedTo
			return &id, nil
		}
		switch adminFallback {
		case config.AdminFallbackNone:
			return nil, nil
		default:
			id := actor.ID
			return &id, nil
		}
	default:
		return nil, ErrInvalidRole
	}
}

// Attribution is the resolved salesperson with the profile read at compute time
type Attribution struct {
	SalesPersonID   *uint
	SalesPersonRole *models.UserRole
	Percentage      decimal.Decimal
}

// resolveAttribution reads the salesperson's current commission profile
func resolveAttribution(ctx context.Context, users repository.UserRepository, actor Actor, tag *models.Tag, adminFallback string) (*Attribution, error) {
	salesPersonID, err := ResolveSalesPerson(actor, tag, adminFallback)
	if err != nil {
		return nil, err
	}
	if salesPersonID == nil {
		return &Attribution{Percentage: decimal.Zero}, nil
	}

	user, err := users.ByID(ctx, *salesPersonID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrCommissionProfileMissing
	}
	role := user.Role
	return &Attribution{
		SalesPersonID:   salesPersonID,
		SalesPersonRole: &role,
		Percentage:      user.CommissionPercentage,
	}, nil
}
