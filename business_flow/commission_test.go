package businessflow

import (
	"testing"

	"github.com/amirphl/taptag/config"
	"github.com/amirphl/taptag/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCommission(t *testing.T) {
	tests := []struct {
		name            string
		total, cost     int64
		pct             string
		wantSalesPerson int64
		wantOwner       int64
		wantErr         error
	}{
		{"reference split", 29900, 12900, "20", 5980, 11020, nil},
		{"zero percent", 29900, 12900, "0", 0, 17000, nil},
		{"full percent", 10000, 2000, "100", 10000, -2000, nil},
		{"fractional percent", 29900, 12900, "12.5", 3738, 13262, nil},
		{"half rounds up", 1, 0, "50", 1, 0, nil},
		{"zero total", 0, 0, "20", 0, 0, nil},
		{"cost above total", 100, 101, "10", 0, 0, ErrInvalidAmount},
		{"negative total", -1, 0, "10", 0, 0, ErrInvalidAmount},
		{"negative percent", 100, 0, "-1", 0, 0, ErrInvalidPercentage},
		{"percent above hundred", 100, 0, "100.01", 0, 0, ErrInvalidPercentage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := ComputeCommission(tt.total, tt.cost, decimal.RequireFromString(tt.pct))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSalesPerson, split.SalesPerson)
			assert.Equal(t, tt.wantOwner, split.Owner)
			assert.Equal(t, tt.total, split.SalesPerson+split.Owner+split.Cost)
		})
	}
}

func TestComputeCommission_ConservesMoney(t *testing.T) {
	for total := int64(0); total <= 5000; total += 37 {
		for _, pct := range []string{"0", "3.33", "7.5", "20", "33.33", "66.67", "99.99"} {
			split, err := ComputeCommission(total, total/3, decimal.RequireFromString(pct))
			require.NoError(t, err)
			require.Equal(t, total, split.SalesPerson+split.Owner+split.Cost, "total=%d pct=%s", total, pct)
		}
	}
}

func TestResolveSalesPerson(t *testing.T) {
	affiliateID := uint(7)
	assigned := &models.Tag{AssignedTo: &affiliateID}
	unassigned := &models.Tag{}

	tests := []struct {
		name     string
		actor    Actor
		tag      *models.Tag
		fallback string
		want     *uint
		wantErr  error
	}{
		{"affiliate credits itself", Actor{ID: 3, Role: models.UserRoleAffiliate}, assigned, config.AdminFallbackCreditAdmin, ptr(uint(3)), nil},
		{"admin on assigned tag", Actor{ID: 1, Role: models.UserRoleAdmin}, assigned, config.AdminFallbackCreditAdmin, ptr(affiliateID), nil},
		{"support admin on assigned tag", Actor{ID: 1, Role: models.UserRoleSupportAdmin}, assigned, config.AdminFallbackNone, ptr(affiliateID), nil},
		{"admin fallback to self", Actor{ID: 1, Role: models.UserRoleSuperAdmin}, unassigned, config.AdminFallbackCreditAdmin, ptr(uint(1)), nil},
		{"admin fallback none", Actor{ID: 1, Role: models.UserRoleAdmin}, unassigned, config.AdminFallbackNone, nil, nil},
		{"unknown role", Actor{ID: 1, Role: "janitor"}, assigned, config.AdminFallbackCreditAdmin, nil, ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSalesPerson(tt.actor, tt.tag, tt.fallback)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func ptr[T any](v T) *T { return &v }
