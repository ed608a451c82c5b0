package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/taptag/models"
	"github.com/amirphl/taptag/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an active user with the given role and commission percentage
func (tf *TestFixtures) CreateTestUser(role models.UserRole, pct string) (*models.User, error) {
	n := rand.Intn(900000000) + 100000000
	user := &models.User{
		UUID:                 uuid.New(),
		Name:                 "Test " + string(role),
		Email:                fmt.Sprintf("%s.%d@example.com", role, n),
		Role:                 role,
		CommissionPercentage: decimal.RequireFromString(pct),
		IsActive:             true,
	}
	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestTag creates a tag in the given state. Activated tags need an owner id.
func (tf *TestFixtures) CreateTestTag(shortCode string, status models.TagStatus, assignedTo, ownerID *uint) (*models.Tag, error) {
	tag := &models.Tag{
		TagID:           uuid.New(),
		ShortCode:       shortCode,
		ShortURL:        "https://tt.example.com/r/" + shortCode,
		Status:          status,
		BatchName:       utils.DefaultBatchName(time.Now().UTC()),
		AssignedTo:      assignedTo,
		OwnerAssignedTo: ownerID,
	}
	if status == models.TagStatusActivated {
		tag.ActivatedAt = utils.UTCNowPtr()
	}
	if err := tf.DB.DB.Create(tag).Error; err != nil {
		return nil, fmt.Errorf("failed to create test tag: %w", err)
	}
	return tag, nil
}

// CreateTestOwner creates an owner with a random phone and vehicle number
func (tf *TestFixtures) CreateTestOwner(fullName string) (*models.TagOwner, error) {
	n := rand.Intn(90000000) + 10000000
	owner := &models.TagOwner{
		FullName:       fullName,
		Phone:          fmt.Sprintf("0912%07d", n%10000000),
		EncryptedPhone: "test-ciphertext",
		VehicleNumber:  fmt.Sprintf("%02dB%06d", n%100, n%1000000),
		VehicleType:    "car",
		PrefSMS:        true,
		PrefWhatsApp:   true,
		PrefCall:       true,
		TagIDs:         pq.StringArray{},
		IsActive:       true,
	}
	if err := tf.DB.DB.Create(owner).Error; err != nil {
		return nil, fmt.Errorf("failed to create test owner: %w", err)
	}
	return owner, nil
}

// CreateTestSale records a sale for the tag with the given statuses and amounts
func (tf *TestFixtures) CreateTestSale(tagID, ownerID uint, salesPersonID *uint, payment, verification models.SaleStatus, total, commission, cost int64) (*models.Sale, error) {
	sale := &models.Sale{
		TagID:                          tagID,
		OwnerID:                        ownerID,
		SalesPersonID:                  salesPersonID,
		SaleDate:                       utils.UTCNow(),
		SaleType:                       models.SaleTypeNotConfirmed,
		TotalSaleAmount:                total,
		CommissionAmountOfSalesPerson:  commission,
		CommissionAmountOfOwner:        total - commission - cost,
		CostAmountOfProductAndServices: cost,
		CommissionPercentage:           decimal.Zero,
		PaymentStatus:                  payment,
		VerificationStatus:             verification,
		Messages:                       pq.StringArray{"test sale"},
	}
	if err := tf.DB.DB.Create(sale).Error; err != nil {
		return nil, fmt.Errorf("failed to create test sale: %w", err)
	}
	return sale, nil
}
