package businessflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/taptag/app/dto"
	"github.com/amirphl/taptag/config"
	"github.com/amirphl/taptag/models"
	"github.com/amirphl/taptag/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerPhone   = "+989121234567"
	otherPhone   = "+989351112233"
	ownerVehicle = "12 ab 345"
)

func requireCode(t *testing.T, err error, code string) *BusinessError {
	t.Helper()
	require.Error(t, err)
	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, code, be.Code, "unexpected error: %v", err)
	return be
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func confirmRequest(tag, phone, code, vehicle string) *dto.ConfirmActivationRequest {
	return &dto.ConfirmActivationRequest{
		Tag:   tag,
		Phone: phone,
		OTP:   code,
		Owner: dto.OwnerInput{
			FullName:      "Sara Rahimi",
			VehicleNumber: vehicle,
		},
	}
}

// requestCode issues a passcode and returns it once delivery has happened
func (e *env) requestCode(t *testing.T, tag, phone string) string {
	t.Helper()
	resp, err := e.activation.RequestOTP(context.Background(), &dto.RequestOTPRequest{Tag: tag, Phone: phone}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	e.waitDelivery(t)
	require.Equal(t, resp.OTP, e.notifier.code(phone))
	return resp.OTP
}

func assertOwnerInvariant(t *testing.T, e *env) {
	t.Helper()
	for _, tag := range e.store.tags.list(nil) {
		assert.Equal(t, tag.IsActivated(), tag.OwnerAssignedTo != nil, "tag %s status %s", tag.ShortCode, tag.Status)
	}
	for _, sale := range e.store.sales.list(nil) {
		assert.True(t, sale.IsBalanced(), "sale %d is not balanced", sale.ID)
	}
}

func TestRequestOTP_IssuesChallenge(t *testing.T) {
	e := newEnv(t)
	tag := e.addTag(t, "abcd1234", models.TagStatusGenerated, nil)

	resp, err := e.activation.RequestOTP(context.Background(), &dto.RequestOTPRequest{Tag: "ABCD1234", Phone: "+98 912 123 4567"}, nil)
	require.NoError(t, err)
	e.waitDelivery(t)

	assert.Equal(t, tag.TagID.String(), resp.TagID)
	assert.Equal(t, utils.MaskPhone(ownerPhone), resp.MaskedPhone)
	assert.Len(t, resp.OTP, utils.OTPLength)
	assert.Equal(t, e.clock.Now().Add(10*time.Minute), resp.ExpiresAt)

	ch, err := e.challenges.ByTagAndPhone(context.Background(), tag.ID, ownerPhone)
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.NotEqual(t, resp.OTP, ch.OTPHash)
	assert.Equal(t, 0, ch.Attempts)
	assert.Contains(t, e.audits.actions(), models.AuditActionOTPRequested)
}

func TestRequestOTP_HidesCodeInProduction(t *testing.T) {
	e := newEnv(t)
	e.cfg.Deployment.Environment = "production"
	e.addTag(t, "abcd1234", models.TagStatusGenerated, nil)

	resp, err := e.activation.RequestOTP(context.Background(), &dto.RequestOTPRequest{Tag: "abcd1234", Phone: ownerPhone}, nil)
	require.NoError(t, err)
	e.waitDelivery(t)
	assert.Empty(t, resp.OTP)
	assert.Len(t, e.notifier.code(ownerPhone), utils.OTPLength)
}

func TestRequestOTP_Rejections(t *testing.T) {
	e := newEnv(t)
	e.addTag(t, "archived", models.TagStatusArchived, nil)
	e.addTag(t, "active01", models.TagStatusActivated, nil)
	e.addTag(t, "fresh001", models.TagStatusGenerated, nil)

	tests := []struct {
		name  string
		tag   string
		phone string
		code  string
	}{
		{"unknown tag", "nope0000", ownerPhone, "TAG_NOT_FOUND"},
		{"archived tag", "archived", ownerPhone, "TAG_ARCHIVED"},
		{"activated tag", "active01", ownerPhone, "TAG_ALREADY_ACTIVATED"},
		{"short phone", "fresh001", "12345", "INVALID_PHONE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.activation.RequestOTP(context.Background(), &dto.RequestOTPRequest{Tag: tt.tag, Phone: tt.phone}, nil)
			requireCode(t, err, tt.code)
		})
	}
}

func TestRequestOTP_CaptchaRequired(t *testing.T) {
	e := newEnv(t)
	e.cfg.OTP.RequireCaptcha = true
	e.addTag(t, "fresh001", models.TagStatusGenerated, nil)

	_, err := e.activation.RequestOTP(context.Background(), &dto.RequestOTPRequest{Tag: "fresh001", Phone: ownerPhone}, nil)
	requireCode(t, err, "CAPTCHA_REQUIRED")

	angle := 90.0
	_, err = e.activation.RequestOTP(context.Background(), &dto.RequestOTPRequest{Tag: "fresh001", Phone: ownerPhone, CaptchaID: "x", CaptchaAngle: &angle}, nil)
	requireCode(t, err, "CAPTCHA_INVALID")
}

type fixedCooldown struct {
	allow      bool
	retryAfter time.Duration
}

func (c fixedCooldown) Acquire(context.Context, string, time.Duration) (bool, time.Duration, error) {
	return c.allow, c.retryAfter, nil
}

func TestRequestOTP_Cooldown(t *testing.T) {
	e := newEnv(t)
	e.activation.cooldown = fixedCooldown{allow: false, retryAfter: 42 * time.Second}
	e.addTag(t, "fresh001", models.TagStatusGenerated, nil)

	_, err := e.activation.RequestOTP(context.Background(), &dto.RequestOTPRequest{Tag: "fresh001", Phone: ownerPhone}, nil)
	be := requireCode(t, err, "OTP_COOLDOWN")
	assert.Equal(t, KindRateLimited, be.Kind)
	assert.True(t, be.Retryable)
	assert.Equal(t, map[string]any{"retry_after_seconds": 42}, be.Details)
}

func TestConfirmActivation_HappyPath(t *testing.T) {
	e := newEnv(t)
	affiliate := e.addUser(t, models.UserRoleAffiliate, "20")
	tag := e.addTag(t, "abcd1234", models.TagStatusAssigned, &affiliate.ID)
	code := e.requestCode(t, "abcd1234", ownerPhone)

	resp, err := e.activation.ConfirmActivation(context.Background(), confirmRequest("abcd1234", ownerPhone, code, ownerVehicle),
		Actor{ID: affiliate.ID, Role: models.UserRoleAffiliate}, NewClientMetadata("10.0.0.1", "test"))
	require.NoError(t, err)

	assert.Equal(t, tag.ShortURL, resp.ShortURL)
	assert.Equal(t, "12AB345", resp.Owner.VehicleNumber)
	assert.Equal(t, utils.MaskPhone(ownerPhone), resp.Owner.MaskedPhone)
	require.NotNil(t, resp.SalesPersonID)
	assert.Equal(t, affiliate.ID, *resp.SalesPersonID)
	assert.Equal(t, dto.CommissionBreakdown{Total: 29900, Cost: 12900, SalesPerson: 5980, Owner: 11020, Percentage: "20.00"}, resp.Commission)

	stored, _ := e.tags.ByID(context.Background(), tag.ID)
	assert.Equal(t, models.TagStatusActivated, stored.Status)
	require.NotNil(t, stored.OwnerAssignedTo)
	assert.Equal(t, resp.Owner.ID, *stored.OwnerAssignedTo)
	require.NotNil(t, stored.ActivatedIP)
	assert.Equal(t, "10.0.0.1", *stored.ActivatedIP)

	owner, _ := e.owners.ByID(context.Background(), resp.Owner.ID)
	assert.Equal(t, []string{tag.TagID.String()}, []string(owner.TagIDs))
	assert.NotEqual(t, ownerPhone, owner.EncryptedPhone)
	plain, err := sharedCipher(t).Decrypt(owner.EncryptedPhone)
	require.NoError(t, err)
	assert.Equal(t, ownerPhone, plain)

	sale, _ := e.sales.ByTagID(context.Background(), tag.ID)
	require.NotNil(t, sale)
	assert.Equal(t, models.SaleTypeNotConfirmed, sale.SaleType)
	assert.Equal(t, models.SaleStatusPending, sale.PaymentStatus)
	assert.Equal(t, []string{utils.DefaultActivationMessage}, []string(sale.Messages))

	ch, _ := e.challenges.ByTagAndPhone(context.Background(), tag.ID, ownerPhone)
	assert.Nil(t, ch, "challenge must be consumed")
	assert.Contains(t, e.audits.actions(), models.AuditActionTagActivated)
	assertOwnerInvariant(t, e)
}

func TestConfirmActivation_AttemptsExhausted(t *testing.T) {
	e := newEnv(t)
	affiliate := e.addUser(t, models.UserRoleAffiliate, "20")
	tag := e.addTag(t, "abcd1234", models.TagStatusAssigned, &affiliate.ID)
	code := e.requestCode(t, "abcd1234", ownerPhone)
	actor := Actor{ID: affiliate.ID, Role: models.UserRoleAffiliate}

	for i := range 5 {
		_, err := e.activation.ConfirmActivation(context.Background(), confirmRequest("abcd1234", ownerPhone, wrongCode(code), ownerVehicle), actor, nil)
		be := requireCode(t, err, "INVALID_OTP")
		assert.Equal(t, KindChallengeExpiredOrInvalid, be.Kind, "attempt %d", i+1)
	}

	_, err := e.activation.ConfirmActivation(context.Background(), confirmRequest("abcd1234", ownerPhone, code, ownerVehicle), actor, nil)
	be := requireCode(t, err, "ATTEMPTS_EXCEEDED")
	assert.Equal(t, KindAttemptsExceeded, be.Kind)

	stored, _ := e.tags.ByID(context.Background(), tag.ID)
	assert.Equal(t, models.TagStatusAssigned, stored.Status)
	ch, _ := e.challenges.ByTagAndPhone(context.Background(), tag.ID, ownerPhone)
	require.NotNil(t, ch)
	assert.Equal(t, 5, ch.Attempts)
	assert.Empty(t, e.store.sales.list(nil))
}

func TestConfirmActivation_ReissueResetsAttempts(t *testing.T) {
	e := newEnv(t)
	affiliate := e.addUser(t, models.UserRoleAffiliate, "20")
	e.addTag(t, "abcd1234", models.TagStatusAssigned, &affiliate.ID)
	actor := Actor{ID: affiliate.ID, Role: models.UserRoleAffiliate}

	first := e.requestCode(t, "abcd1234", ownerPhone)
	for range 5 {
		_, _ = e.activation.ConfirmActivation(context.Background(), confirmRequest("abcd1234", ownerPhone, wrongCode(first), ownerVehicle), actor, nil)
	}

	second := e.requestCode(t, "abcd1234", ownerPhone)
	_, err := e.activation.ConfirmActivation(context.Background(), confirmRequest("abcd1234", ownerPhone, second, ownerVehicle), actor, nil)
	require.NoError(t, err)
}

func TestConfirmActivation_ExpiredAndMissingChallenge(t *testing.T) {
	e := newEnv(t)
	affiliate := e.addUser(t, models.UserRoleAffiliate, "20")
	e.addTag(t, "abcd1234", models.TagStatusAssigned, &affiliate.ID)
	actor := Actor{ID: affiliate.ID, Role: models.UserRoleAffiliate}

	_, err := e.activation.ConfirmActivation(context.Background(), confirmRequest("abcd1234", ownerPhone, "123456", ownerVehicle), actor, nil)
	be := requireCode(t, err, "OTP_NOT_REQUESTED")
	assert.Equal(t, KindNotFound, be.Kind)

	code := e.requestCode(t, "abcd1234", ownerPhone)
	e.clock.Advance(10 * time.Minute)
	_, err = e.activation.ConfirmActivation(context.Background(), confirmRequest("abcd1234", ownerPhone, code, ownerVehicle), actor, nil)
	be = requireCode(t, err, "CHALLENGE_EXPIRED_OR_INVALID")
	assert.Equal(t, KindChallengeExpiredOrInvalid, be.Kind)
}

func TestConfirmActivation_ChallengeScopedToPhone(t *testing.T) {
	e := newEnv(t)
	affiliate := e.addUser(t, models.UserRoleAffiliate, "20")
	e.addTag(t, "abcd1234", models.TagStatusAssigned, &affiliate.ID)
	code := e.requestCode(t, "abcd1234", ownerPhone)

	_, err := e.activation.ConfirmActivation(context.Background(), confirmRequest("abcd1234", otherPhone, code, ownerVehicle),
		Actor{ID: affiliate.ID, Role: models.UserRoleAffiliate}, nil)
	requireCode(t, err, "OTP_NOT_REQUESTED")
}

func TestConfirmActivation_ConcurrentConfirmationsHaveOneWinner(t *testing.T) {
	e := newEnv(t)
	affiliate := e.addUser(t, models.UserRoleAffiliate, "20")
	tag := e.addTag(t, "abcd1234", models.TagStatusAssigned, &affiliate.ID)
	code := e.requestCode(t, "abcd1234", ownerPhone)
	actor := Actor{ID: affiliate.ID, Role: models.UserRoleAffiliate}

	// one confirmation per available attempt, so every loser gets to compare
	workers := e.cfg.OTP.MaxAttempts
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		codes     []string
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.activation.ConfirmActivation(context.Background(), confirmRequest("abcd1234", ownerPhone, code, ownerVehicle), actor, nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			var be *BusinessError
			if errors.As(err, &be) {
				codes = append(codes, string(be.Kind)+":"+be.Code)
				return
			}
			codes = append(codes, err.Error())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Len(t, codes, workers-1)
	for _, c := range codes {
		assert.Equal(t, "Conflict:TAG_ALREADY_ACTIVATED", c)
	}
	sales, err := e.sales.Count(context.Background(), models.SaleFilter{TagID: &tag.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sales)
	assertOwnerInvariant(t, e)
}

func TestConfirmActivation_OwnerIdentityConflictRollsBack(t *testing.T) {
	e := newEnv(t)
	affiliate := e.addUser(t, models.UserRoleAffiliate, "20")
	actor := Actor{ID: affiliate.ID, Role: models.UserRoleAffiliate}
	e.addTag(t, "first001", models.TagStatusAssigned, &affiliate.ID)
	e.addTag(t, "second01", models.TagStatusAssigned, &affiliate.ID)
	tag := e.addTag(t, "third001", models.TagStatusAssigned, &affiliate.ID)

	code := e.requestCode(t, "first001", ownerPhone)
	_, err := e.activation.ConfirmActivation(context.Background(), confirmRequest("first001", ownerPhone, code, "AAA111"), actor, nil)
	require.NoError(t, err)
	code = e.requestCode(t, "second01", otherPhone)
	_, err = e.activation.ConfirmActivation(context.Background(), confirmRequest("second01", otherPhone, code, "BBB222"), actor, nil)
	require.NoError(t, err)

	// phone of the first owner with the vehicle of the second
	code = e.requestCode(t, "third001", ownerPhone)
	_, err = e.activation.ConfirmActivation(context.Background(), confirmRequest("third001", ownerPhone, code, "BBB222"), actor, nil)
	be := requireCode(t, err, "OWNER_IDENTITY_CONFLICT")
	assert.Equal(t, KindConflict, be.Kind)

	stored, _ := e.tags.ByID(context.Background(), tag.ID)
	assert.Equal(t, models.TagStatusAssigned, stored.Status)
	assert.Nil(t, stored.OwnerAssignedTo)
	ch, _ := e.challenges.ByTagAndPhone(context.Background(), tag.ID, ownerPhone)
	assert.NotNil(t, ch, "a rolled back confirmation must not consume the challenge")
	assertOwnerInvariant(t, e)
}

func TestConfirmActivation_ReusesOwnerAcrossTags(t *testing.T) {
	e := newEnv(t)
	affiliate := e.addUser(t, models.UserRoleAffiliate, "20")
	actor := Actor{ID: affiliate.ID, Role: models.UserRoleAffiliate}
	first := e.addTag(t, "first001", models.TagStatusAssigned, &affiliate.ID)
	second := e.addTag(t, "second01", models.TagStatusAssigned, &affiliate.ID)

	code := e.requestCode(t, "first001", ownerPhone)
	r1, err := e.activation.ConfirmActivation(context.Background(), confirmRequest("first001", ownerPhone, code, ownerVehicle), actor, nil)
	require.NoError(t, err)
	code = e.requestCode(t, second.TagID.String(), ownerPhone)
	r2, err := e.activation.ConfirmActivation(context.Background(), confirmRequest(second.TagID.String(), ownerPhone, code, ownerVehicle), actor, nil)
	require.NoError(t, err)

	assert.Equal(t, r1.Owner.ID, r2.Owner.ID)
	owner, _ := e.owners.ByID(context.Background(), r1.Owner.ID)
	assert.ElementsMatch(t, []string{first.TagID.String(), second.TagID.String()}, []string(owner.TagIDs))
}

func TestConfirmActivation_AdminAttribution(t *testing.T) {
	tests := []struct {
		name            string
		fallback        string
		assigned        bool
		wantSalesPerson func(admin, affiliate *models.User) *uint
		wantCommission  int64
	}{
		{"assigned tag credits affiliate", config.AdminFallbackCreditAdmin, true, func(_, aff *models.User) *uint { return &aff.ID }, 5980},
		{"unassigned tag credits admin", config.AdminFallbackCreditAdmin, false, func(adm, _ *models.User) *uint { return &adm.ID }, 2990},
		{"unassigned tag without fallback", config.AdminFallbackNone, false, func(_, _ *models.User) *uint { return nil }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.cfg.Commission.AdminFallback = tt.fallback
			admin := e.addUser(t, models.UserRoleAdmin, "10")
			affiliate := e.addUser(t, models.UserRoleAffiliate, "20")
			var assignedTo *uint
			if tt.assigned {
				assignedTo = &affiliate.ID
			}
			e.addTag(t, "abcd1234", models.TagStatusGenerated, assignedTo)
			code := e.requestCode(t, "abcd1234", ownerPhone)

			resp, err := e.activation.ConfirmActivation(context.Background(), confirmRequest("abcd1234", ownerPhone, code, ownerVehicle),
				Actor{ID: admin.ID, Role: models.UserRoleAdmin}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSalesPerson(admin, affiliate), resp.SalesPersonID)
			assert.Equal(t, tt.wantCommission, resp.Commission.SalesPerson)
			assert.Equal(t, int64(29900-12900)-tt.wantCommission, resp.Commission.Owner)
		})
	}
}

func TestConfirmActivation_MissingProfileRollsBack(t *testing.T) {
	e := newEnv(t)
	tag := e.addTag(t, "abcd1234", models.TagStatusGenerated, nil)
	code := e.requestCode(t, "abcd1234", ownerPhone)

	_, err := e.activation.ConfirmActivation(context.Background(), confirmRequest("abcd1234", ownerPhone, code, ownerVehicle),
		Actor{ID: 999, Role: models.UserRoleAffiliate}, nil)
	be := requireCode(t, err, "COMMISSION_PROFILE_MISSING")
	assert.Equal(t, KindCommissionProfileMissing, be.Kind)

	stored, _ := e.tags.ByID(context.Background(), tag.ID)
	assert.Equal(t, models.TagStatusGenerated, stored.Status)
	assert.Empty(t, e.store.owners.list(nil))
	assertOwnerInvariant(t, e)
}

func TestConfirmActivation_SaleParameters(t *testing.T) {
	e := newEnv(t)
	affiliate := e.addUser(t, models.UserRoleAffiliate, "20")
	e.addTag(t, "abcd1234", models.TagStatusAssigned, &affiliate.ID)
	code := e.requestCode(t, "abcd1234", ownerPhone)
	actor := Actor{ID: affiliate.ID, Role: models.UserRoleAffiliate}

	req := confirmRequest("abcd1234", ownerPhone, code, ownerVehicle)
	total, cost := int64(100), int64(200)
	req.Sale = &dto.SaleParams{TotalSaleAmount: &total, CostAmount: &cost}
	_, err := e.activation.ConfirmActivation(context.Background(), req, actor, nil)
	requireCode(t, err, "INVALID_AMOUNT")

	saleType, msg := "online", "paid at the counter"
	total, cost = 50000, 10000
	req.Sale = &dto.SaleParams{TotalSaleAmount: &total, CostAmount: &cost, SaleType: &saleType, Message: &msg}
	resp, err := e.activation.ConfirmActivation(context.Background(), req, actor, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), resp.Commission.SalesPerson)
	assert.Equal(t, int64(30000), resp.Commission.Owner)

	sale, _ := e.sales.ByID(context.Background(), resp.SaleID)
	assert.Equal(t, models.SaleTypeOnline, sale.SaleType)
	assert.Equal(t, []string{msg}, []string(sale.Messages))
}
