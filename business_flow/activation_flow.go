package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/amirphl/taptag/app/dto"
	"github.com/amirphl/taptag/app/services"
	"github.com/amirphl/taptag/config"
	"github.com/amirphl/taptag/models"
	"github.com/amirphl/taptag/repository"
	"github.com/amirphl/taptag/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ActivationFlow gates tag activation behind a passcode and turns a verified
// confirmation into an owner, an activated tag and a sale in one transaction
type ActivationFlow interface {
	GetCaptcha(ctx context.Context) (*dto.CaptchaResponse, error)
	RequestOTP(ctx context.Context, req *dto.RequestOTPRequest, metadata *ClientMetadata) (*dto.RequestOTPResponse, error)
	ConfirmActivation(ctx context.Context, req *dto.ConfirmActivationRequest, actor Actor, metadata *ClientMetadata) (*dto.ConfirmActivationResponse, error)
}

type ActivationFlowImpl struct {
	tagRepo   repository.TagRepository
	ownerRepo repository.TagOwnerRepository
	userRepo  repository.UserRepository
	saleRepo  repository.SaleRepository
	txManager repository.TxManager
	otp       OTPChallenge
	notifier  services.NotificationService
	captcha   services.CaptchaService
	cooldown  services.CooldownLimiter
	cipher    services.PhoneCipher
	cfg       *config.ProductionConfig
	logger    *log.Logger
	audit     auditRecorder
	now       clock
}

// NewActivationFlow wires the activation use cases. captcha and cooldown may be nil.
func NewActivationFlow(
	tagRepo repository.TagRepository,
	ownerRepo repository.TagOwnerRepository,
	userRepo repository.UserRepository,
	saleRepo repository.SaleRepository,
	auditRepo repository.AuditLogRepository,
	txManager repository.TxManager,
	otp OTPChallenge,
	notifier services.NotificationService,
	captcha services.CaptchaService,
	cooldown services.CooldownLimiter,
	cipher services.PhoneCipher,
	cfg *config.ProductionConfig,
	logger *log.Logger,
) ActivationFlow {
	return &ActivationFlowImpl{
		tagRepo:   tagRepo,
		ownerRepo: ownerRepo,
		userRepo:  userRepo,
		saleRepo:  saleRepo,
		txManager: txManager,
		otp:       otp,
		notifier:  notifier,
		captcha:   captcha,
		cooldown:  cooldown,
		cipher:    cipher,
		cfg:       cfg,
		logger:    logger,
		audit:     auditRecorder{repo: auditRepo, logger: logger},
		now:       utils.UTCNow,
	}
}

func (f *ActivationFlowImpl) GetCaptcha(ctx context.Context) (*dto.CaptchaResponse, error) {
	if f.captcha == nil {
		return nil, NewBusinessError("CAPTCHA_DISABLED", "Captcha is not enabled", nil)
	}
	ch, err := f.captcha.GenerateRotate(ctx)
	if err != nil {
		return nil, NewBusinessError("CAPTCHA_GENERATION_FAILED", "Failed to generate captcha", err)
	}
	return &dto.CaptchaResponse{
		ID:                ch.ID,
		MasterImageBase64: ch.MasterImageBase64,
		ThumbImageBase64:  ch.ThumbImageBase64,
		ExpiresAt:         ch.ExpiresAt,
	}, nil
}

// RequestOTP issues a passcode for (tag, phone) and hands it to the notifier after it is stored
func (f *ActivationFlowImpl) RequestOTP(ctx context.Context, req *dto.RequestOTPRequest, metadata *ClientMetadata) (*dto.RequestOTPResponse, error) {
	phone, err := normalizeOwnerPhone(req.Phone)
	if err != nil {
		return nil, toBusinessError(err, "", "")
	}

	if f.cfg.OTP.RequireCaptcha {
		if req.CaptchaID == "" || req.CaptchaAngle == nil {
			return nil, toBusinessError(ErrCaptchaRequired, "", "")
		}
		if f.captcha == nil || !f.captcha.VerifyRotate(ctx, req.CaptchaID, *req.CaptchaAngle) {
			return nil, toBusinessError(ErrCaptchaInvalid, "", "")
		}
	}

	tag, err := f.loadActivatableTag(ctx, req.Tag)
	if err != nil {
		return nil, toBusinessError(err, "OTP_REQUEST_FAILED", "Failed to request passcode")
	}

	if f.cooldown != nil {
		key := fmt.Sprintf("otp:%d:%s", tag.ID, phone)
		ok, retryAfter, err := f.cooldown.Acquire(ctx, key, f.cfg.OTP.ResendCooldown)
		if err != nil {
			// cooldown store unavailable: the passcode is still issued
			f.logger.Printf("activation: cooldown check failed for tag %s: %v", tag.ShortCode, err)
		} else if !ok {
			return nil, NewBusinessError("OTP_COOLDOWN", ErrOTPCooldown.Error(), ErrOTPCooldown).
				WithDetails(map[string]any{"retry_after_seconds": int(retryAfter.Round(time.Second).Seconds())})
		}
	}

	issued, err := f.otp.Issue(ctx, tag.ID, phone, metadata)
	if err != nil {
		return nil, NewBusinessError("OTP_REQUEST_FAILED", "Failed to request passcode", err)
	}
	otpIssuedTotal.Inc()

	f.audit.record(ctx, nil, models.AuditActionOTPRequested,
		fmt.Sprintf("Passcode requested for tag %s and phone %s", tag.ShortCode, utils.MaskPhone(phone)),
		true, nil, metadata, map[string]any{"tag_id": tag.ID})

	// Delivery happens after the challenge is stored; a failure leaves the code valid for manual relay
	validMinutes := int(f.cfg.OTP.TTL / time.Minute)
	go func(code string) {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := f.notifier.SendOTP(sendCtx, phone, code, validMinutes); err != nil {
			otpDeliveryFailuresTotal.Inc()
			f.logger.Printf("activation: passcode delivery to %s failed for tag %s: %v", utils.MaskPhone(phone), tag.ShortCode, err)
		}
	}(issued.Code)

	resp := &dto.RequestOTPResponse{
		TagID:       tag.TagID.String(),
		ShortCode:   tag.ShortCode,
		MaskedPhone: utils.MaskPhone(phone),
		ExpiresAt:   issued.ExpiresAt,
	}
	if !f.cfg.IsProduction() {
		resp.OTP = issued.Code
	}
	return resp, nil
}

// ConfirmActivation verifies the passcode, then activates the tag, upserts the
// owner and records the sale inside one serializable transaction
func (f *ActivationFlowImpl) ConfirmActivation(ctx context.Context, req *dto.ConfirmActivationRequest, actor Actor, metadata *ClientMetadata) (*dto.ConfirmActivationResponse, error) {
	resp, err := f.confirmActivation(ctx, req, actor, metadata)
	if err != nil {
		be := toBusinessError(err, "ACTIVATION_FAILED", "Tag activation failed")
		var typed *BusinessError
		if errors.As(be, &typed) {
			activationsTotal.WithLabelValues(typed.Code).Inc()
		}
		f.audit.record(ctx, &actor.ID, models.AuditActionTagActivationFailed,
			fmt.Sprintf("Activation of %s failed", req.Tag), false, err, metadata, nil)
		return nil, be
	}
	activationsTotal.WithLabelValues("OK").Inc()
	return resp, nil
}

type activationInput struct {
	phone         string
	email         *string
	vehicleNumber string
	vehicleType   string
	total         int64
	cost          int64
	saleType      models.SaleType
	message       string
}

func (f *ActivationFlowImpl) confirmActivation(ctx context.Context, req *dto.ConfirmActivationRequest, actor Actor, metadata *ClientMetadata) (*dto.ConfirmActivationResponse, error) {
	in, err := f.normalizeActivationInput(req)
	if err != nil {
		return nil, err
	}

	tag, err := f.loadActivatableTag(ctx, req.Tag)
	if err != nil {
		return nil, err
	}

	// The attempt counter must survive a failed confirmation, so verification runs before the transaction
	challenge, err := f.otp.Verify(ctx, tag.ID, in.phone, req.OTP)
	if err != nil {
		otpVerificationsTotal.WithLabelValues(verificationResult(err)).Inc()
		if !IsOTPNotRequested(err) {
			f.audit.record(ctx, &actor.ID, models.AuditActionOTPFailed,
				fmt.Sprintf("Passcode verification failed for tag %s", tag.ShortCode), false, err, metadata, map[string]any{"tag_id": tag.ID})
		}
		return nil, f.classifyActivationError(ctx, tag.ID, err)
	}
	otpVerificationsTotal.WithLabelValues("ok").Inc()

	encryptedPhone, err := f.cipher.Encrypt(in.phone)
	if err != nil {
		return nil, fmt.Errorf("encrypt owner phone: %w", err)
	}

	var (
		owner *models.TagOwner
		sale  *models.Sale
		split CommissionSplit
		now   = f.now()
	)

	err = f.txManager.WithSerializableTransaction(ctx, func(txCtx context.Context) error {
		locked, err := f.tagRepo.ByIDForUpdate(txCtx, tag.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrTagNotFound
		}
		if locked.IsArchived() {
			return ErrTagArchived
		}
		if !locked.CanActivate() {
			return ErrTagAlreadyActivated
		}

		if err := f.otp.Consume(txCtx, challenge); err != nil {
			return err
		}

		owner, err = f.upsertOwner(txCtx, req.Owner, in, encryptedPhone, locked.TagID.String())
		if err != nil {
			return err
		}

		locked.Status = models.TagStatusActivated
		locked.OwnerAssignedTo = &owner.ID
		locked.ActivatedAt = &now
		locked.ActivatedBy = &actor.ID
		if metadata != nil && metadata.IPAddress != "" {
			ip := metadata.IPAddress
			locked.ActivatedIP = &ip
		}
		if err := f.tagRepo.Update(txCtx, locked); err != nil {
			return err
		}
		tag = locked

		attribution, err := resolveAttribution(txCtx, f.userRepo, actor, locked, f.cfg.Commission.AdminFallback)
		if err != nil {
			return err
		}
		split, err = ComputeCommission(in.total, in.cost, attribution.Percentage)
		if err != nil {
			return err
		}

		sale = &models.Sale{
			TagID:                          locked.ID,
			OwnerID:                        owner.ID,
			SalesPersonID:                  attribution.SalesPersonID,
			SalesPersonRole:                attribution.SalesPersonRole,
			SaleDate:                       now,
			SaleType:                       in.saleType,
			TotalSaleAmount:                split.Total,
			CommissionAmountOfSalesPerson:  split.SalesPerson,
			CommissionAmountOfOwner:        split.Owner,
			CostAmountOfProductAndServices: split.Cost,
			CommissionPercentage:           split.Percentage,
			PaymentStatus:                  models.SaleStatusPending,
			VerificationStatus:             models.SaleStatusPending,
			Messages:                       pq.StringArray{in.message},
			CreatedBy:                      &actor.ID,
			UpdatedBy:                      &actor.ID,
		}
		return f.saleRepo.Save(txCtx, sale)
	})
	if err != nil {
		return nil, f.classifyActivationError(ctx, tag.ID, err)
	}

	f.audit.record(ctx, &actor.ID, models.AuditActionTagActivated,
		fmt.Sprintf("Tag %s activated for owner %d", tag.ShortCode, owner.ID), true, nil, metadata,
		map[string]any{"tag_id": tag.ID, "sale_id": sale.ID, "owner_id": owner.ID})

	go func(tagID uint, shortCode string) {
		if err := f.notifier.NotifyActivation(context.Background(), int64(tagID), shortCode); err != nil {
			f.logger.Printf("activation: notify for tag %s failed: %v", shortCode, err)
		}
	}(tag.ID, tag.ShortCode)

	return &dto.ConfirmActivationResponse{
		TagID:     tag.TagID.String(),
		ShortCode: tag.ShortCode,
		ShortURL:  tag.ShortURL,
		Owner: dto.OwnerSummary{
			ID:            owner.ID,
			FullName:      owner.FullName,
			MaskedPhone:   utils.MaskPhone(owner.Phone),
			VehicleNumber: owner.VehicleNumber,
			VehicleType:   owner.VehicleType,
		},
		SaleID:        sale.ID,
		SalesPersonID: sale.SalesPersonID,
		Commission: dto.CommissionBreakdown{
			Total:       split.Total,
			Cost:        split.Cost,
			SalesPerson: split.SalesPerson,
			Owner:       split.Owner,
			Percentage:  split.Percentage.StringFixed(2),
		},
		ActivatedAt: now,
	}, nil
}

// classifyActivationError turns storage conflicts into the loser's view of a race
func (f *ActivationFlowImpl) classifyActivationError(ctx context.Context, tagID uint, err error) error {
	switch {
	case repository.IsUniqueViolation(err, repository.ConstraintSaleTagID):
		return ErrTagAlreadyActivated
	case repository.IsSerializationFailure(err):
		if f.activatedMeanwhile(ctx, tagID) {
			return ErrTagAlreadyActivated
		}
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	case IsOTPNotRequested(err), IsOTPExpired(err), IsAttemptsExceeded(err):
		// the winner of a race consumes the challenge it verified
		if f.activatedMeanwhile(ctx, tagID) {
			return ErrTagAlreadyActivated
		}
		return err
	case repository.IsUniqueViolation(err, repository.ConstraintOwnerPhone),
		repository.IsUniqueViolation(err, repository.ConstraintOwnerVehicleNumber):
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	default:
		return err
	}
}

// activatedMeanwhile reads the tag under a row lock, which waits for a confirmation in flight to finish
func (f *ActivationFlowImpl) activatedMeanwhile(ctx context.Context, tagID uint) bool {
	var activated bool
	err := f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := f.tagRepo.ByIDForUpdate(txCtx, tagID)
		if err != nil {
			return err
		}
		activated = current != nil && current.IsActivated()
		return nil
	})
	return err == nil && activated
}

func (f *ActivationFlowImpl) normalizeActivationInput(req *dto.ConfirmActivationRequest) (*activationInput, error) {
	phone, err := normalizeOwnerPhone(req.Phone)
	if err != nil {
		return nil, err
	}
	vehicle := utils.NormalizeVehicleNumber(req.Owner.VehicleNumber)
	if len(vehicle) < 2 || len(vehicle) > 32 {
		return nil, ErrInvalidVehicleNumber
	}

	in := &activationInput{
		phone:         phone,
		vehicleNumber: vehicle,
		vehicleType:   models.VehicleTypeCar,
		total:         f.cfg.Commission.DefaultTotalSaleAmount,
		cost:          f.cfg.Commission.DefaultCostAmount,
		saleType:      models.SaleTypeNotConfirmed,
		message:       utils.DefaultActivationMessage,
	}
	if req.Owner.Email != nil {
		if email := utils.NormalizeEmail(*req.Owner.Email); email != "" {
			in.email = &email
		}
	}
	if req.Owner.VehicleType != nil && *req.Owner.VehicleType != "" {
		in.vehicleType = *req.Owner.VehicleType
	}

	if sp := req.Sale; sp != nil {
		if sp.TotalSaleAmount != nil {
			in.total = *sp.TotalSaleAmount
		}
		if sp.CostAmount != nil {
			in.cost = *sp.CostAmount
		}
		if sp.SaleType != nil {
			in.saleType = models.SaleType(*sp.SaleType)
			if !in.saleType.IsValid() {
				return nil, ErrInvalidStatus
			}
		}
		if sp.Message != nil && strings.TrimSpace(*sp.Message) != "" {
			in.message = strings.TrimSpace(*sp.Message)
		}
	}
	if in.total < 0 || in.cost < 0 || in.cost > in.total {
		return nil, ErrInvalidAmount
	}
	return in, nil
}

// upsertOwner finds the owner by phone or vehicle number and adds the tag to its set
func (f *ActivationFlowImpl) upsertOwner(ctx context.Context, input dto.OwnerInput, in *activationInput, encryptedPhone, tagUUID string) (*models.TagOwner, error) {
	byPhone, err := f.ownerRepo.ByPhone(ctx, in.phone)
	if err != nil {
		return nil, err
	}
	byVehicle, err := f.ownerRepo.ByVehicleNumber(ctx, in.vehicleNumber)
	if err != nil {
		return nil, err
	}
	if byPhone != nil && byVehicle != nil && byPhone.ID != byVehicle.ID {
		return nil, ErrOwnerIdentityConflict
	}

	owner := byPhone
	if owner == nil {
		owner = byVehicle
	}
	isNew := owner == nil
	if isNew {
		owner = &models.TagOwner{
			PrefSMS:      true,
			PrefWhatsApp: true,
			PrefCall:     true,
			TagIDs:       pq.StringArray{},
		}
	}

	owner.FullName = strings.TrimSpace(input.FullName)
	owner.Phone = in.phone
	owner.EncryptedPhone = encryptedPhone
	owner.VehicleNumber = in.vehicleNumber
	owner.VehicleType = in.vehicleType
	owner.IsActive = true
	if in.email != nil {
		owner.Email = in.email
	}
	if input.VehicleBrand != nil {
		owner.VehicleBrand = input.VehicleBrand
	}
	if input.VehicleModel != nil {
		owner.VehicleModel = input.VehicleModel
	}
	if input.VehicleColor != nil {
		owner.VehicleColor = input.VehicleColor
	}
	if input.City != nil {
		owner.City = input.City
	}
	if input.PrefSMS != nil {
		owner.PrefSMS = *input.PrefSMS
	}
	if input.PrefWhatsApp != nil {
		owner.PrefWhatsApp = *input.PrefWhatsApp
	}
	if input.PrefCall != nil {
		owner.PrefCall = *input.PrefCall
	}
	owner.AddTag(tagUUID)

	if isNew {
		err = f.ownerRepo.Save(ctx, owner)
	} else {
		err = f.ownerRepo.Update(ctx, owner)
	}
	if err != nil {
		return nil, err
	}
	return owner, nil
}

// loadActivatableTag resolves a UUID or short code and rejects tags that can no longer be activated
func (f *ActivationFlowImpl) loadActivatableTag(ctx context.Context, ref string) (*models.Tag, error) {
	tag, err := resolveTagRef(ctx, f.tagRepo, ref)
	if err != nil {
		return nil, err
	}
	if tag.IsArchived() {
		return nil, ErrTagArchived
	}
	if !tag.CanActivate() {
		return nil, ErrTagAlreadyActivated
	}
	return tag, nil
}

// resolveTagRef accepts either the tag UUID or its short code
func resolveTagRef(ctx context.Context, repo repository.TagRepository, ref string) (*models.Tag, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrTagNotFound
	}
	var (
		tag *models.Tag
		err error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		tag, err = repo.ByTagID(ctx, id)
	} else {
		tag, err = repo.ByShortCode(ctx, strings.ToLower(ref))
	}
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, ErrTagNotFound
	}
	return tag, nil
}

func normalizeOwnerPhone(raw string) (string, error) {
	phone := utils.NormalizePhone(raw)
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 8 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

func verificationResult(err error) string {
	switch {
	case IsOTPNotRequested(err):
		return "not_requested"
	case IsOTPExpired(err):
		return "expired"
	case IsAttemptsExceeded(err):
		return "attempts_exceeded"
	case IsInvalidOTP(err):
		return "invalid"
	default:
		return "error"
	}
}
