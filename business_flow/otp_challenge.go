package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/taptag/app/services"
	"github.com/amirphl/taptag/models"
	"github.com/amirphl/taptag/repository"
	"github.com/amirphl/taptag/utils"
)

// OTPChallenge issues, verifies and consumes activation passcodes.
// It returns bare sentinel errors; callers wrap them into BusinessError.
type OTPChallenge interface {
	Issue(ctx context.Context, tagID uint, phone string, metadata *ClientMetadata) (*IssuedOTP, error)
	Verify(ctx context.Context, tagID uint, phone, candidate string) (*models.OTPChallenge, error)
	Consume(ctx context.Context, challenge *models.OTPChallenge) error
}

// IssuedOTP carries the plaintext code for out of band delivery. It must not be logged.
type IssuedOTP struct {
	ChallengeID uint
	Code        string
	ExpiresAt   time.Time
}

type OTPChallengeImpl struct {
	repo        repository.OTPChallengeRepository
	hasher      services.OTPHasher
	ttl         time.Duration
	maxAttempts int
	now         clock
}

func NewOTPChallenge(repo repository.OTPChallengeRepository, hasher services.OTPHasher, ttl time.Duration, maxAttempts int) OTPChallenge {
	if ttl <= 0 {
		ttl = utils.OTPExpiry
	}
	if maxAttempts <= 0 {
		maxAttempts = utils.OTPMaxAttempts
	}
	return &OTPChallengeImpl{
		repo:        repo,
		hasher:      hasher,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         utils.UTCNow,
	}
}

// Issue replaces any previous challenge of (tagID, phone) with a fresh code and zero attempts
func (s *OTPChallengeImpl) Issue(ctx context.Context, tagID uint, phone string, metadata *ClientMetadata) (*IssuedOTP, error) {
	code, err := s.hasher.Generate(utils.OTPLength)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return nil, err
	}

	challenge := &models.OTPChallenge{
		TagID:       tagID,
		Phone:       phone,
		OTPHash:     hash,
		ExpiresAt:   s.now().Add(s.ttl),
		MaxAttempts: s.maxAttempts,
	}
	if metadata != nil {
		challenge.Context = map[string]any{
			"ip_address": metadata.IPAddress,
			"user_agent": metadata.UserAgent,
			"request_id": metadata.RequestID,
		}
	}

	if err := s.repo.Upsert(ctx, challenge); err != nil {
		return nil, err
	}

	return &IssuedOTP{
		ChallengeID: challenge.ID,
		Code:        code,
		ExpiresAt:   challenge.ExpiresAt,
	}, nil
}

// Verify checks candidate against the live challenge. Every comparison first
// reserves one attempt with a conditional increment, so parallel guesses can
// never compare more than maxAttempts codes. The increment is committed before
// any error returns.
func (s *OTPChallengeImpl) Verify(ctx context.Context, tagID uint, phone, candidate string) (*models.OTPChallenge, error) {
	challenge, err := s.repo.ByTagAndPhone(ctx, tagID, phone)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, ErrOTPNotRequested
	}
	if challenge.IsExpiredAt(s.now()) {
		return nil, ErrOTPExpired
	}
	// fail closed without comparing
	if challenge.AttemptsExhausted() {
		return nil, ErrAttemptsExceeded
	}

	reserved, err := s.repo.IncrementAttempts(ctx, challenge.ID)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, ErrAttemptsExceeded
	}
	if !s.hasher.Matches(challenge.OTPHash, candidate) {
		return nil, ErrInvalidOTP
	}

	return challenge, nil
}

// Consume deletes a verified challenge inside the caller's transaction
func (s *OTPChallengeImpl) Consume(ctx context.Context, challenge *models.OTPChallenge) error {
	ok, err := s.repo.Consume(ctx, challenge.ID, challenge.OTPHash, s.now())
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if !ok {
		return ErrOTPExpired
	}
	return nil
}
