package businessflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/taptag/app/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHasher struct {
	services.OTPHasher
	compared atomic.Int32
}

func (h *countingHasher) Matches(hash, code string) bool {
	h.compared.Add(1)
	return h.OTPHasher.Matches(hash, code)
}

func TestOTPChallenge_VerifyAndConsume(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	issued, err := e.otp.Issue(ctx, 1, ownerPhone, nil)
	require.NoError(t, err)
	assert.Len(t, issued.Code, 6)

	ch, err := e.otp.Verify(ctx, 1, ownerPhone, issued.Code)
	require.NoError(t, err)
	require.NotNil(t, ch)

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.otp.Consume(txCtx, ch)
	})
	require.NoError(t, err)

	// single use
	_, err = e.otp.Verify(ctx, 1, ownerPhone, issued.Code)
	assert.ErrorIs(t, err, ErrOTPNotRequested)
}

func TestOTPChallenge_WrongGuessesAreCounted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	issued, err := e.otp.Issue(ctx, 1, ownerPhone, NewClientMetadata("1.2.3.4", "ua"))
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		_, err := e.otp.Verify(ctx, 1, ownerPhone, wrongCode(issued.Code))
		assert.ErrorIs(t, err, ErrInvalidOTP)
		ch, _ := e.challenges.ByTagAndPhone(ctx, 1, ownerPhone)
		assert.Equal(t, i, ch.Attempts)
	}

	// exhausted: even the right code fails and the counter stays put
	_, err = e.otp.Verify(ctx, 1, ownerPhone, issued.Code)
	assert.ErrorIs(t, err, ErrAttemptsExceeded)
	ch, _ := e.challenges.ByTagAndPhone(ctx, 1, ownerPhone)
	assert.Equal(t, 5, ch.Attempts)
}

func TestOTPChallenge_ConsumeAfterExpiry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	issued, err := e.otp.Issue(ctx, 1, ownerPhone, nil)
	require.NoError(t, err)
	ch, err := e.otp.Verify(ctx, 1, ownerPhone, issued.Code)
	require.NoError(t, err)

	e.clock.Advance(11 * time.Minute)
	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.otp.Consume(txCtx, ch)
	})
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestOTPChallenge_ReissueReplacesCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.otp.Issue(ctx, 1, ownerPhone, nil)
	require.NoError(t, err)
	_, _ = e.otp.Verify(ctx, 1, ownerPhone, wrongCode(first.Code))

	second, err := e.otp.Issue(ctx, 1, ownerPhone, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ChallengeID, second.ChallengeID)

	ch, _ := e.challenges.ByTagAndPhone(ctx, 1, ownerPhone)
	assert.Equal(t, 0, ch.Attempts)
	if first.Code != second.Code {
		_, err = e.otp.Verify(ctx, 1, ownerPhone, first.Code)
		assert.ErrorIs(t, err, ErrInvalidOTP)
	}
	_, err = e.otp.Verify(ctx, 1, ownerPhone, second.Code)
	assert.NoError(t, err)
}

func TestOTPChallenge_ParallelGuessesRespectAttemptCap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	hasher := &countingHasher{OTPHasher: e.otp.hasher}
	e.otp.hasher = hasher

	issued, err := e.otp.Issue(ctx, 1, ownerPhone, nil)
	require.NoError(t, err)

	const guesses = 20
	var (
		wg       sync.WaitGroup
		invalid  atomic.Int32
		exceeded atomic.Int32
	)
	for range guesses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.otp.Verify(ctx, 1, ownerPhone, wrongCode(issued.Code))
			switch {
			case IsInvalidOTP(err):
				invalid.Add(1)
			case IsAttemptsExceeded(err):
				exceeded.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), invalid.Load())
	assert.Equal(t, int32(guesses-5), exceeded.Load())
	assert.Equal(t, int32(5), hasher.compared.Load())
	ch, err := e.challenges.ByTagAndPhone(ctx, 1, ownerPhone)
	require.NoError(t, err)
	assert.Equal(t, 5, ch.Attempts)

	_, err = e.otp.Verify(ctx, 1, ownerPhone, issued.Code)
	assert.ErrorIs(t, err, ErrAttemptsExceeded)
	assert.Equal(t, int32(5), hasher.compared.Load())
}
