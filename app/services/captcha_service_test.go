package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCaptchaStore struct {
	*MemoryCaptchaStore
	angles map[string]int
}

func (s *recordingCaptchaStore) Put(ctx context.Context, id string, angle int, ttl time.Duration) error {
	s.angles[id] = angle
	return s.MemoryCaptchaStore.Put(ctx, id, angle, ttl)
}

func TestMemoryCaptchaStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCaptchaStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "a", 90, time.Minute))
	angle, ok, err := store.Take(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 90, angle)

	// single use
	_, ok, _ = store.Take(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "b", 45, time.Minute))
	now = now.Add(2 * time.Minute)
	_, ok, _ = store.Take(ctx, "b")
	assert.False(t, ok)
}

func TestCaptchaService_GenerateAndVerify(t *testing.T) {
	ctx := context.Background()
	store := &recordingCaptchaStore{MemoryCaptchaStore: NewMemoryCaptchaStore(), angles: map[string]int{}}
	svc, err := NewCaptchaServiceRotate(store, time.Minute, 5, 160)
	require.NoError(t, err)

	ch, err := svc.GenerateRotate(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, ch.ID)
	assert.NotEmpty(t, ch.MasterImageBase64)
	assert.NotEmpty(t, ch.ThumbImageBase64)

	angle, ok := store.angles[ch.ID]
	require.True(t, ok)
	assert.True(t, svc.VerifyRotate(ctx, ch.ID, float64(angle)))
	// consumed
	assert.False(t, svc.VerifyRotate(ctx, ch.ID, float64(angle)))
}

func TestCaptchaService_WrongAngleConsumes(t *testing.T) {
	ctx := context.Background()
	store := &recordingCaptchaStore{MemoryCaptchaStore: NewMemoryCaptchaStore(), angles: map[string]int{}}
	svc, err := NewCaptchaServiceRotate(store, time.Minute, 5, 160)
	require.NoError(t, err)

	ch, err := svc.GenerateRotate(ctx)
	require.NoError(t, err)
	angle := store.angles[ch.ID]

	assert.False(t, svc.VerifyRotate(ctx, ch.ID, float64((angle+180)%360)))
	assert.False(t, svc.VerifyRotate(ctx, ch.ID, float64(angle)))
	assert.False(t, svc.VerifyRotate(ctx, "", 0))
}

func TestNewCaptchaServiceRotate_RequiresStore(t *testing.T) {
	_, err := NewCaptchaServiceRotate(nil, time.Minute, 5, 160)
	assert.Error(t, err)
}
