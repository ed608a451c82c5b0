// Package services provides external service integrations and technical concerns like notifications, tokens and media
package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wenlng/go-captcha/v2/rotate"
)

// CaptchaService issues and checks the rotate captcha that may gate passcode requests.
// A challenge is single use: verification consumes it whether or not the angle matches.
type CaptchaService interface {
	GenerateRotate(ctx context.Context) (*RotateChallenge, error)
	VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool
}

type RotateChallenge struct {
	ID                string
	MasterImageBase64 string
	ThumbImageBase64  string
	ExpiresAt         time.Time
}

// CaptchaStore keeps the target angle of each pending challenge
type CaptchaStore interface {
	Put(ctx context.Context, id string, angle int, ttl time.Duration) error
	// Take returns and removes the angle; ok is false when missing or expired
	Take(ctx context.Context, id string) (angle int, ok bool, err error)
}

type captchaServiceImpl struct {
	rotator rotate.Captcha
	store   CaptchaStore
	ttl     time.Duration
	padding int
}

// NewCaptchaServiceRotate builds a rotate captcha backed by store.
// padding is the accepted angle difference in degrees.
func NewCaptchaServiceRotate(store CaptchaStore, ttl time.Duration, padding int, imgSizePx int) (CaptchaService, error) {
	if store == nil {
		return nil, errors.New("captcha store is required")
	}
	if imgSizePx <= 0 {
		imgSizePx = 220
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	builder := rotate.NewBuilder(rotate.WithImageSquareSize(imgSizePx))
	builder.SetResources(rotate.WithImages(generateRotateBackgrounds(3, imgSizePx)))

	return &captchaServiceImpl{
		rotator: builder.Make(),
		store:   store,
		ttl:     ttl,
		padding: padding,
	}, nil
}

func (s *captchaServiceImpl) GenerateRotate(ctx context.Context) (*RotateChallenge, error) {
	captData, err := s.rotator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate captcha: %w", err)
	}

	block := captData.GetData()
	if block == nil {
		return nil, errors.New("captcha generator returned no block data")
	}

	masterB64, err := captData.GetMasterImage().ToBase64()
	if err != nil {
		return nil, err
	}
	thumbB64, err := captData.GetThumbImage().ToBase64()
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	if err := s.store.Put(ctx, id, block.Angle, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store captcha: %w", err)
	}

	return &RotateChallenge{
		ID:                id,
		MasterImageBase64: masterB64,
		ThumbImageBase64:  thumbB64,
		ExpiresAt:         time.Now().Add(s.ttl),
	}, nil
}

func (s *captchaServiceImpl) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool {
	if challengeID == "" {
		return false
	}
	angle, ok, err := s.store.Take(ctx, challengeID)
	if err != nil || !ok {
		return false
	}
	return rotate.Validate(int(math.Round(userAngle)), angle, s.padding)
}

// RedisCaptchaStore shares challenges between replicas
type RedisCaptchaStore struct {
	rc     *redis.Client
	prefix string
}

func NewRedisCaptchaStore(rc *redis.Client, prefix string) *RedisCaptchaStore {
	return &RedisCaptchaStore{rc: rc, prefix: prefix}
}

func (s *RedisCaptchaStore) key(id string) string {
	return fmt.Sprintf("%s:captcha:%s", s.prefix, id)
}

func (s *RedisCaptchaStore) Put(ctx context.Context, id string, angle int, ttl time.Duration) error {
	return s.rc.Set(ctx, s.key(id), angle, ttl).Err()
}

func (s *RedisCaptchaStore) Take(ctx context.Context, id string) (int, bool, error) {
	raw, err := s.rc.GetDel(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	angle, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt captcha entry: %w", err)
	}
	return angle, true, nil
}

// MemoryCaptchaStore is used when no cache is configured and in tests
type MemoryCaptchaStore struct {
	mu  sync.Mutex
	m   map[string]memoryCaptchaEntry
	now func() time.Time
}

type memoryCaptchaEntry struct {
	angle     int
	expiresAt time.Time
}

func NewMemoryCaptchaStore() *MemoryCaptchaStore {
	return &MemoryCaptchaStore{m: make(map[string]memoryCaptchaEntry), now: time.Now}
}

func (s *MemoryCaptchaStore) Put(_ context.Context, id string, angle int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	// expired entries are swept lazily on write
	for k, v := range s.m {
		if now.After(v.expiresAt) {
			delete(s.m, k)
		}
	}
	s.m[id] = memoryCaptchaEntry{angle: angle, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryCaptchaStore) Take(_ context.Context, id string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[id]
	if !ok {
		return 0, false, nil
	}
	delete(s.m, id)
	if s.now().After(e.expiresAt) {
		return 0, false, nil
	}
	return e.angle, true, nil
}

func generateRotateBackgrounds(n int, size int) []image.Image {
	if n <= 0 {
		n = 1
	}
	imgs := make([]image.Image, 0, n)
	for range n {
		imgs = append(imgs, newNoiseGradientImage(size, size))
	}
	return imgs
}

func newNoiseGradientImage(w, h int) image.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	half := float64(w / 2)
	for y := range h {
		for x := range w {
			dx := float64(x - w/2)
			dy := float64(y - h/2)
			t := math.Min(math.Sqrt(dx*dx+dy*dy)/half, 1)
			base := uint8(200 - int(150*t))
			noise := uint8(rand.Intn(30))
			rgba.Set(x, y, color.RGBA{R: base, G: base + noise/3, B: 255 - base/2, A: 255})
		}
	}
	fillRect(rgba, image.Rect(10, 10, 10+w/3, 10+h/12), color.RGBA{R: 255, G: 255, B: 255, A: 32})
	fillRect(rgba, image.Rect(w/2, h/3, w/2+w/3, h/3+h/10), color.RGBA{A: 24})
	return rgba
}

func fillRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(dst, r, &image.Uniform{C: c}, image.Point{}, draw.Over)
}
