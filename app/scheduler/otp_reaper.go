// Package scheduler runs periodic maintenance jobs next to the HTTP server
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/taptag/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reapedChallenges = promauto.NewCounter(prometheus.CounterOpts{
	Name: "taptag_otp_challenges_reaped_total",
	Help: "Expired activation passcode challenges removed by the reaper",
})

// maxBatchesPerRun caps the delete batches issued per tick
const maxBatchesPerRun = 20

// ExpiredChallengeDeleter is the slice of the challenge repository the reaper needs
type ExpiredChallengeDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}

// OTPReaper periodically deletes activation passcode challenges whose expiry has passed
type OTPReaper struct {
	repo      ExpiredChallengeDeleter
	logger    *log.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewOTPReaper(repo ExpiredChallengeDeleter, logger *log.Logger, interval time.Duration, batchSize int) *OTPReaper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if logger == nil {
		logger = log.Default()
	}
	return &OTPReaper{
		repo:      repo,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		now:       utils.UTCNow,
	}
}

// Start launches the reaper loop in a background goroutine and returns a stop function
func (r *OTPReaper) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()

	return cancel
}

// RunOnce deletes expired challenges in batches until a short batch comes back.
// It returns the number of rows removed.
func (r *OTPReaper) RunOnce(ctx context.Context) int64 {
	cutoff := r.now()
	var total int64
	for i := 0; i < maxBatchesPerRun; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := r.repo.DeleteExpired(ctx, cutoff, r.batchSize)
		if err != nil {
			r.logger.Printf("otp reaper: delete expired failed: %v", err)
			break
		}
		total += n
		if n < int64(r.batchSize) {
			break
		}
	}
	if total > 0 {
		reapedChallenges.Add(float64(total))
		r.logger.Printf("otp reaper: removed %d expired challenges", total)
	}
	return total
}
