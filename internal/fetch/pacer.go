package fetch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultFeedInterval spaces out consecutive per-channel feed reads.
const DefaultFeedInterval = 250 * time.Millisecond

// Pacer smooths bursts of per-channel calls.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows one call per interval. A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
