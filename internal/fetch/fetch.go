// Package fetch gathers sync candidates from the user's subscriptions.
//
// The chain is Enumerator -> Resolver -> FeedReader -> Batcher, driven by
// Collector. Each stage consults the shared quota gate before a remote call
// and degrades to a partial or empty result instead of failing the run.
// Authorization failures are the exception and end the run.
// Feeds are read through the uploads playlist (1 unit per page) and never
// through search (100 units per call).
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/youtube"
)

// QuotaGate is the quota ledger as seen by the fetch stages.
type QuotaGate interface {
	IsExhausted() bool
	MarkExhausted()
}

// ProcessedChecker reports videos that were already synced.
type ProcessedChecker interface {
	IsProcessed(videoID string) bool
}

// DefaultRetry retries a transient failure once after one second.
func DefaultRetry() retry.Config { return retry.Fixed(1, time.Second) }

// call runs fn with cfg, retrying only transient errors. A quota failure
// marks the gate.
func call(ctx context.Context, cfg retry.Config, gate QuotaGate, fn func(context.Context) error) error {
	err := retry.Do(ctx, cfg, youtube.IsTransient, fn)
	if youtube.KindOf(err) == youtube.KindQuotaExhausted && gate != nil {
		gate.MarkExhausted()
	}
	return err
}

// authFailure returns err wrapped with op when it is an authorization
// failure, which ends the run. Other errors yield nil.
func authFailure(op string, err error) error {
	if youtube.KindOf(err) != youtube.KindAuth {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func exhausted(gate QuotaGate) bool {
	return gate != nil && gate.IsExhausted()
}
