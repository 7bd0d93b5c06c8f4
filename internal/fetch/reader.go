package fetch

import (
	"context"

	"github.com/keif/playlist-from-subs/internal/quota"
	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

// DefaultMaxPerChannel is how many recent uploads are read per channel.
const DefaultMaxPerChannel = 5

// FeedItemLister reads one page of a feed.
type FeedItemLister interface {
	ListFeedItems(ctx context.Context, feedID string, maxItems int) ([]youtube.FeedItem, error)
}

// FeedReader reads the most recent items of an uploads feed.
type FeedReader struct {
	api   FeedItemLister
	gate  QuotaGate
	retry retry.Config
	log   zerolog.Logger
}

// NewFeedReader creates a FeedReader.
func NewFeedReader(api FeedItemLister, gate QuotaGate, cfg retry.Config, logger zerolog.Logger) *FeedReader {
	return &FeedReader{api: api, gate: gate, retry: cfg, log: logger.With().Str("component", "feed_reader").Logger()}
}

// ReadRecent returns a single page of at most min(maxItems, 50) items.
// Failures yield no items; only an authorization failure is returned.
func (r *FeedReader) ReadRecent(ctx context.Context, feedID string, maxItems int) ([]youtube.FeedItem, error) {
	if maxItems <= 0 || maxItems > quota.MaxBatchSize {
		maxItems = quota.MaxBatchSize
	}
	if exhausted(r.gate) {
		return nil, nil
	}

	var items []youtube.FeedItem
	err := call(ctx, r.retry, r.gate, func(ctx context.Context) error {
		var err error
		items, err = r.api.ListFeedItems(ctx, feedID, maxItems)
		return err
	})
	if err != nil {
		if aerr := authFailure("read feed "+feedID, err); aerr != nil {
			return nil, aerr
		}
		r.log.Warn().Err(err).Str("feed_id", feedID).Stringer("kind", youtube.KindOf(err)).Msg("read feed failed")
		return nil, nil
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}
