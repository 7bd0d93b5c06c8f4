package fetch

import (
	"context"

	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

// UploadsFeedLookup resolves a channel's uploads feed.
type UploadsFeedLookup interface {
	UploadsFeed(ctx context.Context, channelID string) (string, error)
}

// Resolver finds the uploads feed of each channel, once per run.
type Resolver struct {
	api   UploadsFeedLookup
	gate  QuotaGate
	retry retry.Config
	log   zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(api UploadsFeedLookup, gate QuotaGate, cfg retry.Config, logger zerolog.Logger) *Resolver {
	return &Resolver{api: api, gate: gate, retry: cfg, log: logger.With().Str("component", "uploads_resolver").Logger()}
}

// Resolve returns the channel's feed ID and stores it on ch. The boolean is
// false when the channel should be skipped for this run. The error is set
// only for authorization failures.
func (r *Resolver) Resolve(ctx context.Context, ch *youtube.Channel) (string, bool, error) {
	if ch.UploadsFeedID != "" {
		return ch.UploadsFeedID, true, nil
	}
	if exhausted(r.gate) {
		return "", false, nil
	}

	var feed string
	err := call(ctx, r.retry, r.gate, func(ctx context.Context) error {
		var err error
		feed, err = r.api.UploadsFeed(ctx, ch.ID)
		return err
	})

	log := r.log.With().Str("channel_id", ch.ID).Str("channel", ch.Title).Logger()
	switch youtube.KindOf(err) {
	case youtube.KindOK:
		ch.UploadsFeedID = feed
		return feed, true, nil
	case youtube.KindAuth:
		return "", false, authFailure("resolve uploads feed", err)
	case youtube.KindNotFound:
		log.Warn().Msg("channel has no uploads feed, skipping")
	case youtube.KindQuotaExhausted:
		log.Warn().Msg("quota exhausted resolving uploads feed")
	default:
		log.Error().Err(err).Msg("resolve uploads feed failed, skipping channel")
	}
	return "", false, nil
}
