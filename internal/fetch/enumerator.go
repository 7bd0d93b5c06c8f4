package fetch

import (
	"context"

	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

// DefaultMaxChannels caps subscription enumeration.
const DefaultMaxChannels = 1000

// SubscriptionLister lists the user's subscriptions page by page.
type SubscriptionLister interface {
	ListSubscriptions(ctx context.Context, pageToken string) (youtube.SubscriptionPage, error)
}

// Enumerator lists every subscribed channel.
type Enumerator struct {
	api         SubscriptionLister
	gate        QuotaGate
	retry       retry.Config
	maxChannels int
	log         zerolog.Logger
}

// NewEnumerator creates an enumerator with the default channel cap.
func NewEnumerator(api SubscriptionLister, gate QuotaGate, cfg retry.Config, logger zerolog.Logger) *Enumerator {
	return &Enumerator{
		api:         api,
		gate:        gate,
		retry:       cfg,
		maxChannels: DefaultMaxChannels,
		log:         logger.With().Str("component", "subscriptions").Logger(),
	}
}

// ListSubscriptions pages through subscriptions until the listing ends or
// the channel cap is hit. On quota exhaustion it returns what it has; on
// any other failure it returns no channels. Only an authorization failure
// is returned as an error.
func (e *Enumerator) ListSubscriptions(ctx context.Context) ([]youtube.Channel, error) {
	var channels []youtube.Channel
	token := ""

	for {
		if exhausted(e.gate) {
			e.log.Warn().Int("channels", len(channels)).Msg("quota exhausted, returning partial subscriptions")
			return channels, nil
		}

		var page youtube.SubscriptionPage
		err := call(ctx, e.retry, e.gate, func(ctx context.Context) error {
			var err error
			page, err = e.api.ListSubscriptions(ctx, token)
			return err
		})
		switch youtube.KindOf(err) {
		case youtube.KindOK:
		case youtube.KindQuotaExhausted:
			e.log.Warn().Int("channels", len(channels)).Msg("quota exhausted while listing subscriptions")
			return channels, nil
		case youtube.KindAuth:
			return nil, authFailure("list subscriptions", err)
		default:
			e.log.Error().Err(err).Msg("list subscriptions failed, treating as no subscriptions")
			return nil, nil
		}

		channels = append(channels, page.Channels...)
		if len(channels) >= e.maxChannels {
			e.log.Warn().Int("cap", e.maxChannels).Msg("subscription cap reached, ignoring the rest")
			return channels[:e.maxChannels], nil
		}

		token = page.NextPageToken
		if token == "" {
			e.log.Info().Int("channels", len(channels)).Msg("listed subscriptions")
			return channels, nil
		}
	}
}
