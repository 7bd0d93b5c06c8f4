package fetch

import (
	"context"
	"time"

	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

// CollectorOptions bounds how much a collection run reads.
type CollectorOptions struct {
	// MaxPerChannel is the feed page size per channel. Zero means DefaultMaxPerChannel.
	MaxPerChannel int
	// MaxVideos caps the candidates sent to detail lookup. Zero means no cap.
	MaxVideos int
}

// Collection is the outcome of one Collect call.
type Collection struct {
	Videos          []youtube.Video
	Channels        int
	ChannelsSkipped int
	FeedItems       int
	Details         BatchReport
	QuotaHalted     bool
}

// Collector runs the fetch chain for every subscribed channel.
type Collector struct {
	enum     *Enumerator
	resolver *Resolver
	reader   *FeedReader
	batcher  *Batcher
	pacer    *Pacer
	gate     QuotaGate
	opts     CollectorOptions
	log      zerolog.Logger
}

// NewCollector wires the stages together.
func NewCollector(enum *Enumerator, resolver *Resolver, reader *FeedReader, batcher *Batcher, pacer *Pacer, gate QuotaGate, opts CollectorOptions, logger zerolog.Logger) *Collector {
	if opts.MaxPerChannel <= 0 {
		opts.MaxPerChannel = DefaultMaxPerChannel
	}
	if pacer == nil {
		pacer = NewPacer(0)
	}
	return &Collector{
		enum:     enum,
		resolver: resolver,
		reader:   reader,
		batcher:  batcher,
		pacer:    pacer,
		gate:     gate,
		opts:     opts,
		log:      logger.With().Str("component", "collector").Logger(),
	}
}

// Collect returns videos published at or after publishedAfter across all
// subscriptions. Videos already in known are returned without a detail
// lookup so the filter can count them. Items with no details are dropped.
// The error is non-nil only for authorization failures and cancellation.
func (c *Collector) Collect(ctx context.Context, publishedAfter time.Time, known ProcessedChecker) (Collection, error) {
	var res Collection

	channels, err := c.enum.ListSubscriptions(ctx)
	if err != nil {
		return res, err
	}
	res.Channels = len(channels)

	var items []youtube.FeedItem
	seen := make(map[string]struct{})
	for i := range channels {
		ch := &channels[i]
		if exhausted(c.gate) {
			res.ChannelsSkipped += len(channels) - i
			c.log.Warn().Int("remaining_channels", len(channels)-i).Msg("quota exhausted, stopping feed reads")
			break
		}
		if err := c.pacer.Wait(ctx); err != nil {
			return res, err
		}

		feed, ok, err := c.resolver.Resolve(ctx, ch)
		if err != nil {
			return res, err
		}
		if !ok {
			res.ChannelsSkipped++
			continue
		}

		recent, err := c.reader.ReadRecent(ctx, feed, c.opts.MaxPerChannel)
		if err != nil {
			return res, err
		}
		kept := 0
		for _, it := range recent {
			if !it.PublishedAt.IsZero() && it.PublishedAt.Before(publishedAfter) {
				continue
			}
			if _, dup := seen[it.VideoID]; dup {
				continue
			}
			seen[it.VideoID] = struct{}{}
			if it.ChannelID == "" {
				it.ChannelID = ch.ID
			}
			if it.ChannelTitle == "" {
				it.ChannelTitle = ch.Title
			}
			items = append(items, it)
			kept++
		}
		c.log.Debug().Str("channel_id", ch.ID).Int("read", len(recent)).Int("kept", kept).Msg("read channel feed")
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if c.opts.MaxVideos > 0 && len(items) > c.opts.MaxVideos {
		c.log.Info().Int("found", len(items)).Int("limit", c.opts.MaxVideos).Msg("limiting candidates")
		items = items[:c.opts.MaxVideos]
	}
	res.FeedItems = len(items)

	var lookup []string
	for _, it := range items {
		if known == nil || !known.IsProcessed(it.VideoID) {
			lookup = append(lookup, it.VideoID)
		}
	}
	details, report, err := c.batcher.FetchDetails(ctx, lookup)
	res.Details = report
	if err != nil {
		return res, err
	}

	for _, it := range items {
		if known != nil && known.IsProcessed(it.VideoID) {
			res.Videos = append(res.Videos, youtube.NewVideo(it, youtube.VideoDetails{}))
			continue
		}
		d, ok := details[it.VideoID]
		if !ok {
			continue
		}
		res.Videos = append(res.Videos, youtube.NewVideo(it, d))
	}

	res.QuotaHalted = exhausted(c.gate)
	c.log.Info().
		Int("channels", res.Channels).
		Int("skipped_channels", res.ChannelsSkipped).
		Int("feed_items", res.FeedItems).
		Int("videos", len(res.Videos)).
		Bool("quota_halted", res.QuotaHalted).
		Msg("collected candidates")
	return res, ctx.Err()
}
