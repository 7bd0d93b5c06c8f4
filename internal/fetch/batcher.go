package fetch

import (
	"context"

	"github.com/keif/playlist-from-subs/internal/quota"
	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

// DetailLookup fetches details for up to 50 videos in one call.
type DetailLookup interface {
	VideoDetails(ctx context.Context, ids []string) (map[string]youtube.VideoDetails, error)
}

// BatchReport summarizes one FetchDetails call.
type BatchReport struct {
	Requested  int `json:"requested"`
	Unique     int `json:"unique"`
	Batches    int `json:"batches"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	// Skipped counts batches never sent because quota ran out.
	Skipped int `json:"skipped"`
	Missing int `json:"missing"`
	// QuotaSaved is the unit difference against one call per video.
	QuotaSaved int `json:"quota_saved"`
}

// Batcher deduplicates video IDs and looks them up in batches of 50.
type Batcher struct {
	api   DetailLookup
	gate  QuotaGate
	retry retry.Config
	log   zerolog.Logger
}

// NewBatcher creates a Batcher. cfg governs the per-batch retry.
func NewBatcher(api DetailLookup, gate QuotaGate, cfg retry.Config, logger zerolog.Logger) *Batcher {
	return &Batcher{api: api, gate: gate, retry: cfg, log: logger.With().Str("component", "detail_batcher").Logger()}
}

// FetchDetails returns details for every ID the platform answered for.
// A batch that still fails after its retry is dropped and the rest are
// attempted. Quota exhaustion stops dispatch and returns what was collected.
// An authorization failure stops dispatch and is returned.
func (b *Batcher) FetchDetails(ctx context.Context, ids []string) (map[string]youtube.VideoDetails, BatchReport, error) {
	unique := Dedup(ids)
	batches := Chunk(unique, quota.MaxBatchSize)
	report := BatchReport{Requested: len(ids), Unique: len(unique), Batches: len(batches)}
	out := make(map[string]youtube.VideoDetails, len(unique))

	for i, batch := range batches {
		if exhausted(b.gate) || ctx.Err() != nil {
			report.Skipped = len(batches) - i
			b.log.Warn().Int("skipped_batches", report.Skipped).Msg("stopping detail lookups")
			break
		}

		var got map[string]youtube.VideoDetails
		err := call(ctx, b.retry, b.gate, func(ctx context.Context) error {
			var err error
			got, err = b.api.VideoDetails(ctx, batch)
			return err
		})
		if err != nil {
			report.Failed++
			if aerr := authFailure("fetch video details", err); aerr != nil {
				report.Skipped = len(batches) - i - 1
				return out, report, aerr
			}
			kind := youtube.KindOf(err)
			b.log.Warn().Err(err).Int("batch", i+1).Int("size", len(batch)).Stringer("kind", kind).Msg("detail batch failed")
			if kind == youtube.KindQuotaExhausted {
				report.Skipped = len(batches) - i - 1
				break
			}
			continue
		}

		report.Successful++
		for _, id := range batch {
			d, ok := got[id]
			if !ok {
				report.Missing++
				b.log.Debug().Str("video_id", id).Msg("no details returned, video may be private or deleted")
				continue
			}
			out[id] = d
		}
	}

	report.QuotaSaved = report.Unique - report.Successful
	b.log.Info().
		Int("unique", report.Unique).
		Int("batches", report.Batches).
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Int("quota_saved", report.QuotaSaved).
		Msg("fetched video details")
	return out, report, nil
}

// Dedup removes duplicate IDs, keeping first-seen order.
func Dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = quota.MaxBatchSize
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}
