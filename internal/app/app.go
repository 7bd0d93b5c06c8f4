// Package app runs one sync: collect candidates, filter them, and add the
// survivors to the destination playlist, all under one quota ledger.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/keif/playlist-from-subs/internal/fetch"
	"github.com/keif/playlist-from-subs/internal/filter"
	"github.com/keif/playlist-from-subs/internal/metrics"
	"github.com/keif/playlist-from-subs/internal/playlist"
	"github.com/keif/playlist-from-subs/internal/quota"
	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/storage"
	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

// Deps are the collaborators of a Service. Platform must report its call
// costs to Ledger.
type Deps struct {
	Platform   youtube.Platform
	Ledger     *quota.Ledger
	Processed  *storage.ProcessedCache
	Membership *storage.MembershipCache
	Recorder   *metrics.Recorder
}

// Options tunes a Service.
type Options struct {
	MaxPerChannel int
	MaxVideos     int
	FeedInterval  time.Duration
	Retry         retry.Config
	// CallLogPath, if set, receives per-method call counts after each run.
	CallLogPath string
	// MetricsPath, if set, receives a Prometheus textfile after each run.
	MetricsPath string
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Report is everything one run produced.
type Report struct {
	RunID      string           `json:"run_id"`
	Playlist   playlist.Target  `json:"playlist"`
	Collection fetch.Collection `json:"collection"`
	Filter     filter.Stats     `json:"filter"`
	Result     playlist.Result  `json:"result"`
	Quota      quota.Summary    `json:"quota"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Failed reports whether any candidate was not added.
func (r Report) Failed() bool {
	return r.Result.State != playlist.StateCompleted
}

// RunRequest describes one run.
type RunRequest struct {
	Target playlist.TargetRequest
	// PublishedAfter bounds the feed reads. Zero means derive it from Filter.
	PublishedAfter time.Time
	Filter         *filter.Config
	DryRun         bool
}

// Service wires the core components around one ledger.
type Service struct {
	deps      Deps
	opts      Options
	collector *fetch.Collector
	target    *playlist.Resolver
	syncer    *playlist.Syncer
	log       zerolog.Logger

	mu         sync.Mutex
	lastFilter filter.Stats
}

// New builds a Service.
func New(deps Deps, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	api, gate := deps.Platform, deps.Ledger

	collector := fetch.NewCollector(
		fetch.NewEnumerator(api, gate, opts.Retry, log),
		fetch.NewResolver(api, gate, opts.Retry, log),
		fetch.NewFeedReader(api, gate, opts.Retry, log),
		fetch.NewBatcher(api, gate, opts.Retry, log),
		fetch.NewPacer(opts.FeedInterval),
		gate,
		fetch.CollectorOptions{MaxPerChannel: opts.MaxPerChannel, MaxVideos: opts.MaxVideos},
		log,
	)

	var observer playlist.Observer
	if deps.Recorder != nil {
		observer = deps.Recorder
	}

	syncer := playlist.NewSyncer(api, deps.Membership, deps.Processed, gate, playlist.SyncerOptions{
		Retry:    opts.Retry,
		Observer: observer,
		Logger:   log,
	})

	return &Service{
		deps:      deps,
		opts:      opts,
		collector: collector,
		target:    playlist.NewResolver(api, gate, opts.Retry, log),
		syncer:    syncer,
		log:       log.With().Str("component", "app").Str("run_id", deps.Ledger.RunID()).Logger(),
	}
}

// Run resolves the destination and syncs into it. The call log and the
// metrics textfile are written even when the run fails.
func (s *Service) Run(ctx context.Context, req RunRequest) (rep Report, err error) {
	rep = Report{RunID: s.deps.Ledger.RunID(), StartedAt: s.opts.Now()}
	defer s.finish(&rep)

	if req.Filter == nil {
		return rep, errors.New("app: filter config is required")
	}
	s.log.Info().Bool("dry_run", req.DryRun).Str("filter", req.Filter.Summary()).Msg("starting sync")

	// A dry run never creates the destination.
	req.Target.DryRun = req.Target.DryRun || req.DryRun
	target, err := s.target.Resolve(ctx, req.Target)
	if err != nil {
		if errors.Is(err, playlist.ErrAborted) {
			rep.Result.State = playlist.StateAborted
			rep.Result.QuotaHalted = true
		}
		return rep, err
	}
	rep.Playlist = target

	after := req.PublishedAfter
	if after.IsZero() {
		after = req.Filter.PublishedAfter(s.opts.Now())
	}

	sub, err := s.Sync(ctx, target.Playlist.ID, after, req.Filter, req.DryRun)
	rep.Collection, rep.Filter, rep.Result = sub.Collection, sub.Filter, sub.Result
	return rep, err
}

// Sync collects videos published after publishedAfter, filters them with
// fc and adds the survivors to playlistID.
func (s *Service) Sync(ctx context.Context, playlistID string, publishedAfter time.Time, fc *filter.Config, dryRun bool) (Report, error) {
	rep := Report{RunID: s.deps.Ledger.RunID()}
	log := s.log.With().Str("playlist_id", playlistID).Time("published_after", publishedAfter).Logger()

	col, err := s.collector.Collect(ctx, publishedAfter, s.deps.Processed)
	rep.Collection = col
	if err != nil {
		return rep, fmt.Errorf("collect candidates: %w", err)
	}

	pipe := filter.NewPipeline(fc, s.deps.Processed, filter.PipelineOptions{Logger: s.opts.Logger, Now: s.opts.Now})
	candidates := pipe.Filter(col.Videos)
	rep.Filter = pipe.Stats()
	s.mu.Lock()
	s.lastFilter = rep.Filter
	s.mu.Unlock()
	s.deps.Recorder.FilterStats(rep.Filter.Map())

	if len(candidates) == 0 {
		log.Info().Int("fetched", len(col.Videos)).Msg("no videos passed filters")
		rep.Result = playlist.Result{PlaylistID: playlistID, DryRun: dryRun}
		if col.QuotaHalted {
			rep.Result.QuotaHalted = true
		}
		return rep, ctx.Err()
	}

	if dryRun {
		log.Info().
			Int("candidates", len(candidates)).
			Int("estimated_units", quota.EstimateCost(quota.OpAddToPlaylist, len(candidates))).
			Msg("dry run, estimated insert cost")
	}
	rep.Result = s.syncer.Sync(ctx, playlistID, candidates, dryRun)
	if rep.Result.AuthFailed {
		return rep, fmt.Errorf("insert into playlist %s: %w", playlistID, youtube.ErrUnauthorized)
	}
	return rep, ctx.Err()
}

// CacheStats reports on the processed video cache.
func (s *Service) CacheStats() storage.ProcessedStats {
	return s.deps.Processed.Stats()
}

// FilteringStats returns the counters of the last filter pass.
func (s *Service) FilteringStats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFilter.Map()
}

func (s *Service) finish(rep *Report) {
	rep.FinishedAt = s.opts.Now()
	rep.Quota = s.deps.Ledger.Summary()
	s.deps.Ledger.LogSummary()

	if s.opts.CallLogPath != "" {
		if err := WriteCallLog(s.opts.CallLogPath, s.deps.Ledger); err != nil {
			s.log.Warn().Err(err).Str("path", s.opts.CallLogPath).Msg("write api call log")
		}
	}
	s.deps.Recorder.RunFinished(rep.StartedAt, rep.FinishedAt)
	if err := s.deps.Recorder.WriteTextfile(s.opts.MetricsPath); err != nil {
		s.log.Warn().Err(err).Str("path", s.opts.MetricsPath).Msg("write metrics textfile")
	}
}

// WriteCallLog persists the ledger's per-method call counts as JSON.
func WriteCallLog(path string, ledger *quota.Ledger) error {
	return storage.WriteJSON(path, ledger.CallLog())
}
