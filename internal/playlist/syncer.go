package playlist

import (
	"context"

	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/storage"
	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

// State is the terminal state of a sync attempt.
type State int

const (
	StateCompleted State = iota
	StatePartiallyCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StatePartiallyCompleted:
		return "partially_completed"
	default:
		return "aborted"
	}
}

// Item is the outcome for one candidate.
type Item struct {
	Video          youtube.Video `json:"video"`
	Added          bool          `json:"added"`
	AlreadyPresent bool          `json:"already_present,omitempty"`
	// Error is set for failed inserts.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of Sync.
type Result struct {
	State          State  `json:"-"`
	PlaylistID     string `json:"playlist_id"`
	DryRun         bool   `json:"dry_run"`
	Items          []Item `json:"items"`
	Attempted      int    `json:"attempted"`
	Inserted       int    `json:"inserted"`
	AlreadyPresent int    `json:"already_present"`
	Failed         int    `json:"failed"`
	NotAttempted   int    `json:"not_attempted"`
	QuotaHalted    bool   `json:"quota_halted"`
	AuthFailed     bool   `json:"auth_failed"`
}

// Added counts items reported as added.
func (r Result) Added() int {
	n := 0
	for _, it := range r.Items {
		if it.Added {
			n++
		}
	}
	return n
}

// Syncer inserts candidates that the playlist does not already hold.
type Syncer struct {
	api        API
	membership Membership
	processed  ProcessedMarker
	gate       QuotaGate
	retry      retry.Config
	observer   Observer
	log        zerolog.Logger
}

// SyncerOptions configures a Syncer.
type SyncerOptions struct {
	Retry    retry.Config
	Observer Observer
	Logger   zerolog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(api API, membership Membership, processed ProcessedMarker, gate QuotaGate, opts SyncerOptions) *Syncer {
	return &Syncer{
		api:        api,
		membership: membership,
		processed:  processed,
		gate:       gate,
		retry:      opts.Retry,
		observer:   opts.Observer,
		log:        opts.Logger.With().Str("component", "playlist_syncer").Logger(),
	}
}

// Sync adds candidates to playlistID in order. Videos already in the
// playlist count as added without a remote call. A duplicate insert
// conflict counts as added. Quota exhaustion stops the loop and the rest
// are reported as not added. In dry run nothing is mutated and every
// candidate is reported as added.
func (s *Syncer) Sync(ctx context.Context, playlistID string, candidates []youtube.Video, dryRun bool) Result {
	res := Result{PlaylistID: playlistID, DryRun: dryRun, Items: make([]Item, 0, len(candidates))}
	log := s.log.With().Str("playlist_id", playlistID).Logger()
	if len(candidates) == 0 {
		log.Info().Msg("no candidates to sync")
		return res
	}

	existing := storage.VideoSet{}
	if playlistID != "" {
		existing = s.membership.GetExisting(ctx, playlistID)
	}

	if dryRun {
		for _, v := range candidates {
			present := existing.Has(v.ID)
			if present {
				res.AlreadyPresent++
			}
			res.Items = append(res.Items, Item{Video: v, Added: true, AlreadyPresent: present})
			log.Info().Str("video_id", v.ID).Str("title", v.Title).Bool("already_present", present).Msg("dry run, would add")
		}
		return res
	}

	var inserted []string
	for _, v := range candidates {
		item := Item{Video: v}
		vlog := log.With().Str("video_id", v.ID).Logger()

		switch {
		case existing.Has(v.ID):
			item.Added, item.AlreadyPresent = true, true
			res.AlreadyPresent++
			s.outcome(OutcomeAlreadyPresent)
			vlog.Debug().Msg("already in playlist")
		case res.QuotaHalted || res.AuthFailed || exhausted(s.gate) || ctx.Err() != nil:
			res.QuotaHalted = res.QuotaHalted || exhausted(s.gate)
			res.NotAttempted++
			s.outcome(OutcomeNotAttempted)
		default:
			res.Attempted++
			err := retry.Do(ctx, s.retry, youtube.IsTransient, func(ctx context.Context) error {
				return s.api.InsertPlaylistItem(ctx, playlistID, v.ID)
			})
			switch youtube.KindOf(err) {
			case youtube.KindOK:
				item.Added = true
				s.outcome(OutcomeAdded)
				vlog.Info().Str("title", v.Title).Msg("added to playlist")
			case youtube.KindConflict:
				item.Added = true
				s.outcome(OutcomeConflict)
				vlog.Info().Msg("insert conflict, video already in playlist")
			case youtube.KindQuotaExhausted:
				if s.gate != nil {
					s.gate.MarkExhausted()
				}
				res.QuotaHalted = true
				res.NotAttempted++
				item.Error = err.Error()
				s.outcome(OutcomeNotAttempted)
				vlog.Warn().Msg("quota exhausted, halting inserts")
			case youtube.KindAuth:
				res.Failed++
				res.AuthFailed = true
				item.Error = err.Error()
				s.outcome(OutcomeFailed)
				vlog.Error().Err(err).Msg("authorization failed, halting inserts")
			default:
				res.Failed++
				item.Error = err.Error()
				s.outcome(OutcomeFailed)
				vlog.Error().Err(err).Msg("insert failed")
			}
			if item.Added {
				res.Inserted++
				inserted = append(inserted, v.ID)
				existing[v.ID] = struct{}{}
			}
		}

		if item.Added {
			if err := s.processed.MarkProcessed(v.ID, v.Title, v.ChannelTitle); err != nil {
				vlog.Warn().Err(err).Msg("persist processed video")
			}
		}
		res.Items = append(res.Items, item)
	}

	if len(inserted) > 0 {
		if err := s.membership.Record(ctx, playlistID, inserted...); err != nil {
			log.Warn().Err(err).Msg("update playlist snapshot")
		}
	}

	switch {
	case res.AuthFailed:
		res.State = StateAborted
	case res.Failed > 0 || res.NotAttempted > 0:
		res.State = StatePartiallyCompleted
	}
	log.Info().
		Int("candidates", len(candidates)).
		Int("inserted", res.Inserted).
		Int("already_present", res.AlreadyPresent).
		Int("failed", res.Failed).
		Int("not_attempted", res.NotAttempted).
		Stringer("state", res.State).
		Msg("playlist sync finished")
	return res
}

func (s *Syncer) outcome(o string) {
	if s.observer != nil {
		s.observer.InsertOutcome(o)
	}
}
