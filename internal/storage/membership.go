package storage

import (
	"context"
	"errors"
	"time"

	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

const (
	// DefaultMembershipTTL is how long a playlist snapshot is trusted.
	DefaultMembershipTTL = 12 * time.Hour

	maxMembershipPages = 100
)

// VideoSet is a set of video IDs.
type VideoSet map[string]struct{}

// Has reports whether id is in the set.
func (s VideoSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// PlaylistItemLister is the remote call used to refresh a snapshot.
type PlaylistItemLister interface {
	ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (youtube.PlaylistItemsPage, error)
}

// QuotaGate is the part of the quota ledger the caches consult.
type QuotaGate interface {
	IsExhausted() bool
	MarkExhausted()
}

// CacheObserver is notified of snapshot hits and misses.
type CacheObserver interface {
	CacheLookup(cache string, hit bool)
}

// MembershipOptions configures a MembershipCache.
type MembershipOptions struct {
	// TTL is the snapshot lifetime. Zero means DefaultMembershipTTL.
	TTL time.Duration
	// Retry applies to each page read. The zero value makes one attempt.
	Retry    retry.Config
	Logger   zerolog.Logger
	Now      func() time.Time
	Observer CacheObserver
}

// MembershipCache answers "what is already in this playlist" from a
// snapshot, refetching it in full once it is older than the TTL.
type MembershipCache struct {
	store    SnapshotStore
	lister   PlaylistItemLister
	gate     QuotaGate
	ttl      time.Duration
	retry    retry.Config
	now      func() time.Time
	log      zerolog.Logger
	observer CacheObserver
}

// NewMembershipCache builds a cache over store that refreshes through lister.
func NewMembershipCache(store SnapshotStore, lister PlaylistItemLister, gate QuotaGate, opts MembershipOptions) *MembershipCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultMembershipTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MembershipCache{
		store:    store,
		lister:   lister,
		gate:     gate,
		ttl:      opts.TTL,
		retry:    opts.Retry,
		now:      opts.Now,
		log:      opts.Logger.With().Str("component", "membership_cache").Logger(),
		observer: opts.Observer,
	}
}

func (c *MembershipCache) fresh(snap *Snapshot) bool {
	return c.now().Sub(snap.FetchedTime()) < c.ttl
}

// GetExisting returns the video IDs in playlistID. A fresh snapshot is
// returned without remote calls. When a refetch fails for any reason the
// result is empty and nothing is persisted.
func (c *MembershipCache) GetExisting(ctx context.Context, playlistID string) VideoSet {
	log := c.log.With().Str("playlist_id", playlistID).Logger()

	snap, err := c.store.Load(ctx, playlistID)
	switch {
	case err == nil && c.fresh(snap):
		c.lookup(true)
		log.Debug().Int("videos", len(snap.VideoIDs)).Msg("using cached playlist snapshot")
		return toSet(snap.VideoIDs)
	case err == nil:
		log.Debug().Time("fetched_at", snap.FetchedTime()).Msg("playlist snapshot expired")
	case !errors.Is(err, ErrNotFound):
		log.Warn().Err(err).Msg("playlist snapshot unreadable, refetching")
	}
	c.lookup(false)

	ids, ok := c.fetchAll(ctx, playlistID, log)
	if !ok {
		return VideoSet{}
	}

	next := &Snapshot{
		Version:    snapshotSchemaVersion,
		PlaylistID: playlistID,
		VideoIDs:   ids,
		FetchedAt:  epochSeconds(c.now()),
	}
	if err := c.store.Save(ctx, next); err != nil {
		log.Warn().Err(err).Msg("persist playlist snapshot")
	}
	return toSet(ids)
}

func (c *MembershipCache) fetchAll(ctx context.Context, playlistID string, log zerolog.Logger) ([]string, bool) {
	if c.gate != nil && c.gate.IsExhausted() {
		log.Warn().Msg("quota exhausted, skipping playlist membership fetch")
		return nil, false
	}

	var ids []string
	seen := make(map[string]struct{})
	token := ""
	for page := 0; page < maxMembershipPages; page++ {
		var resp youtube.PlaylistItemsPage
		err := retry.Do(ctx, c.retry, youtube.IsTransient, func(ctx context.Context) error {
			var err error
			resp, err = c.lister.ListPlaylistItems(ctx, playlistID, token)
			return err
		})
		if err != nil {
			if youtube.KindOf(err) == youtube.KindQuotaExhausted && c.gate != nil {
				c.gate.MarkExhausted()
			}
			log.Warn().Err(err).Int("page", page).Msg("fetch playlist items failed, assuming empty playlist")
			return nil, false
		}
		for _, id := range resp.VideoIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		token = resp.NextPageToken
		if token == "" {
			log.Debug().Int("videos", len(ids)).Int("pages", page+1).Msg("fetched playlist membership")
			return ids, true
		}
	}
	log.Warn().Int("videos", len(ids)).Msg("playlist page cap reached, snapshot is truncated")
	return ids, true
}

// Record adds ids to a fresh snapshot, keeping its fetch time. Stale or
// missing snapshots are left alone.
func (c *MembershipCache) Record(ctx context.Context, playlistID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	snap, err := c.store.Load(ctx, playlistID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if !c.fresh(snap) {
		return nil
	}

	have := toSet(snap.VideoIDs)
	for _, id := range ids {
		if !have.Has(id) {
			have[id] = struct{}{}
			snap.VideoIDs = append(snap.VideoIDs, id)
		}
	}
	snap.Version = snapshotSchemaVersion
	return c.store.Save(ctx, snap)
}

// Invalidate drops the snapshot for playlistID.
func (c *MembershipCache) Invalidate(ctx context.Context, playlistID string) error {
	return c.store.Delete(ctx, playlistID)
}

func (c *MembershipCache) lookup(hit bool) {
	if c.observer != nil {
		c.observer.CacheLookup("playlist_membership", hit)
	}
}

func toSet(ids []string) VideoSet {
	s := make(VideoSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
