// Package playlist resolves the destination playlist and adds candidate
// videos to it, skipping what the playlist already holds.
package playlist

import (
	"context"
	"errors"

	"github.com/keif/playlist-from-subs/internal/storage"
	"github.com/keif/playlist-from-subs/internal/youtube"
)

// ErrAborted is returned when quota runs out before a destination is known.
var ErrAborted = errors.New("playlist: sync aborted, quota exhausted")

// DefaultName is used when no playlist ID or name is configured.
const DefaultName = "Auto Playlist from Subscriptions"

// DefaultPrivacy is the privacy status of created playlists.
const DefaultPrivacy = "unlisted"

// Description is set on playlists this tool creates.
const Description = "Automatically generated playlist from subscription videos"

// API is the subset of youtube.Platform used for playlist mutation.
type API interface {
	GetPlaylist(ctx context.Context, id string) (youtube.Playlist, error)
	ListMyPlaylists(ctx context.Context, pageToken string) (youtube.PlaylistPage, error)
	CreatePlaylist(ctx context.Context, title, description, privacy string) (youtube.Playlist, error)
	InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error
}

// Membership answers which videos a playlist already contains.
// *storage.MembershipCache implements it.
type Membership interface {
	GetExisting(ctx context.Context, playlistID string) storage.VideoSet
	Record(ctx context.Context, playlistID string, ids ...string) error
}

// ProcessedMarker records a video as synced. *storage.ProcessedCache implements it.
type ProcessedMarker interface {
	MarkProcessed(videoID, title, channel string) error
}

// QuotaGate is the shared quota sentinel.
type QuotaGate interface {
	IsExhausted() bool
	MarkExhausted()
}

// Observer is told the outcome of each insert attempt.
type Observer interface {
	InsertOutcome(outcome string)
}

// Insert outcomes reported to Observer.
const (
	OutcomeAdded          = "added"
	OutcomeAlreadyPresent = "already_present"
	OutcomeConflict       = "conflict"
	OutcomeFailed         = "failed"
	OutcomeNotAttempted   = "not_attempted"
)

func exhausted(gate QuotaGate) bool {
	return gate != nil && gate.IsExhausted()
}
