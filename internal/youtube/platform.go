// Package youtube is the boundary to the remote video platform.
//
// Platform is the capability interface consumed by the fetch, storage and
// playlist packages. APIClient implements it over the YouTube Data API v3.
// Every error returned across this boundary is classified into one of the
// sentinel errors in errors.go; callers switch on KindOf rather than
// inspecting transport errors.
package youtube

import "context"

// Platform is the set of remote operations the sync core needs.
type Platform interface {
	// ListSubscriptions returns one page (up to 50) of the user's subscriptions.
	ListSubscriptions(ctx context.Context, pageToken string) (SubscriptionPage, error)

	// UploadsFeed returns the uploads feed ID of a channel, or ErrNotFound.
	UploadsFeed(ctx context.Context, channelID string) (string, error)

	// ListFeedItems returns a single page of at most maxItems (capped at 50)
	// recent items of a feed.
	ListFeedItems(ctx context.Context, feedID string, maxItems int) ([]FeedItem, error)

	// VideoDetails looks up at most 50 IDs in one call. IDs the platform
	// does not return are absent from the map.
	VideoDetails(ctx context.Context, ids []string) (map[string]VideoDetails, error)

	// GetPlaylist verifies a playlist exists, returning ErrNotFound otherwise.
	GetPlaylist(ctx context.Context, id string) (Playlist, error)

	// ListMyPlaylists returns one page of the user's own playlists.
	ListMyPlaylists(ctx context.Context, pageToken string) (PlaylistPage, error)

	// CreatePlaylist creates a playlist with the given privacy status.
	CreatePlaylist(ctx context.Context, title, description, privacy string) (Playlist, error)

	// ListPlaylistItems returns one page of video IDs contained in a playlist.
	ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (PlaylistItemsPage, error)

	// InsertPlaylistItem appends a video to a playlist. A duplicate insert
	// may surface as ErrConflict.
	InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error
}

// Meter receives cost notifications for every answered call.
// *quota.Ledger satisfies it.
type Meter interface {
	RecordCall(method string, itemsProcessed int)
	MarkExhausted()
}
