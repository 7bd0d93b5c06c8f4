package youtube

import "time"

// LiveBroadcast is the live state reported for a video.
type LiveBroadcast string

const (
	LiveNone     LiveBroadcast = "none"
	LiveActive   LiveBroadcast = "live"
	LiveUpcoming LiveBroadcast = "upcoming"
)

// ParseLiveBroadcast maps the API's liveBroadcastContent value. Unknown
// and empty values are treated as LiveNone.
func ParseLiveBroadcast(s string) LiveBroadcast {
	switch LiveBroadcast(s) {
	case LiveActive:
		return LiveActive
	case LiveUpcoming:
		return LiveUpcoming
	default:
		return LiveNone
	}
}

// Channel is a subscribed channel. UploadsFeedID is resolved lazily, once per run.
type Channel struct {
	ID            string `json:"channel_id"`
	Title         string `json:"title"`
	UploadsFeedID string `json:"uploads_feed_id,omitempty"`
}

// FeedItem is one entry of a channel's uploads feed.
type FeedItem struct {
	VideoID      string
	Title        string
	Description  string
	ChannelID    string
	ChannelTitle string
	// PublishedAt is zero when the platform returned an unparsable timestamp.
	PublishedAt time.Time
}

// VideoDetails holds the fields only available from a details lookup.
type VideoDetails struct {
	DurationSeconds int
	LiveBroadcast   LiveBroadcast
}

// Video is a sync candidate, built from a feed item and its details.
type Video struct {
	ID              string        `json:"video_id"`
	Title           string        `json:"title"`
	ChannelID       string        `json:"channel_id"`
	ChannelTitle    string        `json:"channel_title"`
	PublishedAt     time.Time     `json:"published_at"`
	DurationSeconds int           `json:"duration_seconds"`
	LiveBroadcast   LiveBroadcast `json:"live_broadcast"`
	Description     string        `json:"description,omitempty"`
}

// NewVideo combines a feed item with its looked-up details.
func NewVideo(item FeedItem, d VideoDetails) Video {
	live := d.LiveBroadcast
	if live == "" {
		live = LiveNone
	}
	return Video{
		ID:              item.VideoID,
		Title:           item.Title,
		ChannelID:       item.ChannelID,
		ChannelTitle:    item.ChannelTitle,
		PublishedAt:     item.PublishedAt,
		DurationSeconds: max(0, d.DurationSeconds),
		LiveBroadcast:   live,
		Description:     item.Description,
	}
}

// Playlist is a playlist owned by the authenticated user.
type Playlist struct {
	ID        string
	Title     string
	Privacy   string
	ItemCount int
}

// SubscriptionPage is one page of the subscriptions listing.
type SubscriptionPage struct {
	Channels      []Channel
	NextPageToken string
}

// PlaylistPage is one page of the user's playlists.
type PlaylistPage struct {
	Playlists     []Playlist
	NextPageToken string
}

// PlaylistItemsPage is one page of a playlist's video IDs.
type PlaylistItemsPage struct {
	VideoIDs      []string
	NextPageToken string
}
