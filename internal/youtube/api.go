package youtube

import (
	"context"
	"fmt"
	"time"

	"github.com/keif/playlist-from-subs/internal/quota"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// APIClient implements Platform using the YouTube Data API v3.
// Answered calls (including not-found and conflict responses) are reported
// to the Meter at their table cost. Quota failures mark the Meter exhausted.
type APIClient struct {
	service *youtube.Service
	meter   Meter
	log     zerolog.Logger
}

var _ Platform = (*APIClient)(nil)

// NewAPIClient creates a client. Authentication is supplied through opts,
// typically option.WithTokenSource.
func NewAPIClient(ctx context.Context, meter Meter, logger zerolog.Logger, opts ...option.ClientOption) (*APIClient, error) {
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &APIClient{
		service: service,
		meter:   meter,
		log:     logger.With().Str("component", "youtube").Logger(),
	}, nil
}

// settle classifies err and reports the call to the meter.
func (a *APIClient) settle(method string, items int, err error) error {
	err = Classify(method, err)
	kind := KindOf(err)

	if a.meter != nil {
		switch kind {
		case KindOK, KindNotFound, KindConflict:
			a.meter.RecordCall(method, items)
		case KindQuotaExhausted:
			a.meter.MarkExhausted()
		}
	}
	if err != nil {
		a.log.Debug().Err(err).Str("method", method).Stringer("kind", kind).Msg("api call failed")
	}
	return err
}

// ListSubscriptions implements Platform.
func (a *APIClient) ListSubscriptions(ctx context.Context, pageToken string) (SubscriptionPage, error) {
	call := a.service.Subscriptions.List([]string{"snippet"}).
		Mine(true).
		MaxResults(quota.MaxBatchSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return SubscriptionPage{}, a.settle(quota.MethodSubscriptionsList, 0, err)
	}

	page := SubscriptionPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.Snippet == nil || item.Snippet.ResourceId == nil || item.Snippet.ResourceId.ChannelId == "" {
			continue
		}
		page.Channels = append(page.Channels, Channel{
			ID:    item.Snippet.ResourceId.ChannelId,
			Title: item.Snippet.Title,
		})
	}
	return page, a.settle(quota.MethodSubscriptionsList, len(page.Channels), nil)
}

// UploadsFeed implements Platform.
func (a *APIClient) UploadsFeed(ctx context.Context, channelID string) (string, error) {
	resp, err := a.service.Channels.List([]string{"contentDetails"}).
		Id(channelID).
		Context(ctx).
		Do()
	if err != nil {
		return "", a.settle(quota.MethodChannelsList, 0, err)
	}

	if len(resp.Items) == 0 {
		return "", a.settle(quota.MethodChannelsList, 0, notFound(quota.MethodChannelsList, "channel "+channelID))
	}
	details := resp.Items[0].ContentDetails
	if details == nil || details.RelatedPlaylists == nil || details.RelatedPlaylists.Uploads == "" {
		return "", a.settle(quota.MethodChannelsList, 1, notFound(quota.MethodChannelsList, "uploads feed of "+channelID))
	}
	return details.RelatedPlaylists.Uploads, a.settle(quota.MethodChannelsList, 1, nil)
}

// ListFeedItems implements Platform.
func (a *APIClient) ListFeedItems(ctx context.Context, feedID string, maxItems int) ([]FeedItem, error) {
	n := min(max(maxItems, 1), quota.MaxBatchSize)
	resp, err := a.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(feedID).
		MaxResults(int64(n)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, a.settle(quota.MethodPlaylistItemsList, 0, err)
	}

	items := make([]FeedItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		var fi FeedItem
		published := ""
		if it.ContentDetails != nil {
			fi.VideoID = it.ContentDetails.VideoId
			published = it.ContentDetails.VideoPublishedAt
		}
		if s := it.Snippet; s != nil {
			fi.Title = s.Title
			fi.Description = s.Description
			fi.ChannelID = firstNonEmpty(s.VideoOwnerChannelId, s.ChannelId)
			fi.ChannelTitle = firstNonEmpty(s.VideoOwnerChannelTitle, s.ChannelTitle)
			if fi.VideoID == "" && s.ResourceId != nil {
				fi.VideoID = s.ResourceId.VideoId
			}
			published = firstNonEmpty(published, s.PublishedAt)
		}
		if fi.VideoID == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, published); err == nil {
			fi.PublishedAt = t
		}
		items = append(items, fi)
	}
	return items, a.settle(quota.MethodPlaylistItemsList, len(items), nil)
}

// VideoDetails implements Platform.
func (a *APIClient) VideoDetails(ctx context.Context, ids []string) (map[string]VideoDetails, error) {
	if len(ids) > quota.MaxBatchSize {
		return nil, fmt.Errorf("youtube: %d ids exceeds batch size %d", len(ids), quota.MaxBatchSize)
	}
	resp, err := a.service.Videos.List([]string{"contentDetails", "snippet"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, a.settle(quota.MethodVideosList, 0, err)
	}

	out := make(map[string]VideoDetails, len(resp.Items))
	for _, v := range resp.Items {
		var d VideoDetails
		if v.ContentDetails != nil {
			d.DurationSeconds = ParseDuration(v.ContentDetails.Duration)
		}
		d.LiveBroadcast = LiveNone
		if v.Snippet != nil {
			d.LiveBroadcast = ParseLiveBroadcast(v.Snippet.LiveBroadcastContent)
		}
		out[v.Id] = d
	}
	return out, a.settle(quota.MethodVideosList, len(ids), nil)
}

// GetPlaylist implements Platform.
func (a *APIClient) GetPlaylist(ctx context.Context, id string) (Playlist, error) {
	resp, err := a.service.Playlists.List([]string{"snippet", "status", "contentDetails"}).
		Id(id).
		Context(ctx).
		Do()
	if err != nil {
		return Playlist{}, a.settle(quota.MethodPlaylistsList, 0, err)
	}
	if len(resp.Items) == 0 {
		return Playlist{}, a.settle(quota.MethodPlaylistsList, 0, notFound(quota.MethodPlaylistsList, "playlist "+id))
	}
	return toPlaylist(resp.Items[0]), a.settle(quota.MethodPlaylistsList, 1, nil)
}

// ListMyPlaylists implements Platform.
func (a *APIClient) ListMyPlaylists(ctx context.Context, pageToken string) (PlaylistPage, error) {
	call := a.service.Playlists.List([]string{"snippet", "status", "contentDetails"}).
		Mine(true).
		MaxResults(quota.MaxBatchSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return PlaylistPage{}, a.settle(quota.MethodPlaylistsList, 0, err)
	}
	page := PlaylistPage{NextPageToken: resp.NextPageToken}
	for _, p := range resp.Items {
		page.Playlists = append(page.Playlists, toPlaylist(p))
	}
	return page, a.settle(quota.MethodPlaylistsList, len(page.Playlists), nil)
}

// CreatePlaylist implements Platform.
func (a *APIClient) CreatePlaylist(ctx context.Context, title, description, privacy string) (Playlist, error) {
	body := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{Title: title, Description: description},
		Status:  &youtube.PlaylistStatus{PrivacyStatus: privacy},
	}
	resp, err := a.service.Playlists.Insert([]string{"snippet", "status"}, body).Context(ctx).Do()
	if err != nil {
		return Playlist{}, a.settle(quota.MethodPlaylistsInsert, 0, err)
	}
	return toPlaylist(resp), a.settle(quota.MethodPlaylistsInsert, 1, nil)
}

// ListPlaylistItems implements Platform.
func (a *APIClient) ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (PlaylistItemsPage, error) {
	call := a.service.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(quota.MaxBatchSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return PlaylistItemsPage{}, a.settle(quota.MethodPlaylistItemsList, 0, err)
	}
	page := PlaylistItemsPage{NextPageToken: resp.NextPageToken}
	for _, it := range resp.Items {
		if it.ContentDetails != nil && it.ContentDetails.VideoId != "" {
			page.VideoIDs = append(page.VideoIDs, it.ContentDetails.VideoId)
		}
	}
	return page, a.settle(quota.MethodPlaylistItemsList, len(page.VideoIDs), nil)
}

// InsertPlaylistItem implements Platform.
func (a *APIClient) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	body := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: videoID},
		},
	}
	_, err := a.service.PlaylistItems.Insert([]string{"snippet"}, body).Context(ctx).Do()
	return a.settle(quota.MethodPlaylistItemsInsert, 1, err)
}

func toPlaylist(p *youtube.Playlist) Playlist {
	out := Playlist{ID: p.Id}
	if p.Snippet != nil {
		out.Title = p.Snippet.Title
	}
	if p.Status != nil {
		out.Privacy = p.Status.PrivacyStatus
	}
	if p.ContentDetails != nil {
		out.ItemCount = int(p.ContentDetails.ItemCount)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
