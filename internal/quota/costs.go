package quota

// Remote method names as reported in the ledger and the call log.
const (
	MethodChannelsList        = "channels.list"
	MethodPlaylistsList       = "playlists.list"
	MethodPlaylistItemsList   = "playlistItems.list"
	MethodSubscriptionsList   = "subscriptions.list"
	MethodVideosList          = "videos.list"
	MethodActivitiesList      = "activities.list"
	MethodPlaylistsInsert     = "playlists.insert"
	MethodPlaylistsUpdate     = "playlists.update"
	MethodPlaylistsDelete     = "playlists.delete"
	MethodPlaylistItemsInsert = "playlistItems.insert"
	MethodPlaylistItemsUpdate = "playlistItems.update"
	MethodPlaylistItemsDelete = "playlistItems.delete"
	MethodSearchList          = "search.list"
)

// DefaultDailyBudget is the platform's default daily quota in units.
const DefaultDailyBudget = 10000

// MaxBatchSize is the largest number of IDs or items returned per call.
const MaxBatchSize = 50

var unitCosts = map[string]int{
	MethodChannelsList:        1,
	MethodPlaylistsList:       1,
	MethodPlaylistItemsList:   1,
	MethodSubscriptionsList:   1,
	MethodVideosList:          1,
	MethodActivitiesList:      1,
	MethodPlaylistsInsert:     50,
	MethodPlaylistsUpdate:     50,
	MethodPlaylistsDelete:     50,
	MethodPlaylistItemsInsert: 50,
	MethodPlaylistItemsUpdate: 50,
	MethodPlaylistItemsDelete: 50,
	MethodSearchList:          100,
}

// Cost returns the unit cost of a single call to method. Unknown methods cost 1.
func Cost(method string) int {
	if c, ok := unitCosts[method]; ok {
		return c
	}
	return 1
}

// Operation names accepted by EstimateCost.
const (
	OpFetchVideos        = "fetch_videos"
	OpAddToPlaylist      = "add_to_playlist"
	OpFetchSubscriptions = "fetch_subscriptions"
	OpFetchPlaylistItems = "fetch_playlist_items"
)

// EstimateCost returns the expected unit cost of a planned operation over n items.
// Unknown operations are estimated at one unit per item.
func EstimateCost(op string, n int) int {
	if n < 0 {
		n = 0
	}
	switch op {
	case OpFetchVideos:
		return batches(n) * Cost(MethodVideosList)
	case OpAddToPlaylist:
		return n * Cost(MethodPlaylistItemsInsert)
	case OpFetchSubscriptions:
		if n == 0 {
			return Cost(MethodSubscriptionsList)
		}
		return batches(n) * Cost(MethodSubscriptionsList)
	case OpFetchPlaylistItems:
		return batches(n) * Cost(MethodPlaylistItemsList)
	default:
		return n
	}
}

func batches(n int) int {
	return (n + MaxBatchSize - 1) / MaxBatchSize
}
