package quota

import "testing"

func TestCost(t *testing.T) {
	tests := []struct {
		method string
		want   int
	}{
		{MethodSubscriptionsList, 1},
		{MethodPlaylistItemsList, 1},
		{MethodPlaylistsInsert, 50},
		{MethodPlaylistItemsInsert, 50},
		{MethodSearchList, 100},
		{"unknown.method", 1},
	}
	for _, tt := range tests {
		if got := Cost(tt.method); got != tt.want {
			t.Errorf("Cost(%q) = %d, want %d", tt.method, got, tt.want)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		op   string
		n    int
		want int
	}{
		{OpFetchVideos, 0, 0},
		{OpFetchVideos, 50, 1},
		{OpFetchVideos, 51, 2},
		{OpAddToPlaylist, 3, 150},
		{OpFetchSubscriptions, 0, 1},
		{OpFetchSubscriptions, 120, 3},
		{OpFetchPlaylistItems, 101, 3},
		{"something_else", 7, 7},
		{OpFetchVideos, -5, 0},
	}
	for _, tt := range tests {
		if got := EstimateCost(tt.op, tt.n); got != tt.want {
			t.Errorf("EstimateCost(%q, %d) = %d, want %d", tt.op, tt.n, got, tt.want)
		}
	}
}
