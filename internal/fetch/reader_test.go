package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

func feedItems(ids ...string) []youtube.FeedItem {
	out := make([]youtube.FeedItem, len(ids))
	for i, id := range ids {
		out[i] = youtube.FeedItem{VideoID: id, Title: "video " + id}
	}
	return out
}

func TestReadRecentLimit(t *testing.T) {
	tests := []struct {
		max  int
		want int
	}{
		{5, 5},
		{50, 50},
		{51, 50},
		{200, 50},
		{0, 50},
		{-1, 50},
	}

	for _, tt := range tests {
		api := &MockPlatform{}
		r := NewFeedReader(api, &MockGate{}, noDelay, zerolog.Nop())
		r.ReadRecent(context.Background(), "UU1", tt.max)
		if len(api.readLimits) != 1 || api.readLimits[0] != tt.want {
			t.Errorf("ReadRecent(max=%d) requested %v, want [%d]", tt.max, api.readLimits, tt.want)
		}
	}
}

func TestReadRecentTruncates(t *testing.T) {
	api := &MockPlatform{items: map[string][]youtube.FeedItem{"UU1": feedItems("a", "b", "c", "d")}}
	r := NewFeedReader(api, &MockGate{}, noDelay, zerolog.Nop())

	got, err := r.ReadRecent(context.Background(), "UU1", 2)
	if err != nil || len(got) != 2 || got[0].VideoID != "a" || got[1].VideoID != "b" {
		t.Errorf("ReadRecent() = %+v, want first two items", got)
	}
}

func TestReadRecentFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		exhausted bool
		wantCalls int
	}{
		{"not found", apiErr("playlistItems.list", youtube.ErrNotFound), false, 1},
		{"transient retried", apiErr("playlistItems.list", youtube.ErrTransient), false, 2},
		{"quota", apiErr("playlistItems.list", youtube.ErrQuotaExhausted), false, 1},
		{"gate closed", nil, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &MockPlatform{
				items:    map[string][]youtube.FeedItem{"UU1": feedItems("a")},
				itemErrs: map[string]error{},
			}
			if tt.err != nil {
				api.itemErrs["UU1"] = tt.err
			}
			r := NewFeedReader(api, &MockGate{exhausted: tt.exhausted}, noDelay, zerolog.Nop())

			got, err := r.ReadRecent(context.Background(), "UU1", 5)
			if err != nil || len(got) != 0 {
				t.Errorf("ReadRecent() = %d items, %v; want 0, nil", len(got), err)
			}
			if api.readCalls["UU1"] != tt.wantCalls {
				t.Errorf("feed reads = %d, want %d", api.readCalls["UU1"], tt.wantCalls)
			}
		})
	}
}

func TestReadRecentAuthFailure(t *testing.T) {
	api := &MockPlatform{itemErrs: map[string]error{"UU1": apiErr("playlistItems.list", youtube.ErrUnauthorized)}}
	r := NewFeedReader(api, &MockGate{}, noDelay, zerolog.Nop())

	if _, err := r.ReadRecent(context.Background(), "UU1", 5); !errors.Is(err, youtube.ErrUnauthorized) {
		t.Errorf("ReadRecent() error = %v, want ErrUnauthorized", err)
	}
}
