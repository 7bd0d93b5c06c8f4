package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/keif/playlist-from-subs/internal/app"
	"github.com/keif/playlist-from-subs/internal/playlist"
	"github.com/keif/playlist-from-subs/internal/quota"
	"github.com/keif/playlist-from-subs/internal/youtube"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a much longer title", 10, "a much ..."},
		{"日本語のタイトルです", 8, "日本語のタ..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestPrintReport(t *testing.T) {
	rep := app.Report{
		Playlist: playlist.Target{Playlist: youtube.Playlist{ID: "PL1", Title: "Subs"}},
		Result: playlist.Result{
			Items: []playlist.Item{
				{Video: youtube.Video{ID: "vid1", Title: "First", ChannelTitle: "Chan", DurationSeconds: 125}, Added: true},
				{Video: youtube.Video{ID: "vid2", Title: "Second", DurationSeconds: 60}, Added: true, AlreadyPresent: true},
				{Video: youtube.Video{ID: "vid3", Title: "Third", DurationSeconds: 61}},
			},
			QuotaHalted: true,
		},
		Quota:     quota.Summary{TotalUsed: 58, Budget: 10000, UsagePercent: 0.58},
		StartedAt: time.Now(),
	}

	var out bytes.Buffer
	printReport(&out, rep)
	got := out.String()
	for _, want := range []string{
		"VIDEO ID", "vid1", "2:05", "present", "no",
		"Added 2/3 videos", "Quota used: 58/10000 units", "Quota exhausted",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestPrintReportEmpty(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, app.Report{})
	if !strings.Contains(out.String(), "No new videos") {
		t.Errorf("empty report = %q", out.String())
	}
}

func TestPlaylistLabel(t *testing.T) {
	planned := playlist.Target{Playlist: youtube.Playlist{Title: "New"}, Planned: true}
	if got := playlistLabel(planned); got != `new playlist "New"` {
		t.Errorf("playlistLabel(planned) = %q", got)
	}
}
