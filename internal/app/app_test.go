package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keif/playlist-from-subs/internal/filter"
	"github.com/keif/playlist-from-subs/internal/metrics"
	"github.com/keif/playlist-from-subs/internal/playlist"
	"github.com/keif/playlist-from-subs/internal/quota"
	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/storage"
	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

var testNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

// MockPlatform is an in-memory platform that bills the ledger like the
// real adapter does.
type MockPlatform struct {
	meter     youtube.Meter
	channels  []youtube.Channel
	items     map[string][]youtube.FeedItem
	details   map[string]youtube.VideoDetails
	playlists map[string][]string
	getErr    error
	insertErr map[string]error

	inserts []string
}

func (m *MockPlatform) ListSubscriptions(ctx context.Context, pageToken string) (youtube.SubscriptionPage, error) {
	m.meter.RecordCall(quota.MethodSubscriptionsList, len(m.channels))
	return youtube.SubscriptionPage{Channels: m.channels}, nil
}

func (m *MockPlatform) UploadsFeed(ctx context.Context, channelID string) (string, error) {
	m.meter.RecordCall(quota.MethodChannelsList, 1)
	return "UU" + channelID[2:], nil
}

func (m *MockPlatform) ListFeedItems(ctx context.Context, feedID string, maxItems int) ([]youtube.FeedItem, error) {
	m.meter.RecordCall(quota.MethodPlaylistItemsList, len(m.items[feedID]))
	return m.items[feedID], nil
}

func (m *MockPlatform) VideoDetails(ctx context.Context, ids []string) (map[string]youtube.VideoDetails, error) {
	m.meter.RecordCall(quota.MethodVideosList, len(ids))
	out := make(map[string]youtube.VideoDetails)
	for _, id := range ids {
		if d, ok := m.details[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (m *MockPlatform) GetPlaylist(ctx context.Context, id string) (youtube.Playlist, error) {
	if m.getErr != nil {
		if youtube.KindOf(m.getErr) == youtube.KindQuotaExhausted {
			m.meter.MarkExhausted()
		}
		return youtube.Playlist{}, m.getErr
	}
	m.meter.RecordCall(quota.MethodPlaylistsList, 1)
	if _, ok := m.playlists[id]; !ok {
		return youtube.Playlist{}, &youtube.APIError{Method: quota.MethodPlaylistsList, Err: youtube.ErrNotFound}
	}
	return youtube.Playlist{ID: id, Title: "Target"}, nil
}

func (m *MockPlatform) ListMyPlaylists(ctx context.Context, pageToken string) (youtube.PlaylistPage, error) {
	m.meter.RecordCall(quota.MethodPlaylistsList, 0)
	return youtube.PlaylistPage{}, nil
}

func (m *MockPlatform) CreatePlaylist(ctx context.Context, title, description, privacy string) (youtube.Playlist, error) {
	m.meter.RecordCall(quota.MethodPlaylistsInsert, 1)
	m.playlists["PLnew"] = nil
	return youtube.Playlist{ID: "PLnew", Title: title, Privacy: privacy}, nil
}

func (m *MockPlatform) ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (youtube.PlaylistItemsPage, error) {
	m.meter.RecordCall(quota.MethodPlaylistItemsList, len(m.playlists[playlistID]))
	return youtube.PlaylistItemsPage{VideoIDs: m.playlists[playlistID]}, nil
}

func (m *MockPlatform) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	m.inserts = append(m.inserts, videoID)
	if err := m.insertErr[videoID]; err != nil {
		if youtube.KindOf(err) == youtube.KindQuotaExhausted {
			m.meter.MarkExhausted()
		}
		return err
	}
	m.meter.RecordCall(quota.MethodPlaylistItemsInsert, 1)
	m.playlists[playlistID] = append(m.playlists[playlistID], videoID)
	return nil
}

func feedItem(id, channel string) youtube.FeedItem {
	return youtube.FeedItem{VideoID: id, Title: "video " + id, ChannelID: channel, ChannelTitle: channel, PublishedAt: testNow.Add(-time.Hour)}
}

func newPlatform() *MockPlatform {
	return &MockPlatform{
		channels: []youtube.Channel{{ID: "UC1", Title: "One"}, {ID: "UC2", Title: "Two"}},
		items: map[string][]youtube.FeedItem{
			"UU1": {feedItem("A", "UC1"), feedItem("B", "UC1")},
			"UU2": {feedItem("C", "UC2")},
		},
		details: map[string]youtube.VideoDetails{
			"A": {DurationSeconds: 600, LiveBroadcast: youtube.LiveNone},
			"B": {DurationSeconds: 30, LiveBroadcast: youtube.LiveNone},
			"C": {DurationSeconds: 300, LiveBroadcast: youtube.LiveNone},
		},
		playlists: map[string][]string{"PL1": {"C"}},
		insertErr: map[string]error{},
	}
}

type harness struct {
	dir       string
	platform  *MockPlatform
	ledger    *quota.Ledger
	processed *storage.ProcessedCache
	recorder  *metrics.Recorder
	service   *Service
}

func newHarness(t *testing.T, dir string, platform *MockPlatform) *harness {
	t.Helper()
	log := zerolog.Nop()
	rec := metrics.NewRecorder()
	ledger := quota.NewLedger(quota.Options{Observer: rec, Logger: log, Now: clock})
	platform.meter = ledger
	processed := storage.OpenProcessedCache(filepath.Join(dir, storage.ProcessedFileName), storage.ProcessedOptions{Logger: log, Now: clock})
	membership := storage.NewMembershipCache(storage.NewFileSnapshotStore(dir), platform, ledger, storage.MembershipOptions{
		Retry:    retry.Fixed(1, 0),
		Logger:   log,
		Now:      clock,
		Observer: rec,
	})
	svc := New(Deps{
		Platform:   platform,
		Ledger:     ledger,
		Processed:  processed,
		Membership: membership,
		Recorder:   rec,
	}, Options{
		MaxPerChannel: 5,
		MaxVideos:     50,
		Retry:         retry.Fixed(1, 0),
		CallLogPath:   filepath.Join(dir, "api_call_log.json"),
		MetricsPath:   filepath.Join(dir, "playlist_sync.prom"),
		Logger:        log,
		Now:           clock,
	})
	return &harness{dir: dir, platform: platform, ledger: ledger, processed: processed, recorder: rec, service: svc}
}

func defaultFilter(t *testing.T) *filter.Config {
	t.Helper()
	fc, err := filter.NewConfig(filter.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return fc
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir, newPlatform())

	rep, err := h.service.Run(context.Background(), RunRequest{
		Target: playlist.TargetRequest{ID: "PL1"},
		Filter: defaultFilter(t),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.platform.inserts) != 1 || h.platform.inserts[0] != "A" {
		t.Errorf("inserts = %v, want [A]", h.platform.inserts)
	}
	if rep.Result.State != playlist.StateCompleted || rep.Failed() {
		t.Errorf("State = %v, want completed", rep.Result.State)
	}
	if rep.Result.Added() != 2 {
		t.Errorf("added = %d, want 2 (A inserted, C present)", rep.Result.Added())
	}
	if rep.Filter.Rejected[filter.ReasonTooShort] != 1 || rep.Filter.Passed != 2 {
		t.Errorf("filter stats = %+v", rep.Filter)
	}
	if got := h.service.FilteringStats()["too_short"]; got != 1 {
		t.Errorf("FilteringStats()[too_short] = %d, want 1", got)
	}
	if !h.processed.IsProcessed("A") || !h.processed.IsProcessed("C") || h.processed.IsProcessed("B") {
		t.Error("processed cache should hold A and C only")
	}
	if stats := h.service.CacheStats(); stats.TotalProcessed != 2 {
		t.Errorf("CacheStats() = %+v, want 2 processed", stats)
	}

	// subscriptions 1 + channels 2 + feeds 2 + videos 1 + verify 1 + membership 1 + insert 50
	if got := rep.Quota.TotalUsed; got != 58 || got != h.ledger.TotalUsed() {
		t.Errorf("quota used = %d, want 58 (ledger %d)", got, h.ledger.TotalUsed())
	}
	if rep.FinishedAt.IsZero() {
		t.Error("FinishedAt should be set on the returned report")
	}

	data, err := os.ReadFile(filepath.Join(dir, "api_call_log.json"))
	if err != nil {
		t.Fatalf("call log not written: %v", err)
	}
	var calls map[string]int
	if err := json.Unmarshal(data, &calls); err != nil {
		t.Fatal(err)
	}
	if calls[quota.MethodChannelsList] != 2 || calls[quota.MethodPlaylistItemsInsert] != 1 {
		t.Errorf("call log = %v", calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "playlist_sync.prom")); err != nil {
		t.Errorf("metrics textfile not written: %v", err)
	}
}

func TestSecondRunSkipsProcessed(t *testing.T) {
	dir := t.TempDir()
	platform := newPlatform()
	first := newHarness(t, dir, platform)
	if _, err := first.service.Run(context.Background(), RunRequest{Target: playlist.TargetRequest{ID: "PL1"}, Filter: defaultFilter(t)}); err != nil {
		t.Fatal(err)
	}
	platform.inserts = nil

	second := newHarness(t, dir, platform)
	rep, err := second.service.Run(context.Background(), RunRequest{Target: playlist.TargetRequest{ID: "PL1"}, Filter: defaultFilter(t)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(platform.inserts) != 0 {
		t.Errorf("inserts = %v, want none", platform.inserts)
	}
	if rep.Filter.Rejected[filter.ReasonAlreadyProcessed] != 2 {
		t.Errorf("already processed = %d, want 2", rep.Filter.Rejected[filter.ReasonAlreadyProcessed])
	}
	// Only B needs a detail lookup, and the playlist snapshot is still fresh.
	if calls := second.ledger.CallLog(); calls[quota.MethodVideosList] != 1 || calls[quota.MethodPlaylistItemsList] != 2 {
		t.Errorf("call log = %v", calls)
	}
}

func TestRunQuotaDuringInserts(t *testing.T) {
	platform := newPlatform()
	platform.playlists["PL1"] = nil
	platform.insertErr["A"] = &youtube.APIError{Method: quota.MethodPlaylistItemsInsert, Err: youtube.ErrQuotaExhausted}
	h := newHarness(t, t.TempDir(), platform)

	rep, err := h.service.Run(context.Background(), RunRequest{Target: playlist.TargetRequest{ID: "PL1"}, Filter: defaultFilter(t)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Result.State != playlist.StatePartiallyCompleted || !rep.Failed() {
		t.Errorf("State = %v, want partially completed", rep.Result.State)
	}
	if len(platform.inserts) != 1 {
		t.Errorf("inserts = %v, want only the first attempt", platform.inserts)
	}
	if !rep.Quota.Exhausted {
		t.Error("quota summary should show exhaustion")
	}
}

func TestRunAuthFailureDuringInserts(t *testing.T) {
	platform := newPlatform()
	platform.playlists["PL1"] = nil
	platform.insertErr["A"] = &youtube.APIError{Method: quota.MethodPlaylistItemsInsert, Err: youtube.ErrUnauthorized}
	h := newHarness(t, t.TempDir(), platform)

	rep, err := h.service.Run(context.Background(), RunRequest{Target: playlist.TargetRequest{ID: "PL1"}, Filter: defaultFilter(t)})
	if !errors.Is(err, youtube.ErrUnauthorized) {
		t.Fatalf("Run() error = %v, want ErrUnauthorized", err)
	}
	if rep.Result.State != playlist.StateAborted {
		t.Errorf("State = %v, want aborted", rep.Result.State)
	}
	if len(platform.inserts) != 1 {
		t.Errorf("inserts = %v, want only the first attempt", platform.inserts)
	}
}

func TestRunAbortsOnQuotaDuringTarget(t *testing.T) {
	dir := t.TempDir()
	platform := newPlatform()
	platform.getErr = &youtube.APIError{Method: quota.MethodPlaylistsList, Err: youtube.ErrQuotaExhausted}
	h := newHarness(t, dir, platform)

	rep, err := h.service.Run(context.Background(), RunRequest{Target: playlist.TargetRequest{ID: "PL1"}, Filter: defaultFilter(t)})
	if !errors.Is(err, playlist.ErrAborted) {
		t.Fatalf("Run() error = %v, want ErrAborted", err)
	}
	if rep.Result.State != playlist.StateAborted {
		t.Errorf("State = %v, want aborted", rep.Result.State)
	}
	if len(platform.inserts) != 0 || len(rep.Result.Items) != 0 {
		t.Error("no videos should be processed")
	}
	if _, err := os.Stat(filepath.Join(dir, "api_call_log.json")); err != nil {
		t.Errorf("call log should be written on failure: %v", err)
	}
}

func TestRunDryRun(t *testing.T) {
	platform := newPlatform()
	h := newHarness(t, t.TempDir(), platform)

	rep, err := h.service.Run(context.Background(), RunRequest{
		Target: playlist.TargetRequest{Title: "Fresh"},
		Filter: defaultFilter(t),
		DryRun: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !rep.Playlist.Planned || rep.Playlist.Created {
		t.Error("target should only be planned in dry run")
	}
	if _, ok := platform.playlists["PLnew"]; ok {
		t.Error("dry run must not create a playlist")
	}
	if calls := h.ledger.CallLog(); calls[quota.MethodPlaylistsInsert] != 0 {
		t.Errorf("call log = %v, want no playlists.insert", calls)
	}
	if len(platform.inserts) != 0 || h.processed.Len() != 0 {
		t.Error("dry run must not mutate")
	}
	if rep.Result.Added() != 2 {
		t.Errorf("added = %d, want 2", rep.Result.Added())
	}
}

func TestRunRequiresFilter(t *testing.T) {
	h := newHarness(t, t.TempDir(), newPlatform())
	if _, err := h.service.Run(context.Background(), RunRequest{}); err == nil {
		t.Error("Run() without filter should fail")
	}
}
