package playlist

import (
	"context"
	"errors"

	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/storage"
	"github.com/keif/playlist-from-subs/internal/youtube"
)

// MockAPI is an in-memory playlist backend.
type MockAPI struct {
	playlists  map[string]youtube.Playlist
	pages      []youtube.PlaylistPage
	getErr     error
	listErr    error
	createErr  error
	insertErrs map[string][]error // per video, consumed one per call

	created  []youtube.Playlist
	inserts  []string
	listHits int
}

func (m *MockAPI) GetPlaylist(ctx context.Context, id string) (youtube.Playlist, error) {
	if m.getErr != nil {
		return youtube.Playlist{}, m.getErr
	}
	pl, ok := m.playlists[id]
	if !ok {
		return youtube.Playlist{}, &youtube.APIError{Method: "playlists.list", Err: youtube.ErrNotFound}
	}
	return pl, nil
}

func (m *MockAPI) ListMyPlaylists(ctx context.Context, pageToken string) (youtube.PlaylistPage, error) {
	n := m.listHits
	m.listHits++
	if m.listErr != nil {
		return youtube.PlaylistPage{}, m.listErr
	}
	if n >= len(m.pages) {
		return youtube.PlaylistPage{}, nil
	}
	return m.pages[n], nil
}

func (m *MockAPI) CreatePlaylist(ctx context.Context, title, description, privacy string) (youtube.Playlist, error) {
	if m.createErr != nil {
		return youtube.Playlist{}, m.createErr
	}
	pl := youtube.Playlist{ID: "PLnew", Title: title, Privacy: privacy}
	m.created = append(m.created, pl)
	return pl, nil
}

func (m *MockAPI) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	m.inserts = append(m.inserts, videoID)
	if errs := m.insertErrs[videoID]; len(errs) > 0 {
		err := errs[0]
		m.insertErrs[videoID] = errs[1:]
		return err
	}
	return nil
}

// MockMembership is a fixed playlist snapshot.
type MockMembership struct {
	existing storage.VideoSet
	recorded []string
	gets     int
}

func (m *MockMembership) GetExisting(ctx context.Context, playlistID string) storage.VideoSet {
	m.gets++
	out := storage.VideoSet{}
	for id := range m.existing {
		out[id] = struct{}{}
	}
	return out
}

func (m *MockMembership) Record(ctx context.Context, playlistID string, ids ...string) error {
	m.recorded = append(m.recorded, ids...)
	return nil
}

// MockProcessed records marked IDs.
type MockProcessed struct {
	marked []string
	err    error
}

func (m *MockProcessed) MarkProcessed(videoID, title, channel string) error {
	m.marked = append(m.marked, videoID)
	return m.err
}

type MockGate struct{ exhausted bool }

func (g *MockGate) IsExhausted() bool { return g.exhausted }
func (g *MockGate) MarkExhausted()    { g.exhausted = true }

type outcomeCounter map[string]int

func (c outcomeCounter) InsertOutcome(o string) { c[o]++ }

var noDelay = retry.Fixed(1, 0)

func apiErr(kind error) error {
	return &youtube.APIError{Method: "playlistItems.insert", Err: kind}
}

var errDisk = errors.New("disk full")

func videos(ids ...string) []youtube.Video {
	out := make([]youtube.Video, len(ids))
	for i, id := range ids {
		out[i] = youtube.Video{ID: id, Title: "video " + id, ChannelTitle: "chan"}
	}
	return out
}

func set(ids ...string) storage.VideoSet {
	s := storage.VideoSet{}
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}
