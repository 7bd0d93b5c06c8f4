package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const snapshotSchemaVersion = 1

// Snapshot is the cached membership of one playlist.
type Snapshot struct {
	Version    int      `json:"version"`
	PlaylistID string   `json:"playlist_id"`
	VideoIDs   []string `json:"video_ids"`
	// FetchedAt is in epoch seconds. Older files wrote fractional seconds.
	FetchedAt float64 `json:"fetched_at"`
}

// FetchedTime returns FetchedAt as a time.Time.
func (s *Snapshot) FetchedTime() time.Time {
	sec := int64(s.FetchedAt)
	nsec := int64((s.FetchedAt - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// SnapshotStore persists membership snapshots. Load returns ErrNotFound when
// no snapshot exists.
type SnapshotStore interface {
	Load(ctx context.Context, playlistID string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Delete(ctx context.Context, playlistID string) error
}

// FileSnapshotStore keeps one JSON file per playlist in a directory.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore returns a store rooted at dir.
func NewFileSnapshotStore(dir string) *FileSnapshotStore {
	return &FileSnapshotStore{dir: dir}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Path returns the snapshot file for playlistID.
func (s *FileSnapshotStore) Path(playlistID string) string {
	name := "existing_playlist_items_" + unsafeFileChars.ReplaceAllString(playlistID, "_") + ".json"
	return filepath.Join(s.dir, name)
}

// Load implements SnapshotStore.
func (s *FileSnapshotStore) Load(_ context.Context, playlistID string) (*Snapshot, error) {
	data, err := os.ReadFile(s.Path(playlistID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &StorageError{Op: "read", Entity: "snapshot", ID: playlistID, Err: ErrNotFound}
		}
		return nil, &StorageError{Op: "read", Entity: "snapshot", ID: playlistID, Err: err}
	}
	return decodeSnapshot(playlistID, data)
}

// Save implements SnapshotStore.
func (s *FileSnapshotStore) Save(_ context.Context, snap *Snapshot) error {
	if err := WriteJSON(s.Path(snap.PlaylistID), snap); err != nil {
		return &StorageError{Op: "write", Entity: "snapshot", ID: snap.PlaylistID, Err: err}
	}
	return nil
}

// Delete implements SnapshotStore. Deleting a missing snapshot is not an error.
func (s *FileSnapshotStore) Delete(_ context.Context, playlistID string) error {
	if err := os.Remove(s.Path(playlistID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Op: "delete", Entity: "snapshot", ID: playlistID, Err: err}
	}
	return nil
}

func decodeSnapshot(playlistID string, data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &StorageError{Op: "read", Entity: "snapshot", ID: playlistID, Err: ErrStorageCorrupt}
	}
	if snap.PlaylistID != "" && snap.PlaylistID != playlistID {
		return nil, &StorageError{Op: "read", Entity: "snapshot", ID: playlistID, Err: ErrStorageCorrupt}
	}
	snap.PlaylistID = playlistID
	return &snap, nil
}
