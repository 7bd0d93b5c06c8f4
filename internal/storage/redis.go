package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "playlist-sync:membership:"

// RedisSnapshotStore keeps snapshots in Redis so several hosts can share
// the same membership view. Keys expire after ttl.
type RedisSnapshotStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSnapshotStore wraps client. A zero ttl stores keys without expiry.
func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client, prefix: defaultRedisPrefix, ttl: ttl}
}

func (s *RedisSnapshotStore) key(playlistID string) string {
	return s.prefix + playlistID
}

// Load implements SnapshotStore.
func (s *RedisSnapshotStore) Load(ctx context.Context, playlistID string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(playlistID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &StorageError{Op: "read", Entity: "snapshot", ID: playlistID, Err: ErrNotFound}
		}
		return nil, &StorageError{Op: "read", Entity: "snapshot", ID: playlistID, Err: err}
	}
	return decodeSnapshot(playlistID, data)
}

// Save implements SnapshotStore.
func (s *RedisSnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return &StorageError{Op: "write", Entity: "snapshot", ID: snap.PlaylistID, Err: err}
	}
	if err := s.client.Set(ctx, s.key(snap.PlaylistID), data, s.ttl).Err(); err != nil {
		return &StorageError{Op: "write", Entity: "snapshot", ID: snap.PlaylistID, Err: err}
	}
	return nil
}

// Delete implements SnapshotStore.
func (s *RedisSnapshotStore) Delete(ctx context.Context, playlistID string) error {
	if err := s.client.Del(ctx, s.key(playlistID)).Err(); err != nil {
		return &StorageError{Op: "delete", Entity: "snapshot", ID: playlistID, Err: err}
	}
	return nil
}
