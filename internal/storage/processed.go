package storage

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// ProcessedFileName is the default file name of the processed ledger.
	ProcessedFileName = "processed_videos.json"
	// DefaultProcessedTTLDays is how long a processed entry is kept.
	DefaultProcessedTTLDays = 30

	processedSchemaVersion = 1
)

// Older files store naive UTC timestamps without a zone.
var naiveTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

// ProcessedEntry records when a video was synced.
type ProcessedEntry struct {
	AddedAt time.Time
	Title   string
	Channel string
}

// ProcessedStats summarizes the ledger.
type ProcessedStats struct {
	TotalProcessed     int `json:"total_processed"`
	OldestEntryAgeDays int `json:"oldest_entry_age_days"`
}

type processedRecord struct {
	AddedAt string `json:"added_at"`
	Title   string `json:"title"`
	Channel string `json:"channel"`
}

type processedFile struct {
	Version   int                        `json:"version"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Videos    map[string]processedRecord `json:"videos"`
}

// ProcessedOptions configures a ProcessedCache.
type ProcessedOptions struct {
	// TTLDays is the retention period. Zero means DefaultProcessedTTLDays.
	TTLDays int
	Logger  zerolog.Logger
	Now     func() time.Time
}

// ProcessedCache is the disk-backed ledger of videos already added to the
// target playlist. Every mutation is written through immediately.
type ProcessedCache struct {
	path string
	ttl  time.Duration
	now  func() time.Time
	log  zerolog.Logger

	mu      sync.Mutex
	entries map[string]ProcessedEntry
}

// OpenProcessedCache loads the ledger at path, purging expired entries.
// Unreadable or malformed files yield an empty ledger.
func OpenProcessedCache(path string, opts ProcessedOptions) *ProcessedCache {
	if opts.TTLDays <= 0 {
		opts.TTLDays = DefaultProcessedTTLDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &ProcessedCache{
		path:    path,
		ttl:     time.Duration(opts.TTLDays) * 24 * time.Hour,
		now:     opts.Now,
		log:     opts.Logger.With().Str("component", "processed_cache").Logger(),
		entries: make(map[string]ProcessedEntry),
	}
	c.load()
	return c
}

func (c *ProcessedCache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.log.Warn().Err(&StorageError{Op: "read", Entity: "processed", Err: err}).Msg("starting with empty processed cache")
		}
		return
	}

	records, legacy, err := decodeProcessed(data)
	if err != nil {
		c.log.Warn().Err(&StorageError{Op: "read", Entity: "processed", Err: err}).Msg("processed cache malformed, starting empty")
		return
	}

	cutoff := c.now().Add(-c.ttl)
	purged := 0
	for id, rec := range records {
		added, ok := parseCacheTime(rec.AddedAt)
		if !ok || added.Before(cutoff) {
			purged++
			continue
		}
		c.entries[id] = ProcessedEntry{AddedAt: added, Title: rec.Title, Channel: rec.Channel}
	}

	c.log.Debug().Int("entries", len(c.entries)).Int("purged", purged).Msg("loaded processed cache")
	if purged > 0 || legacy {
		if purged > 0 {
			c.log.Info().Int("purged", purged).Msg("removed expired processed entries")
		}
		if err := c.save(); err != nil {
			c.log.Warn().Err(err).Msg("rewrite processed cache")
		}
	}
}

// decodeProcessed accepts the versioned document and the older flat map.
func decodeProcessed(data []byte) (map[string]processedRecord, bool, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, ErrStorageCorrupt
	}
	if _, ok := probe["videos"]; ok {
		if _, ok := probe["version"]; ok {
			var f processedFile
			if err := json.Unmarshal(data, &f); err != nil {
				return nil, false, ErrStorageCorrupt
			}
			if f.Videos == nil {
				f.Videos = make(map[string]processedRecord)
			}
			return f.Videos, false, nil
		}
	}

	var flat map[string]processedRecord
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, false, ErrStorageCorrupt
	}
	return flat, true, nil
}

func parseCacheTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range naiveTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// save must be called with mu held or before the cache is shared.
func (c *ProcessedCache) save() error {
	f := processedFile{
		Version:   processedSchemaVersion,
		UpdatedAt: c.now().UTC(),
		Videos:    make(map[string]processedRecord, len(c.entries)),
	}
	for id, e := range c.entries {
		f.Videos[id] = processedRecord{
			AddedAt: e.AddedAt.UTC().Format(time.RFC3339Nano),
			Title:   e.Title,
			Channel: e.Channel,
		}
	}
	if err := WriteJSON(c.path, f); err != nil {
		return &StorageError{Op: "write", Entity: "processed", Err: err}
	}
	return nil
}

// IsProcessed reports whether videoID has been synced within the TTL.
func (c *ProcessedCache) IsProcessed(videoID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[videoID]
	return ok
}

// MarkProcessed records videoID and persists the ledger. The in-memory entry
// is kept even when the write fails.
func (c *ProcessedCache) MarkProcessed(videoID, title, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[videoID] = ProcessedEntry{AddedAt: c.now().UTC(), Title: title, Channel: channel}
	if err := c.save(); err != nil {
		var serr *StorageError
		if errors.As(err, &serr) {
			serr.ID = videoID
		}
		return err
	}
	return nil
}

// Entry returns the recorded entry for videoID.
func (c *ProcessedCache) Entry(videoID string) (ProcessedEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[videoID]
	return e, ok
}

// Len returns the number of live entries.
func (c *ProcessedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the entry count and the age of the oldest entry in whole days.
func (c *ProcessedCache) Stats() ProcessedStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := ProcessedStats{TotalProcessed: len(c.entries)}
	var oldest time.Time
	for _, e := range c.entries {
		if oldest.IsZero() || e.AddedAt.Before(oldest) {
			oldest = e.AddedAt
		}
	}
	if !oldest.IsZero() {
		s.OldestEntryAgeDays = max(0, int(c.now().Sub(oldest).Hours()/24))
	}
	return s
}
