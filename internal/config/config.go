// Package config manages application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/keif/playlist-from-subs/internal/filter"
	"github.com/keif/playlist-from-subs/internal/playlist"
	"github.com/keif/playlist-from-subs/internal/quota"
	"github.com/keif/playlist-from-subs/internal/storage"
	"github.com/kelseyhightower/envconfig"
)

// FileName is the config file looked up in the working directory.
const FileName = "playlist-sync.json"

// Cache backends for playlist snapshots.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config holds all application configuration. Filter options are embedded
// so the file and environment stay flat.
type Config struct {
	// Files
	DataDir          string `json:"data_dir" envconfig:"DATA_DIR"`
	ClientSecretFile string `json:"client_secret_file" envconfig:"CLIENT_SECRET_FILE"`
	TokenFile        string `json:"token_file" envconfig:"TOKEN_FILE"`
	CallLogPath      string `json:"api_call_log,omitempty" envconfig:"API_CALL_LOG"`
	MetricsPath      string `json:"metrics_textfile,omitempty" envconfig:"METRICS_TEXTFILE"`

	// Destination
	PlaylistID         string `json:"playlist_id,omitempty" envconfig:"PLAYLIST_ID"`
	PlaylistName       string `json:"playlist_name" envconfig:"PLAYLIST_NAME"`
	PlaylistVisibility string `json:"playlist_visibility" envconfig:"PLAYLIST_VISIBILITY"`

	// Fetch limits
	MaxPerChannel      int `json:"max_per_channel" envconfig:"MAX_PER_CHANNEL"`
	MaxVideos          int `json:"max_videos" envconfig:"MAX_VIDEOS_TO_FETCH"`
	FeedIntervalMillis int `json:"feed_interval_ms" envconfig:"FEED_INTERVAL_MS"`
	RetryDelayMillis   int `json:"retry_delay_ms" envconfig:"RETRY_DELAY_MS"`

	// Quota
	DailyQuota   int `json:"daily_quota" envconfig:"DAILY_QUOTA"`
	QuotaReserve int `json:"quota_reserve" envconfig:"QUOTA_RESERVE"`

	// Caches
	ProcessedTTLDays   int    `json:"cache_ttl_days" envconfig:"CACHE_TTL_DAYS"`
	MembershipTTLHours int    `json:"playlist_cache_ttl_hours" envconfig:"PLAYLIST_CACHE_TTL_HOURS"`
	CacheBackend       string `json:"cache_backend" envconfig:"CACHE_BACKEND"`
	RedisAddr          string `json:"redis_addr,omitempty" envconfig:"REDIS_ADDR"`
	RedisPassword      string `json:"redis_password,omitempty" envconfig:"REDIS_PASSWORD"`
	RedisDB            int    `json:"redis_db,omitempty" envconfig:"REDIS_DB"`

	// Logging
	LogLevel  string `json:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `json:"log_format" envconfig:"LOG_FORMAT"`

	filter.Options

	// LegacyChannelWhitelist is the pre-filter-mode allowlist. Load migrates
	// it into the channel filter and clears it.
	LegacyChannelWhitelist []string `json:"channel_whitelist,omitempty" envconfig:"CHANNEL_ID_WHITELIST"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:            "data",
		ClientSecretFile:   "client_secret.json",
		TokenFile:          "token.json",
		PlaylistName:       playlist.DefaultName,
		PlaylistVisibility: playlist.DefaultPrivacy,
		MaxPerChannel:      5,
		MaxVideos:          50,
		FeedIntervalMillis: 250,
		RetryDelayMillis:   1000,
		DailyQuota:         quota.DefaultDailyBudget,
		ProcessedTTLDays:   storage.DefaultProcessedTTLDays,
		MembershipTTLHours: int(storage.DefaultMembershipTTL / time.Hour),
		CacheBackend:       BackendFile,
		RedisAddr:          "localhost:6379",
		LogLevel:           "info",
		LogFormat:          "json",
		Options:            filter.DefaultOptions(),
	}
}

// Load builds the configuration. Priority: env vars > config file > defaults.
// An explicit path must exist; otherwise playlist-sync.json in the working
// directory and then ~/.config/playlist-sync/config.json are tried.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(path); err != nil {
		if path != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}

	cfg.migrateLegacy()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	paths := []string{path}
	if path == "" {
		paths = []string{FileName}
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, ".config", "playlist-sync", "config.json"))
		}
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == "" {
				continue
			}
			return err
		}
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		return nil
	}
	return os.ErrNotExist
}

// migrateLegacy turns channel_whitelist into an allowlist when the channel
// filter is otherwise unset.
func (c *Config) migrateLegacy() {
	legacy := c.LegacyChannelWhitelist
	c.LegacyChannelWhitelist = nil
	if len(legacy) == 0 {
		return
	}
	mode := c.ChannelFilterMode
	if (mode != "" && mode != string(filter.ChannelNone)) || len(c.ChannelAllowlist) > 0 || len(c.ChannelBlocklist) > 0 {
		return
	}
	c.ChannelFilterMode = string(filter.ChannelAllowlist)
	c.ChannelAllowlist = legacy
}

var visibilities = []string{"private", "unlisted", "public"}

// Validate checks configuration validity, including the filter options.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if !slices.Contains(visibilities, c.PlaylistVisibility) {
		return fmt.Errorf("playlist_visibility must be one of %v, got %q", visibilities, c.PlaylistVisibility)
	}
	if c.MaxPerChannel < 1 || c.MaxPerChannel > quota.MaxBatchSize {
		return fmt.Errorf("max_per_channel must be between 1 and %d", quota.MaxBatchSize)
	}
	if c.MaxVideos < 1 || c.MaxVideos > 200 {
		return fmt.Errorf("max_videos must be between 1 and 200")
	}
	if c.FeedIntervalMillis < 0 {
		return fmt.Errorf("feed_interval_ms must be non-negative")
	}
	if c.RetryDelayMillis < 0 {
		return fmt.Errorf("retry_delay_ms must be non-negative")
	}
	if c.DailyQuota <= 0 {
		return fmt.Errorf("daily_quota must be positive")
	}
	if c.QuotaReserve < 0 || c.QuotaReserve >= c.DailyQuota {
		return fmt.Errorf("quota_reserve must be in [0, daily_quota)")
	}
	if c.ProcessedTTLDays <= 0 {
		return fmt.Errorf("cache_ttl_days must be positive")
	}
	if c.MembershipTTLHours <= 0 {
		return fmt.Errorf("playlist_cache_ttl_hours must be positive")
	}
	switch c.CacheBackend {
	case BackendFile:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr must be set for the redis cache backend")
		}
	default:
		return fmt.Errorf("cache_backend must be %q or %q, got %q", BackendFile, BackendRedis, c.CacheBackend)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	if _, err := c.FilterConfig(); err != nil {
		return err
	}
	return nil
}

// FilterConfig validates and returns the filter configuration.
func (c *Config) FilterConfig() (*filter.Config, error) {
	return filter.NewConfig(c.Options)
}

// FeedInterval is the pause between per-channel feed reads.
func (c *Config) FeedInterval() time.Duration {
	return time.Duration(c.FeedIntervalMillis) * time.Millisecond
}

// RetryDelay is the fixed delay before a single retry.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMillis) * time.Millisecond
}

// MembershipTTL is the playlist snapshot lifetime.
func (c *Config) MembershipTTL() time.Duration {
	return time.Duration(c.MembershipTTLHours) * time.Hour
}

// ProcessedPath is the processed video cache file.
func (c *Config) ProcessedPath() string {
	return filepath.Join(c.DataDir, storage.ProcessedFileName)
}

// CallLogFile is where the per-method call counts are written.
func (c *Config) CallLogFile() string {
	if c.CallLogPath != "" {
		return c.CallLogPath
	}
	return filepath.Join(c.DataDir, "api_call_log.json")
}
