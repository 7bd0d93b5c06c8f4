// Package filter decides which fetched videos become playlist candidates.
//
// Options is the raw, loosely typed form read from files and the
// environment. NewConfig validates it into an immutable Config, and every
// inconsistency is reported before any remote call is made.
package filter

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DateMode selects how the publication date window is computed.
type DateMode string

const (
	DateLookback DateMode = "lookback"
	DateDays     DateMode = "days"
	DateRange    DateMode = "date_range"
)

// ChannelMode selects channel allow or block filtering.
type ChannelMode string

const (
	ChannelNone      ChannelMode = "none"
	ChannelAllowlist ChannelMode = "allowlist"
	ChannelBlocklist ChannelMode = "blocklist"
)

// KeywordMode selects which keyword lists apply.
type KeywordMode string

const (
	KeywordNone    KeywordMode = "none"
	KeywordInclude KeywordMode = "include"
	KeywordExclude KeywordMode = "exclude"
	KeywordBoth    KeywordMode = "both"
)

// MatchType controls how the include list is matched.
type MatchType string

const (
	MatchAny MatchType = "any"
	MatchAll MatchType = "all"
)

const (
	maxDurationLimit = 86400
	maxLookbackHours = 168
	maxDateDays      = 365
	dateLayout       = "2006-01-02"
)

// Options is the unvalidated filter configuration.
type Options struct {
	MinDurationSeconds       int      `json:"min_duration_seconds" envconfig:"VIDEO_MIN_DURATION_SECONDS"`
	MaxDurationSeconds       *int     `json:"max_duration_seconds,omitempty" envconfig:"VIDEO_MAX_DURATION_SECONDS"`
	DateFilterMode           string   `json:"date_filter_mode" envconfig:"DATE_FILTER_MODE"`
	LookbackHours            int      `json:"lookback_hours" envconfig:"LOOKBACK_HOURS"`
	DateFilterDays           *int     `json:"date_filter_days,omitempty" envconfig:"DATE_FILTER_DAYS"`
	DateFilterStart          string   `json:"date_filter_start,omitempty" envconfig:"DATE_FILTER_START"`
	DateFilterEnd            string   `json:"date_filter_end,omitempty" envconfig:"DATE_FILTER_END"`
	ChannelFilterMode        string   `json:"channel_filter_mode" envconfig:"CHANNEL_FILTER_MODE"`
	ChannelAllowlist         []string `json:"channel_allowlist,omitempty" envconfig:"CHANNEL_ALLOWLIST"`
	ChannelBlocklist         []string `json:"channel_blocklist,omitempty" envconfig:"CHANNEL_BLOCKLIST"`
	KeywordFilterMode        string   `json:"keyword_filter_mode" envconfig:"KEYWORD_FILTER_MODE"`
	KeywordInclude           []string `json:"keyword_include,omitempty" envconfig:"KEYWORD_INCLUDE"`
	KeywordExclude           []string `json:"keyword_exclude,omitempty" envconfig:"KEYWORD_EXCLUDE"`
	KeywordMatchType         string   `json:"keyword_match_type" envconfig:"KEYWORD_MATCH_TYPE"`
	KeywordCaseSensitive     bool     `json:"keyword_case_sensitive" envconfig:"KEYWORD_CASE_SENSITIVE"`
	KeywordSearchDescription bool     `json:"keyword_search_description" envconfig:"KEYWORD_SEARCH_DESCRIPTION"`
	SkipLiveContent          bool     `json:"skip_live_content" envconfig:"SKIP_LIVE_CONTENT"`
	// Timezone is an IANA name used for day boundaries. Empty means UTC.
	Timezone string `json:"timezone,omitempty" envconfig:"FILTER_TIMEZONE"`
}

// DefaultOptions returns the stock filter settings.
func DefaultOptions() Options {
	return Options{
		MinDurationSeconds: 60,
		DateFilterMode:     string(DateLookback),
		LookbackHours:      24,
		ChannelFilterMode:  string(ChannelNone),
		KeywordFilterMode:  string(KeywordNone),
		KeywordMatchType:   string(MatchAny),
		SkipLiveContent:    true,
	}
}

// ConfigError describes an invalid filter option.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid filter config: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Config is a validated filter configuration. The zero value is not usable.
type Config struct {
	minDuration int
	maxDuration int // 0 means unlimited

	dateMode DateMode
	lookback time.Duration
	days     int
	start    time.Time
	end      time.Time // inclusive, last instant of the end day
	loc      *time.Location

	channelMode ChannelMode
	channels    map[string]struct{}

	keywordMode       KeywordMode
	include           []string
	exclude           []string
	matchType         MatchType
	caseSensitive     bool
	searchDescription bool

	skipLive bool
}

// NewConfig validates opts. The returned error is a *ConfigError.
func NewConfig(opts Options) (*Config, error) {
	c := &Config{
		caseSensitive:     opts.KeywordCaseSensitive,
		searchDescription: opts.KeywordSearchDescription,
		skipLive:          opts.SkipLiveContent,
	}

	loc := time.UTC
	if opts.Timezone != "" {
		l, err := time.LoadLocation(opts.Timezone)
		if err != nil {
			return nil, invalid("timezone", "unknown zone %q", opts.Timezone)
		}
		loc = l
	}
	c.loc = loc

	if err := c.setDuration(opts); err != nil {
		return nil, err
	}
	if err := c.setDate(opts); err != nil {
		return nil, err
	}
	if err := c.setChannels(opts); err != nil {
		return nil, err
	}
	if err := c.setKeywords(opts); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) setDuration(opts Options) error {
	if opts.MinDurationSeconds < 0 || opts.MinDurationSeconds > maxDurationLimit {
		return invalid("min_duration_seconds", "%d must be between 0 and %d", opts.MinDurationSeconds, maxDurationLimit)
	}
	c.minDuration = opts.MinDurationSeconds

	if opts.MaxDurationSeconds != nil {
		m := *opts.MaxDurationSeconds
		if m < 1 || m > maxDurationLimit {
			return invalid("max_duration_seconds", "%d must be between 1 and %d", m, maxDurationLimit)
		}
		if m < c.minDuration {
			return invalid("max_duration_seconds", "%d is less than min_duration_seconds %d", m, c.minDuration)
		}
		c.maxDuration = m
	}
	return nil
}

func (c *Config) setDate(opts Options) error {
	mode := DateMode(opts.DateFilterMode)
	if mode == "" {
		mode = DateLookback
	}
	switch mode {
	case DateLookback, DateDays, DateRange:
	default:
		return invalid("date_filter_mode", "%q must be one of lookback, days, date_range", opts.DateFilterMode)
	}
	c.dateMode = mode

	if opts.LookbackHours != 0 || mode == DateLookback {
		if opts.LookbackHours < 1 || opts.LookbackHours > maxLookbackHours {
			return invalid("lookback_hours", "%d must be between 1 and %d", opts.LookbackHours, maxLookbackHours)
		}
		c.lookback = time.Duration(opts.LookbackHours) * time.Hour
	}

	if opts.DateFilterDays != nil {
		d := *opts.DateFilterDays
		if d < 1 || d > maxDateDays {
			return invalid("date_filter_days", "%d must be between 1 and %d", d, maxDateDays)
		}
		c.days = d
	}

	var hasStart, hasEnd bool
	if opts.DateFilterStart != "" {
		t, err := time.ParseInLocation(dateLayout, opts.DateFilterStart, c.loc)
		if err != nil {
			return invalid("date_filter_start", "%q must be in YYYY-MM-DD format", opts.DateFilterStart)
		}
		c.start, hasStart = t, true
	}
	if opts.DateFilterEnd != "" {
		t, err := time.ParseInLocation(dateLayout, opts.DateFilterEnd, c.loc)
		if err != nil {
			return invalid("date_filter_end", "%q must be in YYYY-MM-DD format", opts.DateFilterEnd)
		}
		c.end, hasEnd = t.AddDate(0, 0, 1).Add(-time.Nanosecond), true
	}
	if hasStart && hasEnd && c.end.Before(c.start) {
		return invalid("date_filter_end", "%s is before date_filter_start %s", opts.DateFilterEnd, opts.DateFilterStart)
	}

	switch mode {
	case DateDays:
		if c.days == 0 {
			return invalid("date_filter_days", "required when date_filter_mode is days")
		}
	case DateRange:
		if !hasStart || !hasEnd {
			return invalid("date_filter_start", "date_filter_start and date_filter_end are required when date_filter_mode is date_range")
		}
	}
	return nil
}

func (c *Config) setChannels(opts Options) error {
	mode := ChannelMode(opts.ChannelFilterMode)
	if mode == "" {
		mode = ChannelNone
	}
	switch mode {
	case ChannelNone, ChannelAllowlist, ChannelBlocklist:
	default:
		return invalid("channel_filter_mode", "%q must be one of none, allowlist, blocklist", opts.ChannelFilterMode)
	}
	c.channelMode = mode

	allow := cleanList(opts.ChannelAllowlist, true)
	block := cleanList(opts.ChannelBlocklist, true)

	for _, id := range allow {
		if slices.Contains(block, id) {
			return invalid("channel_allowlist", "channel %s is in both allowlist and blocklist", id)
		}
	}

	var list []string
	switch mode {
	case ChannelNone:
		if len(allow) > 0 || len(block) > 0 {
			return invalid("channel_filter_mode", "channel lists are set but channel_filter_mode is none")
		}
	case ChannelAllowlist:
		if len(block) > 0 {
			return invalid("channel_blocklist", "cannot be used when channel_filter_mode is allowlist")
		}
		if len(allow) == 0 {
			return invalid("channel_allowlist", "required when channel_filter_mode is allowlist")
		}
		list = allow
	case ChannelBlocklist:
		if len(allow) > 0 {
			return invalid("channel_allowlist", "cannot be used when channel_filter_mode is blocklist")
		}
		if len(block) == 0 {
			return invalid("channel_blocklist", "required when channel_filter_mode is blocklist")
		}
		list = block
	}

	c.channels = make(map[string]struct{}, len(list))
	for _, id := range list {
		c.channels[id] = struct{}{}
	}
	return nil
}

func (c *Config) setKeywords(opts Options) error {
	mode := KeywordMode(opts.KeywordFilterMode)
	if mode == "" {
		mode = KeywordNone
	}
	switch mode {
	case KeywordNone, KeywordInclude, KeywordExclude, KeywordBoth:
	default:
		return invalid("keyword_filter_mode", "%q must be one of none, include, exclude, both", opts.KeywordFilterMode)
	}
	c.keywordMode = mode

	match := MatchType(opts.KeywordMatchType)
	if match == "" {
		match = MatchAny
	}
	if match != MatchAny && match != MatchAll {
		return invalid("keyword_match_type", "%q must be any or all", opts.KeywordMatchType)
	}
	c.matchType = match

	include := cleanList(opts.KeywordInclude, false)
	exclude := cleanList(opts.KeywordExclude, false)
	if (mode == KeywordInclude || mode == KeywordBoth) && len(include) == 0 {
		return invalid("keyword_include", "must not be empty when keyword_filter_mode is %s", mode)
	}
	if (mode == KeywordExclude || mode == KeywordBoth) && len(exclude) == 0 {
		return invalid("keyword_exclude", "must not be empty when keyword_filter_mode is %s", mode)
	}
	if !c.caseSensitive {
		for i := range include {
			include[i] = strings.ToLower(include[i])
		}
		for i := range exclude {
			exclude[i] = strings.ToLower(exclude[i])
		}
	}
	c.include = include
	c.exclude = exclude
	return nil
}

// cleanList trims entries and drops empty ones, optionally deduplicating.
func cleanList(in []string, dedup bool) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || (dedup && slices.Contains(out, s)) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// MinDuration returns the minimum accepted duration in seconds.
func (c *Config) MinDuration() int { return c.minDuration }

// MaxDuration returns the maximum accepted duration and whether one is set.
func (c *Config) MaxDuration() (int, bool) { return c.maxDuration, c.maxDuration > 0 }

func (c *Config) DateMode() DateMode       { return c.dateMode }
func (c *Config) ChannelMode() ChannelMode { return c.channelMode }
func (c *Config) KeywordMode() KeywordMode { return c.keywordMode }
func (c *Config) SkipLive() bool           { return c.skipLive }
func (c *Config) Location() *time.Location { return c.loc }

// PublishedAfter returns the earliest publication instant the date filter
// can accept at now. It bounds feed reads.
func (c *Config) PublishedAfter(now time.Time) time.Time {
	switch c.dateMode {
	case DateDays:
		return startOfDay(now.In(c.loc).AddDate(0, 0, -c.days))
	case DateRange:
		return c.start
	default:
		return now.Add(-c.lookback)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Summary renders the configuration for logs.
func (c *Config) Summary() string {
	var parts []string
	if c.maxDuration > 0 {
		parts = append(parts, fmt.Sprintf("duration %ds-%ds", c.minDuration, c.maxDuration))
	} else {
		parts = append(parts, fmt.Sprintf("min duration %ds", c.minDuration))
	}

	switch c.dateMode {
	case DateLookback:
		parts = append(parts, fmt.Sprintf("lookback %s", c.lookback))
	case DateDays:
		parts = append(parts, fmt.Sprintf("last %d days", c.days))
	case DateRange:
		parts = append(parts, fmt.Sprintf("dates %s to %s", c.start.Format(dateLayout), c.end.Format(dateLayout)))
	}

	if c.channelMode != ChannelNone {
		parts = append(parts, fmt.Sprintf("%s of %d channels", c.channelMode, len(c.channels)))
	}
	if c.keywordMode != KeywordNone {
		kw := fmt.Sprintf("keywords %s", c.keywordMode)
		if len(c.include) > 0 {
			kw += fmt.Sprintf(" include(%s)=%s", c.matchType, strings.Join(c.include, ","))
		}
		if len(c.exclude) > 0 {
			kw += " exclude=" + strings.Join(c.exclude, ",")
		}
		parts = append(parts, kw)
	}
	parts = append(parts, fmt.Sprintf("skip live %t", c.skipLive))
	return strings.Join(parts, "; ")
}
