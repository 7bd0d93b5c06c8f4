package filter

import (
	"strings"
	"sync"
	"time"

	"github.com/keif/playlist-from-subs/internal/youtube"
	"github.com/rs/zerolog"
)

// Reason names why a video was rejected.
type Reason string

const (
	ReasonAlreadyProcessed      Reason = "already_processed"
	ReasonTooShort              Reason = "too_short"
	ReasonTooLong               Reason = "too_long"
	ReasonNotInAllowlist        Reason = "not_in_allowlist"
	ReasonInBlocklist           Reason = "in_blocklist"
	ReasonOutsideDateWindow     Reason = "outside_date_window"
	ReasonMissingIncludeKeyword Reason = "missing_include_keyword"
	ReasonMatchedExcludeKeyword Reason = "matched_exclude_keyword"
	ReasonLiveContent           Reason = "live_content_skipped"
)

// Reasons lists every rejection reason in predicate order.
var Reasons = []Reason{
	ReasonAlreadyProcessed,
	ReasonTooShort,
	ReasonTooLong,
	ReasonNotInAllowlist,
	ReasonInBlocklist,
	ReasonOutsideDateWindow,
	ReasonMissingIncludeKeyword,
	ReasonMatchedExcludeKeyword,
	ReasonLiveContent,
}

// Decision is the outcome of evaluating one video.
type Decision struct {
	Accepted bool
	Reason   Reason
}

func accept() Decision         { return Decision{Accepted: true} }
func reject(r Reason) Decision { return Decision{Reason: r} }

// ProcessedChecker reports whether a video was already synced.
type ProcessedChecker interface {
	IsProcessed(videoID string) bool
}

// Stats counts the outcome of the last Filter call.
type Stats struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Rejected map[Reason]int `json:"rejected"`
}

// Map flattens the stats into reason -> count, including "total" and
// "passed" and a zero for every reason that did not occur.
func (s Stats) Map() map[string]int {
	out := map[string]int{"total": s.Total, "passed": s.Passed}
	for _, r := range Reasons {
		out[string(r)] = s.Rejected[r]
	}
	return out
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Logger zerolog.Logger
	Now    func() time.Time
}

// Pipeline applies the filter predicates in a fixed order, stopping at the
// first rejection.
type Pipeline struct {
	cfg       *Config
	processed ProcessedChecker
	now       func() time.Time
	log       zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewPipeline builds a pipeline. processed may be nil, in which case the
// already-processed check always passes.
func NewPipeline(cfg *Config, processed ProcessedChecker, opts PipelineOptions) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		cfg:       cfg,
		processed: processed,
		now:       opts.Now,
		log:       opts.Logger.With().Str("component", "filter").Logger(),
		stats:     Stats{Rejected: make(map[Reason]int)},
	}
}

// Evaluate decides on a single video at the current time without touching
// the counters.
func (p *Pipeline) Evaluate(v youtube.Video) Decision {
	return p.evaluate(v, p.now())
}

func (p *Pipeline) evaluate(v youtube.Video, now time.Time) Decision {
	c := p.cfg

	if p.processed != nil && p.processed.IsProcessed(v.ID) {
		return reject(ReasonAlreadyProcessed)
	}

	if v.DurationSeconds < c.minDuration {
		return reject(ReasonTooShort)
	}
	if c.maxDuration > 0 && v.DurationSeconds > c.maxDuration {
		return reject(ReasonTooLong)
	}

	switch c.channelMode {
	case ChannelAllowlist:
		if _, ok := c.channels[v.ChannelID]; !ok {
			return reject(ReasonNotInAllowlist)
		}
	case ChannelBlocklist:
		if _, ok := c.channels[v.ChannelID]; ok {
			return reject(ReasonInBlocklist)
		}
	}

	if !p.inDateWindow(v.PublishedAt, now) {
		return reject(ReasonOutsideDateWindow)
	}

	if r, ok := p.keywordReject(v); ok {
		return reject(r)
	}

	if c.skipLive && v.LiveBroadcast != youtube.LiveNone && v.LiveBroadcast != "" {
		return reject(ReasonLiveContent)
	}
	return accept()
}

// inDateWindow passes videos with an unknown publication time.
func (p *Pipeline) inDateWindow(published, now time.Time) bool {
	if published.IsZero() {
		return true
	}
	c := p.cfg
	switch c.dateMode {
	case DateDays:
		return !published.Before(c.PublishedAfter(now))
	case DateRange:
		return !published.Before(c.start) && !published.After(c.end)
	default:
		return !published.Before(now.Add(-c.lookback))
	}
}

func (p *Pipeline) keywordReject(v youtube.Video) (Reason, bool) {
	c := p.cfg
	if c.keywordMode == KeywordNone {
		return "", false
	}

	text := v.Title
	if c.searchDescription && v.Description != "" {
		text += " " + v.Description
	}
	if !c.caseSensitive {
		text = strings.ToLower(text)
	}

	if c.keywordMode == KeywordInclude || c.keywordMode == KeywordBoth {
		if !matchInclude(text, c.include, c.matchType) {
			return ReasonMissingIncludeKeyword, true
		}
	}
	if c.keywordMode == KeywordExclude || c.keywordMode == KeywordBoth {
		for _, kw := range c.exclude {
			if strings.Contains(text, kw) {
				return ReasonMatchedExcludeKeyword, true
			}
		}
	}
	return "", false
}

func matchInclude(text string, keywords []string, match MatchType) bool {
	if match == MatchAll {
		for _, kw := range keywords {
			if !strings.Contains(text, kw) {
				return false
			}
		}
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Filter runs the pipeline over videos and returns the accepted subsequence
// in input order. Counters are reset on every call.
func (p *Pipeline) Filter(videos []youtube.Video) []youtube.Video {
	now := p.now()
	stats := Stats{Total: len(videos), Rejected: make(map[Reason]int)}

	var out []youtube.Video
	for _, v := range videos {
		d := p.evaluate(v, now)
		if !d.Accepted {
			stats.Rejected[d.Reason]++
			p.log.Debug().Str("video_id", v.ID).Str("title", v.Title).Str("reason", string(d.Reason)).Msg("rejected")
			continue
		}
		stats.Passed++
		out = append(out, v)
		p.log.Info().
			Str("video_id", v.ID).
			Str("title", v.Title).
			Int("duration", v.DurationSeconds).
			Str("channel", v.ChannelTitle).
			Msg("accepted")
	}

	p.mu.Lock()
	p.stats = stats
	p.mu.Unlock()

	ev := p.log.Info().Int("total", stats.Total).Int("passed", stats.Passed)
	for _, r := range Reasons {
		if n := stats.Rejected[r]; n > 0 {
			ev = ev.Int(string(r), n)
		}
	}
	ev.Msg("filtering stats")
	return out
}

// Stats returns a copy of the counters from the last Filter call.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := Stats{Total: p.stats.Total, Passed: p.stats.Passed, Rejected: make(map[Reason]int, len(p.stats.Rejected))}
	for r, n := range p.stats.Rejected {
		out.Rejected[r] = n
	}
	return out
}
