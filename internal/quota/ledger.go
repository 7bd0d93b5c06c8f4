// Package quota tracks remote API cost for a single sync run.
//
// A Ledger is created once per run and shared by every component that talks
// to the platform. Its exhausted flag is sticky: once set it is never cleared.
package quota

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Entry is one recorded remote call (or group of identical calls).
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	Method         string    `json:"method"`
	UnitCost       int       `json:"unit_cost"`
	CallCount      int       `json:"call_count"`
	ItemsProcessed int       `json:"items_processed"`
}

// Units returns the total cost of the entry.
func (e Entry) Units() int { return e.UnitCost * e.CallCount }

// Observer receives ledger events. Implemented by the metrics recorder.
type Observer interface {
	QuotaUsed(method string, units int)
	QuotaExhausted()
}

// Options configures a Ledger.
type Options struct {
	// Budget is the daily unit budget. Zero means DefaultDailyBudget.
	Budget int
	// Reserve marks the ledger exhausted once remaining units drop to or
	// below it. Zero disables the reserve check.
	Reserve  int
	Observer Observer
	Logger   zerolog.Logger
	// Now overrides the clock used for entry timestamps.
	Now func() time.Time
}

// Ledger is an additive, in-memory record of remote call cost.
// It is safe for concurrent use.
type Ledger struct {
	runID    string
	budget   int
	reserve  int
	observer Observer
	log      zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	entries   []Entry
	total     int
	exhausted bool
}

// NewLedger returns an empty ledger with a fresh run ID.
func NewLedger(opts Options) *Ledger {
	if opts.Budget <= 0 {
		opts.Budget = DefaultDailyBudget
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Reserve < 0 {
		opts.Reserve = 0
	}
	id := uuid.NewString()
	return &Ledger{
		runID:    id,
		budget:   opts.Budget,
		reserve:  opts.Reserve,
		observer: opts.Observer,
		log:      opts.Logger.With().Str("component", "quota").Str("run_id", id).Logger(),
		now:      opts.Now,
	}
}

// RunID identifies the run this ledger belongs to.
func (l *Ledger) RunID() string { return l.runID }

// Budget returns the configured daily budget.
func (l *Ledger) Budget() int { return l.budget }

// Record appends an entry of callCount calls at unitCost each.
func (l *Ledger) Record(method string, unitCost, callCount, itemsProcessed int) {
	if callCount <= 0 {
		callCount = 1
	}
	if unitCost < 0 {
		unitCost = 0
	}
	e := Entry{
		Timestamp:      l.now().UTC(),
		Method:         method,
		UnitCost:       unitCost,
		CallCount:      callCount,
		ItemsProcessed: itemsProcessed,
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.total += e.Units()
	remaining := l.budget - l.total
	overReserve := l.reserve > 0 && remaining <= l.reserve
	l.mu.Unlock()

	l.log.Debug().
		Str("method", method).
		Int("units", e.Units()).
		Int("items", itemsProcessed).
		Int("remaining", remaining).
		Msg("recorded api call")

	if l.observer != nil {
		l.observer.QuotaUsed(method, e.Units())
	}
	if overReserve {
		l.log.Warn().Int("remaining", remaining).Int("reserve", l.reserve).Msg("quota reserve reached")
		l.MarkExhausted()
	}
}

// RecordCall records a single call to method at its table cost.
func (l *Ledger) RecordCall(method string, itemsProcessed int) {
	l.Record(method, Cost(method), 1, itemsProcessed)
}

// TotalUsed returns the sum of unit_cost*call_count over all entries.
func (l *Ledger) TotalUsed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Remaining returns budget minus usage, floored at zero.
func (l *Ledger) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return max(0, l.budget-l.total)
}

// MarkExhausted sets the sticky exhausted flag.
func (l *Ledger) MarkExhausted() {
	l.mu.Lock()
	already := l.exhausted
	l.exhausted = true
	l.mu.Unlock()

	if already {
		return
	}
	l.log.Warn().Int("used", l.TotalUsed()).Msg("quota exhausted, halting remote calls")
	if l.observer != nil {
		l.observer.QuotaExhausted()
	}
}

// IsExhausted reports whether MarkExhausted has been called.
func (l *Ledger) IsExhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exhausted
}

// Entries returns a copy of all recorded entries in order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// MethodUsage aggregates entries for one method.
type MethodUsage struct {
	Calls int `json:"calls"`
	Units int `json:"units"`
	Items int `json:"items_processed"`
}

// Summary is a point-in-time view of ledger usage.
type Summary struct {
	RunID        string                 `json:"run_id"`
	TotalUsed    int                    `json:"total_quota_used"`
	TotalCalls   int                    `json:"total_calls"`
	Budget       int                    `json:"budget"`
	Remaining    int                    `json:"quota_remaining"`
	UsagePercent float64                `json:"usage_percentage"`
	Exhausted    bool                   `json:"exhausted"`
	Methods      map[string]MethodUsage `json:"methods_used"`
}

// Summary aggregates the ledger by method.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		RunID:     l.runID,
		TotalUsed: l.total,
		Budget:    l.budget,
		Remaining: max(0, l.budget-l.total),
		Exhausted: l.exhausted,
		Methods:   make(map[string]MethodUsage),
	}
	for _, e := range l.entries {
		m := s.Methods[e.Method]
		m.Calls += e.CallCount
		m.Units += e.Units()
		m.Items += e.ItemsProcessed
		s.Methods[e.Method] = m
		s.TotalCalls += e.CallCount
	}
	s.UsagePercent = float64(l.total) * 100 / float64(l.budget)
	return s
}

// Suggestions returns hints for reducing quota usage based on the summary.
func (l *Ledger) Suggestions() []string {
	s := l.Summary()
	var out []string

	if _, ok := s.Methods[MethodSearchList]; ok {
		out = append(out, "replace search.list calls with uploads feed lookups (saves ~100 units per call)")
	}
	if v, ok := s.Methods[MethodVideosList]; ok && v.Items > 0 && v.Calls > 0 {
		if eff := float64(v.Items) / float64(v.Calls); eff < 30 {
			out = append(out, fmt.Sprintf("improve videos.list batching (currently %.1f items per call)", eff))
		}
	}
	if ins, ok := s.Methods[MethodPlaylistItemsInsert]; ok && s.TotalUsed > 0 {
		if float64(ins.Units)/float64(s.TotalUsed) > 0.5 {
			out = append(out, "pre-filter duplicates to reduce playlist insertion cost")
		}
	}
	if s.UsagePercent > 70 {
		out = append(out, "high quota usage, reduce the lookback window or the video limit")
	}
	return out
}

// LogSummary writes the usage summary at info level.
func (l *Ledger) LogSummary() {
	s := l.Summary()
	l.log.Info().
		Int("used", s.TotalUsed).
		Int("budget", s.Budget).
		Int("remaining", s.Remaining).
		Int("calls", s.TotalCalls).
		Float64("usage_pct", s.UsagePercent).
		Bool("exhausted", s.Exhausted).
		Msg("quota usage summary")

	methods := make([]string, 0, len(s.Methods))
	for m := range s.Methods {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		u := s.Methods[m]
		l.log.Info().Str("method", m).Int("calls", u.Calls).Int("units", u.Units).Int("items", u.Items).Msg("quota by method")
	}
	for _, hint := range l.Suggestions() {
		l.log.Info().Msg(hint)
	}
}

// CallLog returns the number of calls per method.
func (l *Ledger) CallLog() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int)
	for _, e := range l.entries {
		out[e.Method] += e.CallCount
	}
	return out
}

// MarshalCallLog encodes CallLog as indented JSON.
func (l *Ledger) MarshalCallLog() ([]byte, error) {
	return json.MarshalIndent(l.CallLog(), "", "  ")
}
