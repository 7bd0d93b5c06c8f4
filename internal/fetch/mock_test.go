package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/keif/playlist-from-subs/internal/retry"
	"github.com/keif/playlist-from-subs/internal/youtube"
)

// MockPlatform serves canned subscription, feed and detail responses.
type MockPlatform struct {
	mu sync.Mutex

	// pages are returned in order, one per ListSubscriptions call.
	pages   []youtube.SubscriptionPage
	subErrs []error

	feeds    map[string]string // channel ID -> feed ID
	feedErrs map[string]error
	items    map[string][]youtube.FeedItem
	itemErrs map[string]error

	details    map[string]youtube.VideoDetails
	detailErrs []error // consumed one per VideoDetails call

	subCalls      int
	feedCalls     map[string]int
	readCalls     map[string]int
	readLimits    []int
	detailCalls   int
	detailBatches [][]string
}

func (m *MockPlatform) ListSubscriptions(ctx context.Context, pageToken string) (youtube.SubscriptionPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.subCalls
	m.subCalls++
	if n < len(m.subErrs) && m.subErrs[n] != nil {
		return youtube.SubscriptionPage{}, m.subErrs[n]
	}
	if n >= len(m.pages) {
		return youtube.SubscriptionPage{}, nil
	}
	return m.pages[n], nil
}

func (m *MockPlatform) UploadsFeed(ctx context.Context, channelID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.feedCalls == nil {
		m.feedCalls = make(map[string]int)
	}
	m.feedCalls[channelID]++
	if err := m.feedErrs[channelID]; err != nil {
		return "", err
	}
	feed, ok := m.feeds[channelID]
	if !ok {
		return "", apiErr("channels.list", youtube.ErrNotFound)
	}
	return feed, nil
}

func (m *MockPlatform) ListFeedItems(ctx context.Context, feedID string, maxItems int) ([]youtube.FeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readCalls == nil {
		m.readCalls = make(map[string]int)
	}
	m.readCalls[feedID]++
	m.readLimits = append(m.readLimits, maxItems)
	if err := m.itemErrs[feedID]; err != nil {
		return nil, err
	}
	return m.items[feedID], nil
}

func (m *MockPlatform) VideoDetails(ctx context.Context, ids []string) (map[string]youtube.VideoDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.detailCalls
	m.detailCalls++
	m.detailBatches = append(m.detailBatches, append([]string(nil), ids...))
	if n < len(m.detailErrs) && m.detailErrs[n] != nil {
		return nil, m.detailErrs[n]
	}
	out := make(map[string]youtube.VideoDetails)
	for _, id := range ids {
		if d, ok := m.details[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

// MockGate is a quota gate that can be forced exhausted.
type MockGate struct {
	mu        sync.Mutex
	exhausted bool
	marks     int
}

func (g *MockGate) IsExhausted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exhausted
}

func (g *MockGate) MarkExhausted() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exhausted = true
	g.marks++
}

// MockProcessed is a fixed set of processed IDs.
type MockProcessed map[string]bool

func (m MockProcessed) IsProcessed(id string) bool { return m[id] }

func apiErr(method string, kind error) error {
	return &youtube.APIError{Method: method, Err: kind}
}

// noDelay retries once without sleeping.
var noDelay = retry.Fixed(1, 0)

func videoIDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%03d", prefix, i)
	}
	return ids
}
