package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pldl/internal/shared"
)

var errNoResults = errors.New("no results")

// testLogger returns a silenced logger.
func testLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}

// mockSearchTool implements SearchTool with scripted results and full
// instrumentation: call counts, per-query call timestamps, and the maximum
// number of concurrent in-flight calls.
type mockSearchTool struct {
	mu          sync.Mutex
	results     map[string]string // query -> resolved URL
	failures    map[string]int    // query -> number of leading failures
	calls       int
	callTimes   map[string][]time.Time
	inflight    int
	maxInflight int
	delay       time.Duration // simulated tool latency
}

func newMockSearchTool(results map[string]string) *mockSearchTool {
	return &mockSearchTool{
		results:   results,
		failures:  map[string]int{},
		callTimes: map[string][]time.Time{},
	}
}

func (m *mockSearchTool) Search(ctx context.Context, query string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.callTimes[query] = append(m.callTimes[query], time.Now())
	m.inflight++
	if m.inflight > m.maxInflight {
		m.maxInflight = m.inflight
	}
	remaining := m.failures[query]
	if remaining > 0 {
		m.failures[query] = remaining - 1
	}
	url, ok := m.results[query]
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
		}
	}

	m.mu.Lock()
	m.inflight--
	m.mu.Unlock()

	if remaining > 0 || !ok {
		return "", errNoResults
	}
	return url, nil
}

func (m *mockSearchTool) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockSearchTool) timesFor(query string) []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.callTimes[query]...)
}

// mockFetchTool implements FetchTool with scripted failures and the same
// instrumentation as mockSearchTool, keyed by URL.
type mockFetchTool struct {
	mu          sync.Mutex
	failures    map[string]int // url -> number of leading failures (-1 = always)
	calls       int
	callTimes   map[string][]time.Time
	seen        map[string]bool
	inflight    int
	maxInflight int
	delay       time.Duration
}

func newMockFetchTool() *mockFetchTool {
	return &mockFetchTool{
		failures:  map[string]int{},
		callTimes: map[string][]time.Time{},
		seen:      map[string]bool{},
	}
}

func (m *mockFetchTool) Fetch(ctx context.Context, url, outputTemplate string) error {
	m.mu.Lock()
	m.calls++
	m.callTimes[url] = append(m.callTimes[url], time.Now())
	m.seen[url] = true
	m.inflight++
	if m.inflight > m.maxInflight {
		m.maxInflight = m.inflight
	}
	remaining := m.failures[url]
	if remaining > 0 {
		m.failures[url] = remaining - 1
	}
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
		}
	}

	m.mu.Lock()
	m.inflight--
	m.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if remaining != 0 {
		return errors.New("fetch failed")
	}
	return nil
}

func (m *mockFetchTool) sawURL(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[url]
}

func (m *mockFetchTool) timesFor(url string) []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.callTimes[url]...)
}

// fastConfig returns a config tuned for tests: tiny delays, high search rate.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.SearchDelayMin = time.Millisecond
	cfg.SearchDelayMax = 3 * time.Millisecond
	cfg.SearchRate = 10000
	cfg.DownloadBackoffBase = time.Millisecond
	return cfg
}

// testJob builds a job directly, bypassing BuildJobs, with "title artist" as
// the search text.
func testJob(title, artist, url string) *Job {
	return NewJob(TrackQuery{
		Title:      title,
		Artist:     artist,
		SearchText: title + " " + artist,
		Filename:   artist + " - " + title,
		KnownURL:   url,
	}, "/tmp/out")
}
