package controllers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/chansync/internal/utils"
	"github.com/stretchr/testify/assert"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	results []string
	err     error
}

func (f *fakeSearcher) SearchUsernames(ctx context.Context, query string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeSearcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func newTestDebouncer(t *testing.T, searcher *fakeSearcher, delay time.Duration) *SearchDebouncer {
	t.Helper()
	cfg := testConfig()
	cfg.SearchDebounce = delay
	logger := utils.NewNopLogger()
	d := NewSearchDebouncer(cfg, searcher, NewRegistry(nil, logger), logger)
	t.Cleanup(d.Close)
	return d
}

func TestDebounceOnlyLastKeystrokeSearches(t *testing.T) {
	searcher := &fakeSearcher{results: []string{"bob", "alice", "ali"}}
	d := newTestDebouncer(t, searcher, 50*time.Millisecond)

	first := d.Type("a")
	second := d.Type("al")
	last := d.Type("ali")

	<-first
	<-second
	<-last

	assert.Equal(t, []string{"ali"}, searcher.calls())
	query, results := d.Results()
	assert.Equal(t, "ali", query)
	assert.Equal(t, []string{"ali", "alice", "bob"}, results)
}

func TestDebounceResultsAreMemoized(t *testing.T) {
	searcher := &fakeSearcher{results: []string{"alice"}}
	d := newTestDebouncer(t, searcher, time.Millisecond)

	<-d.Type("alice")
	<-d.Type("  Alice ")

	assert.Len(t, searcher.calls(), 1)
	_, results := d.Results()
	assert.Equal(t, []string{"alice"}, results)
}

func TestDebounceFailureKeepsPreviousResults(t *testing.T) {
	searcher := &fakeSearcher{results: []string{"alice"}}
	d := newTestDebouncer(t, searcher, time.Millisecond)

	<-d.Type("ali")

	searcher.mu.Lock()
	searcher.err = errors.New("boom")
	searcher.mu.Unlock()

	<-d.Type("bo")
	query, results := d.Results()
	assert.Equal(t, "ali", query)
	assert.Equal(t, []string{"alice"}, results)
}

func TestClosedDebouncerMakesNoCall(t *testing.T) {
	searcher := &fakeSearcher{}
	d := newTestDebouncer(t, searcher, 50*time.Millisecond)

	done := d.Type("ali")
	d.Close()
	<-done

	assert.Empty(t, searcher.calls())
}
