package controllers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/chansync/internal/config"
	"github.com/amaumene/chansync/internal/metrics"
	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/services/backend"
	"github.com/amaumene/chansync/internal/services/probe"
	"github.com/amaumene/chansync/internal/utils"
)

type fakeBackend struct {
	mu sync.Mutex

	fetch      func(ctx context.Context, call int, q backend.ContentQuery) (*models.ContentPage, error)
	fetchCalls int
	queries    []backend.ContentQuery

	channel      *models.ChannelInfo
	channelCalls int

	streamStatus *models.StreamFileStatus

	deleteErr error
	deleted   []string

	updateErr error
	updated   map[string]backend.FileDetails
}

func (f *fakeBackend) FetchContent(ctx context.Context, q backend.ContentQuery) (*models.ContentPage, error) {
	f.mu.Lock()
	f.fetchCalls++
	call := f.fetchCalls
	f.queries = append(f.queries, q)
	fn := f.fetch
	f.mu.Unlock()

	if fn == nil {
		return &models.ContentPage{}, nil
	}
	return fn(ctx, call, q)
}

func (f *fakeBackend) GetChannel(ctx context.Context, channelName string) (*models.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelCalls++
	if f.channel == nil {
		return nil, &backend.NetworkError{Kind: backend.NetworkServer, StatusCode: 503}
	}
	info := *f.channel
	return &info, nil
}

func (f *fakeBackend) CheckStreamFile(ctx context.Context, streamKey string) (*models.StreamFileStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streamStatus == nil {
		return &models.StreamFileStatus{}, nil
	}
	status := *f.streamStatus
	return &status, nil
}

func (f *fakeBackend) DeleteFile(ctx context.Context, item models.ContentItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, item.SK)
	return nil
}

func (f *fakeBackend) UpdateFileDetails(ctx context.Context, sk string, details backend.FileDetails) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updated == nil {
		f.updated = make(map[string]backend.FileDetails)
	}
	f.updated[sk] = details
	return nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func (f *fakeBackend) deletedSKs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, note models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notes)
}

type fakeProber struct {
	mu        sync.Mutex
	durations map[string]time.Duration
	probed    []string
}

func (p *fakeProber) Duration(ctx context.Context, mediaURL string) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, mediaURL)
	d, ok := p.durations[mediaURL]
	if !ok {
		return 0, errors.New("probe failed")
	}
	return d, nil
}

func testConfig() *config.Config {
	return &config.Config{
		ChannelName:          "chan",
		UserEmail:            "me@example.com",
		CreatorEmail:         "me@example.com",
		Username:             "me",
		ChannelMode:          config.ModeStandard,
		PageSize:             20,
		ReadinessInterval:    5 * time.Millisecond,
		ReadinessMaxAttempts: 50,
		ReadinessPageSize:    5,
		RefreshInitialDelay:  time.Hour,
		RefreshInterval:      time.Hour,
		ShortClipThreshold:   6 * time.Second,
		ShortClipConcurrency: 2,
		SearchDebounce:       20 * time.Millisecond,
	}
}

type sessionDeps struct {
	backend  *fakeBackend
	notifier *fakeNotifier
	prober   *fakeProber
	registry *Registry
	metrics  *metrics.Metrics
	drafts   DraftStore
}

func newTestSession(t *testing.T, cfg *config.Config, deps *sessionDeps) *Session {
	t.Helper()
	logger := utils.NewNopLogger()
	if deps.backend == nil {
		deps.backend = &fakeBackend{}
	}
	if deps.notifier == nil {
		deps.notifier = &fakeNotifier{}
	}
	if deps.metrics == nil {
		deps.metrics = metrics.New()
	}
	if deps.registry == nil {
		deps.registry = NewRegistry(deps.metrics, logger)
	}

	var prober probe.Prober
	if deps.prober != nil {
		prober = deps.prober
	}

	s := NewSession(cfg, deps.backend, deps.drafts, prober, deps.notifier, deps.registry, deps.metrics, logger)
	t.Cleanup(s.Close)
	return s
}

func page(items ...models.ContentItem) *models.ContentPage {
	return &models.ContentPage{Items: items}
}

func readyVideo(sk, title, createdAt string) models.ContentItem {
	return models.ContentItem{
		SK:           sk,
		FileName:     sk + ".mp4",
		Title:        title,
		Category:     models.CategoryVideo,
		CreatedAt:    createdAt,
		ThumbnailURL: "https://cdn/" + sk + ".jpg",
		HLSURL:       "https://cdn/" + sk + ".m3u8",
	}
}

func itemSKs(items []models.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.SK
	}
	return out
}

// lockCheckingStore records draft writes and whether the session lock was
// held while they ran
type lockCheckingStore struct {
	mu      sync.Mutex
	session *Session
	saved   []string
	deletes int
	blocked bool
}

func (st *lockCheckingStore) checkUnlocked() {
	done := make(chan struct{})
	go func() {
		st.session.Snapshot()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		st.mu.Lock()
		st.blocked = true
		st.mu.Unlock()
	}
}

func (st *lockCheckingStore) SaveDraft(email string, draft *models.ContentItem) error {
	st.checkUnlocked()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.saved = append(st.saved, draft.SK)
	return nil
}

func (st *lockCheckingStore) GetDraft(email string) (*models.ContentItem, error) {
	return nil, models.ErrNotFound
}

func (st *lockCheckingStore) DeleteDraft(email string) error {
	st.checkUnlocked()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.deletes++
	return nil
}

func (st *lockCheckingStore) snapshot() (saved []string, deletes int, blocked bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]string(nil), st.saved...), st.deletes, st.blocked
}
