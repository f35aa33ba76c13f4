package controllers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/amaumene/chansync/internal/config"
	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/services/backend"
	"github.com/amaumene/chansync/internal/utils"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const searchKey = "search/usernames"

// UserSearcher looks up usernames on the backend
type UserSearcher interface {
	SearchUsernames(ctx context.Context, query string) ([]string, error)
}

// SearchDebouncer issues a username search once typing pauses. Every call to
// Type cancels the pending search; a cancelled search makes no network call
// and leaves the previous results in place.
type SearchDebouncer struct {
	client   UserSearcher
	registry *Registry
	delay    time.Duration
	cache    *cache.Cache
	logger   *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	query   string
	results []string
}

// NewSearchDebouncer creates a debouncer using the configured delay
func NewSearchDebouncer(cfg *config.Config, client UserSearcher, registry *Registry, logger *logrus.Logger) *SearchDebouncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &SearchDebouncer{
		client:   client,
		registry: registry,
		delay:    cfg.SearchDebounce,
		cache:    cache.New(5*time.Minute, 10*time.Minute),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		results:  []string{},
	}
}

// Type records a keystroke. The returned channel closes once this keystroke's
// debounce has either searched or been cancelled.
func (d *SearchDebouncer) Type(query string) <-chan struct{} {
	return d.registry.Start(d.ctx, models.PollSession{
		TargetKey:   searchKey,
		Kind:        models.PollKindSearch,
		MaxAttempts: 1,
		Interval:    d.delay,
	}, func(ctx context.Context, h *LoopHandle) {
		d.run(ctx, h, query)
	})
}

func (d *SearchDebouncer) run(ctx context.Context, h *LoopHandle, query string) {
	if !sleepContext(ctx, d.delay) {
		return
	}
	h.Attempt()

	q := strings.TrimSpace(query)
	if q == "" {
		d.set(ctx, q, []string{})
		return
	}

	cacheKey := utils.Normalize(q)
	if cached, ok := d.cache.Get(cacheKey); ok {
		d.set(ctx, q, cached.([]string))
		return
	}

	names, err := d.client.SearchUsernames(ctx, q)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if !backend.IsCancellation(err) {
			d.logger.WithError(err).WithField("query", q).Warn("Username search failed")
		}
		return
	}

	ranked := utils.RankUsernames(q, names)
	d.cache.Set(cacheKey, ranked, cache.DefaultExpiration)
	d.set(ctx, q, ranked)

	d.logger.WithFields(logrus.Fields{
		"query":   q,
		"results": len(ranked),
	}).Debug("Username search completed")
}

func (d *SearchDebouncer) set(ctx context.Context, query string, results []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	d.query = query
	d.results = results
}

// Results returns the query the current results belong to and the results
func (d *SearchDebouncer) Results() (string, []string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.results))
	copy(out, d.results)
	return d.query, out
}

// Close cancels any pending search
func (d *SearchDebouncer) Close() {
	d.cancel()
	d.registry.Cancel(searchKey)
}
