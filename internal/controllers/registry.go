package controllers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amaumene/chansync/internal/metrics"
	"github.com/amaumene/chansync/internal/models"
	"github.com/sirupsen/logrus"
)

// LoopFunc is the body of a background loop. It must return once ctx is done.
type LoopFunc func(ctx context.Context, h *LoopHandle)

type loop struct {
	id      uint64
	session models.PollSession
	cancel  context.CancelFunc
	done    chan struct{}
}

// Registry runs background loops keyed by target. At most one loop runs per
// key: starting a loop for a key cancels the loop already running for it.
type Registry struct {
	mu      sync.Mutex
	loops   map[string]*loop
	nextID  uint64
	closed  bool
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewRegistry creates an empty loop registry
func NewRegistry(m *metrics.Metrics, logger *logrus.Logger) *Registry {
	return &Registry{
		loops:   make(map[string]*loop),
		metrics: m,
		logger:  logger,
	}
}

// Start runs fn in a new goroutine under a context derived from parent. The
// returned channel is closed once fn has returned.
func (r *Registry) Start(parent context.Context, session models.PollSession, fn LoopFunc) <-chan struct{} {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		close(done)
		return done
	}

	key := session.TargetKey
	if existing, ok := r.loops[key]; ok {
		existing.cancel()
		r.logger.WithFields(logrus.Fields{
			"key":  key,
			"kind": existing.session.Kind,
		}).Debug("Replaced running loop")
	}

	r.nextID++
	session.Cancelled = false
	session.AttemptCount = 0
	session.StartedAt = time.Now()
	l := &loop{id: r.nextID, session: session, cancel: cancel, done: done}
	r.loops[key] = l
	r.updateGauge()
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"key":  key,
		"kind": session.Kind,
	}).Debug("Started loop")

	go func() {
		defer close(done)
		defer r.finish(key, l.id)
		fn(ctx, &LoopHandle{registry: r, key: key, id: l.id})
	}()

	return done
}

func (r *Registry) finish(key string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.loops[key]
	if !ok || l.id != id {
		return
	}
	l.cancel()
	delete(r.loops, key)
	r.updateGauge()
}

// Cancel stops the loop running for key. It reports whether one was running.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.loops[key]
	if !ok {
		return false
	}
	l.cancel()
	l.session.Cancelled = true
	delete(r.loops, key)
	r.updateGauge()
	return true
}

// CancelPrefix stops every loop whose key starts with prefix
func (r *Registry) CancelPrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelled := 0
	for key, l := range r.loops {
		if strings.HasPrefix(key, prefix) {
			l.cancel()
			delete(r.loops, key)
			cancelled++
		}
	}
	r.updateGauge()
	return cancelled
}

// Close cancels every loop. Loops started afterwards exit immediately.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, l := range r.loops {
		l.cancel()
		delete(r.loops, key)
	}
	r.closed = true
	r.updateGauge()
}

// Running reports whether a loop is running for key
func (r *Registry) Running(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.loops[key]
	return ok
}

// Session returns the bookkeeping of the loop running for key
func (r *Registry) Session(key string) (models.PollSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loops[key]
	if !ok {
		return models.PollSession{}, false
	}
	return l.session, true
}

// Sessions lists the running loops ordered by key
func (r *Registry) Sessions() []models.PollSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]models.PollSession, 0, len(r.loops))
	for _, l := range r.loops {
		sessions = append(sessions, l.session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].TargetKey < sessions[j].TargetKey
	})
	return sessions
}

func (r *Registry) updateGauge() {
	if r.metrics != nil {
		r.metrics.ActiveLoops.Set(float64(len(r.loops)))
	}
}

// update applies fn to the loop's session if the loop is still the one
// registered under its key
func (r *Registry) update(key string, id uint64, fn func(*models.PollSession)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loops[key]; ok && l.id == id {
		fn(&l.session)
	}
}

// LoopHandle lets a running loop record its progress
type LoopHandle struct {
	registry *Registry
	key      string
	id       uint64
	attempts int
}

// Key returns the loop's target key
func (h *LoopHandle) Key() string {
	return h.key
}

// Attempt records one iteration and returns the attempt number
func (h *LoopHandle) Attempt() int {
	h.attempts++
	attempts := h.attempts
	h.registry.update(h.key, h.id, func(s *models.PollSession) {
		s.AttemptCount = attempts
	})
	return attempts
}

// Attempts returns the number of recorded iterations
func (h *LoopHandle) Attempts() int {
	return h.attempts
}

// SetState records the loop's state machine position
func (h *LoopHandle) SetState(state models.ReadinessState) {
	h.registry.update(h.key, h.id, func(s *models.PollSession) {
		s.State = state
	})
}

// sleepContext waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}
