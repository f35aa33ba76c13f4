package controllers

import (
	"context"
	"sync/atomic"

	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/reconcile"
	"github.com/amaumene/chansync/internal/services/backend"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// Readiness poller

func (s *Session) startReadiness(draft models.ContentItem) <-chan struct{} {
	state := models.StateWaitingForThumbnail
	if draft.HasThumbnail() {
		state = models.StateWaitingForHLS
	}

	return s.registry.Start(s.ctx, models.PollSession{
		TargetKey:   s.readinessKey(draft.SK),
		Kind:        models.PollKindReadiness,
		State:       state,
		MaxAttempts: s.cfg.ReadinessMaxAttempts,
		Interval:    s.cfg.ReadinessInterval,
	}, func(ctx context.Context, h *LoopHandle) {
		s.pollReadiness(ctx, h, draft.SK)
	})
}

// pollReadiness waits for the draft's server counterpart to get a thumbnail,
// then an HLS URL. The first check runs immediately.
func (s *Session) pollReadiness(ctx context.Context, h *LoopHandle, sk string) {
	logger := s.logger.WithField("draft", sk)

	for {
		if ctx.Err() != nil {
			return
		}
		if s.cfg.ReadinessMaxAttempts > 0 && h.Attempts() >= s.cfg.ReadinessMaxAttempts {
			logger.WithField("attempts", h.Attempts()).Info("Readiness polling gave up")
			return
		}
		if h.Attempts() > 0 && !sleepContext(ctx, s.cfg.ReadinessInterval) {
			return
		}

		attempt := h.Attempt()
		s.metrics.PollTicks.WithLabelValues(string(models.PollKindReadiness)).Inc()

		done, err := s.readinessTick(ctx, h, sk)
		if err != nil && !backend.IsCancellation(err) {
			s.metrics.FetchErrors.WithLabelValues("readiness").Inc()
			logger.WithError(err).WithField("attempt", attempt).Debug("Readiness check failed")
		}
		if done {
			return
		}
	}
}

func (s *Session) readinessTick(ctx context.Context, h *LoopHandle, sk string) (bool, error) {
	draft, ok := s.Draft()
	if !ok || draft.SK != sk {
		return true, nil
	}

	if draft.StreamKey != "" {
		status, err := s.client.CheckStreamFile(ctx, draft.StreamKey)
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		if err != nil {
			return false, err
		}
		if !status.Exists {
			return false, nil
		}
		if status.FileID != "" && draft.FileID == "" {
			draft, ok = s.updateDraft(ctx, sk, func(d *models.ContentItem) {
				d.FileID = status.FileID
			})
			if !ok {
				return true, nil
			}
		}
	}

	page, err := s.client.FetchContent(ctx, s.query("", s.cfg.ReadinessPageSize))
	if ctx.Err() != nil {
		return true, ctx.Err()
	}
	if err != nil {
		return false, err
	}

	idx := reconcile.MatchDraft(draft, page.Items)
	if idx < 0 {
		return false, nil
	}
	match := page.Items[idx]
	if !match.HasThumbnail() {
		return false, nil
	}

	if !match.HasHLS() {
		_, ok := s.updateDraft(ctx, sk, func(d *models.ContentItem) {
			d.ThumbnailURL = match.ThumbnailURL
			if d.FileID == "" {
				d.FileID = match.FileID
			}
		})
		if !ok {
			return true, nil
		}
		h.SetState(models.StateWaitingForHLS)
		return false, nil
	}

	if !s.finalizeDraft(ctx, sk, match) {
		return true, nil
	}
	h.SetState(models.StateDone)
	s.metrics.DraftsRetired.Inc()
	s.logger.WithFields(logrus.Fields{
		"draft": sk,
		"sk":    match.SK,
	}).Info("Draft is ready on the server")

	s.notifyReady(ctx, match)
	return true, nil
}

// updateDraft mutates the draft in place. The local file reference is kept so
// playback continues. It reports false when the draft is gone or ctx is done.
func (s *Session) updateDraft(ctx context.Context, sk string, fn func(*models.ContentItem)) (models.ContentItem, bool) {
	s.mu.Lock()
	if ctx.Err() != nil || s.draft == nil || s.draft.SK != sk {
		s.mu.Unlock()
		return models.ContentItem{}, false
	}

	updated := *s.draft
	localFile := updated.LocalFileURL
	fn(&updated)
	updated.LocalFileURL = localFile
	s.draft = &updated
	s.draftDirty = true
	res := s.reconcileLocked()
	s.unlockAndPersist()

	s.handleResult(ctx, res)
	return updated, res.Draft != nil
}

// finalizeDraft retires the draft in favour of its processed server item
func (s *Session) finalizeDraft(ctx context.Context, sk string, match models.ContentItem) bool {
	s.mu.Lock()
	if ctx.Err() != nil || s.draft == nil || s.draft.SK != sk {
		s.mu.Unlock()
		return false
	}

	draft := *s.draft
	s.draft = nil
	s.draftDirty = true
	s.fetched = reconcile.Dedupe(append([]models.ContentItem{match}, s.fetched...))
	s.reconcileLocked()
	s.unlockAndPersist()

	removeLocalFile(draft.LocalFileURL, s.logger)
	return true
}

// Auto-refresh poller

// StartAutoRefresh starts the periodic refresh of channel metadata and the
// first page. A running auto-refresh loop is replaced.
func (s *Session) StartAutoRefresh() <-chan struct{} {
	return s.registry.Start(s.ctx, models.PollSession{
		TargetKey: s.refreshKey(),
		Kind:      models.PollKindRefresh,
		Interval:  s.cfg.RefreshInterval,
	}, s.autoRefresh)
}

func (s *Session) autoRefresh(ctx context.Context, h *LoopHandle) {
	if !sleepContext(ctx, s.cfg.RefreshInitialDelay) {
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		h.Attempt()
		s.metrics.PollTicks.WithLabelValues(string(models.PollKindRefresh)).Inc()

		if err := s.refreshTick(ctx); err != nil && !backend.IsCancellation(err) {
			s.metrics.FetchErrors.WithLabelValues("auto_refresh").Inc()
			s.logger.WithError(err).Warn("Auto-refresh tick failed")
		}

		if !sleepContext(ctx, s.cfg.RefreshInterval) {
			return
		}
	}
}

// refreshTick fetches channel metadata and the first page concurrently and
// applies whatever succeeded
func (s *Session) refreshTick(ctx context.Context) error {
	var (
		channel   *models.ChannelInfo
		page      *models.ContentPage
		malformed error
	)

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		info, err := s.client.GetChannel(ctx, s.cfg.ChannelName)
		if err != nil {
			return err
		}
		channel = info
		return nil
	})
	p.Go(func(ctx context.Context) error {
		fetched, err := s.client.FetchContent(ctx, s.query("", s.cfg.PageSize))
		if err != nil {
			if backend.IsDecodeError(err) {
				malformed = err
				return nil
			}
			return err
		}
		page = fetched
		return nil
	})
	err := p.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if malformed != nil {
		s.metrics.DecodeErrors.WithLabelValues("auto_refresh").Inc()
		s.logger.WithError(malformed).Warn("Malformed content page, keeping list")
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return ctx.Err()
	}
	if channel != nil {
		s.channel = channel
	}
	var res reconcile.Result
	if page != nil {
		s.fetched = reconcile.MergeFirstPage(s.withoutDeletedLocked(page.Items), s.fetched, !page.HasMore)
		if !s.loaded {
			s.nextToken = page.NextToken
			s.hasMore = page.HasMore
			s.loaded = true
		}
		res = s.reconcileLocked()
	}
	s.unlockAndPersist()

	s.handleResult(ctx, res)
	return err
}

// Short-clip sweep

// StartSweep runs the short-clip sweep once in the background
func (s *Session) StartSweep() <-chan struct{} {
	return s.registry.Start(s.ctx, models.PollSession{
		TargetKey:   s.sweepKey(),
		Kind:        models.PollKindCleanup,
		MaxAttempts: 1,
	}, func(ctx context.Context, h *LoopHandle) {
		h.Attempt()
		s.metrics.PollTicks.WithLabelValues(string(models.PollKindCleanup)).Inc()
		s.SweepShortClips(ctx)
	})
}

// SweepShortClips deletes every displayed video shorter than the configured
// threshold. Probe and delete failures skip the item. It returns the number of
// deleted items.
func (s *Session) SweepShortClips(ctx context.Context) int {
	if s.prober == nil {
		return 0
	}

	s.mu.Lock()
	candidates := make([]models.ContentItem, 0, len(s.view.Visible))
	for _, item := range s.view.Visible {
		if item.IsVideo() && item.HasHLS() && !item.IsDraft() {
			candidates = append(candidates, item)
		}
	}
	s.mu.Unlock()

	if len(candidates) == 0 {
		return 0
	}

	concurrency := s.cfg.ShortClipConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var deleted int64
	p := pool.New().WithContext(ctx).WithMaxGoroutines(concurrency)
	for _, item := range candidates {
		p.Go(func(ctx context.Context) error {
			if s.sweepItem(ctx, item) {
				atomic.AddInt64(&deleted, 1)
			}
			return nil
		})
	}
	_ = p.Wait()

	s.logger.WithFields(logrus.Fields{
		"checked": len(candidates),
		"deleted": deleted,
	}).Info("Short-clip sweep completed")
	return int(deleted)
}

func (s *Session) sweepItem(ctx context.Context, item models.ContentItem) bool {
	if ctx.Err() != nil {
		return false
	}

	logger := s.logger.WithFields(logrus.Fields{
		"sk":    item.SK,
		"title": item.DisplayTitle(),
	})

	duration, err := s.prober.Duration(ctx, item.HLSURL)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		s.metrics.ProbeFailures.Inc()
		logger.WithError(err).Debug("Skipping item, duration unavailable")
		return false
	}
	if duration >= s.cfg.ShortClipThreshold {
		return false
	}

	if err := s.client.DeleteFile(ctx, item); err != nil {
		if !backend.IsCancellation(err) {
			s.metrics.FetchErrors.WithLabelValues("sweep_delete").Inc()
			logger.WithError(err).Warn("Failed to delete short clip")
		}
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	s.mu.Lock()
	s.deleted.Add(item.SK)
	s.fetched = withoutItem(s.fetched, item.SK)
	s.reconcileLocked()
	s.unlockAndPersist()

	s.metrics.ShortClipsDeleted.Inc()
	logger.WithFields(logrus.Fields{
		"duration":  duration,
		"threshold": s.cfg.ShortClipThreshold,
	}).Info("Deleted short clip")
	return true
}
