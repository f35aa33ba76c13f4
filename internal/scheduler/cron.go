package scheduler

import (
	"context"
	"fmt"

	"github.com/amaumene/chansync/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Refresher is a process-wide resource refreshed on a schedule
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron   *cron.Cron
	follow Refresher
	inbox  Refresher
	cfg    *config.Config
	logger *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.Config, follow, inbox Refresher, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		follow: follow,
		inbox:  inbox,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	if _, err := s.cron.AddFunc(s.cfg.FollowRefreshSchedule, s.runFollowRefresh); err != nil {
		return fmt.Errorf("failed to add follow refresh job: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.InboxRefreshSchedule, s.runInboxRefresh); err != nil {
		return fmt.Errorf("failed to add inbox refresh job: %w", err)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"follow_schedule": s.cfg.FollowRefreshSchedule,
		"inbox_schedule":  s.cfg.InboxRefreshSchedule,
	}).Info("Scheduler started")

	// Run both jobs immediately
	go func() {
		s.runFollowRefresh()
		s.runInboxRefresh()
	}()

	return nil
}

// Stop stops the scheduler and cancels running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
}

// runFollowRefresh executes the follow-request refresh job
func (s *Scheduler) runFollowRefresh() {
	s.logger.Debug("Running scheduled follow refresh")
	if err := s.follow.Refresh(s.ctx); err != nil && s.ctx.Err() == nil {
		s.logger.WithError(err).Error("Follow refresh job failed")
	}
}

// runInboxRefresh executes the notification inbox refresh job
func (s *Scheduler) runInboxRefresh() {
	s.logger.Debug("Running scheduled inbox refresh")
	if err := s.inbox.Refresh(s.ctx); err != nil && s.ctx.Err() == nil {
		s.logger.WithError(err).Error("Inbox refresh job failed")
	}
}
