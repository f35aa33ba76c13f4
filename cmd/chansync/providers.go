package main

import (
	"fmt"

	"github.com/amaumene/chansync/internal/api"
	"github.com/amaumene/chansync/internal/config"
	"github.com/amaumene/chansync/internal/controllers"
	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/scheduler"
	"github.com/amaumene/chansync/internal/services/probe"
	"github.com/amaumene/chansync/internal/utils"
	"github.com/sirupsen/logrus"
)

// App holds the long-lived components of a running client
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Registry  *controllers.Registry
	Session   *controllers.Session
	Search    *controllers.SearchDebouncer
	Scheduler *scheduler.Scheduler
	Server    *api.Server
}

func provideLogger(cfg *config.Config) *logrus.Logger {
	return utils.NewLogger(cfg.LogLevel)
}

func provideDatabase(cfg *config.Config, logger *logrus.Logger) (*models.Database, func(), error) {
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.WithField("path", cfg.DatabaseFile).Info("Database initialized")

	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}
	return db, cleanup, nil
}

func provideProber(cfg *config.Config, logger *logrus.Logger) *probe.FFprobe {
	return probe.NewFFprobe(cfg.FFprobePath, logger)
}

func provideScheduler(
	cfg *config.Config,
	follow *controllers.FollowController,
	inbox *controllers.InboxController,
	logger *logrus.Logger,
) *scheduler.Scheduler {
	return scheduler.NewScheduler(cfg, follow, inbox, logger)
}
