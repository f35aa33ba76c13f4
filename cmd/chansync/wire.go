//go:build wireinject
// +build wireinject

package main

import (
	"github.com/amaumene/chansync/internal/api"
	"github.com/amaumene/chansync/internal/config"
	"github.com/amaumene/chansync/internal/controllers"
	"github.com/amaumene/chansync/internal/metrics"
	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/services/backend"
	"github.com/amaumene/chansync/internal/services/probe"
	"github.com/google/wire"
)

var backendSet = wire.NewSet(
	backend.NewClient,
	wire.Bind(new(controllers.ContentBackend), new(*backend.Client)),
	wire.Bind(new(controllers.UserSearcher), new(*backend.Client)),
	wire.Bind(new(controllers.FollowBackend), new(*backend.Client)),
	wire.Bind(new(controllers.InboxBackend), new(*backend.Client)),
)

var storeSet = wire.NewSet(
	provideDatabase,
	wire.Bind(new(controllers.DraftStore), new(*models.Database)),
	wire.Bind(new(controllers.UsernameCache), new(*models.Database)),
)

var controllerSet = wire.NewSet(
	controllers.NewRegistry,
	controllers.NewInboxController,
	controllers.NewFollowController,
	controllers.NewSearchDebouncer,
	controllers.NewSession,
	wire.Bind(new(controllers.Notifier), new(*controllers.InboxController)),
	provideProber,
	wire.Bind(new(probe.Prober), new(*probe.FFprobe)),
)

func initializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		provideLogger,
		metrics.New,
		backendSet,
		storeSet,
		controllerSet,
		provideScheduler,
		api.NewServer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
