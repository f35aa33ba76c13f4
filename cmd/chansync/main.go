package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amaumene/chansync/internal/config"
	"github.com/amaumene/chansync/internal/tracing"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "chansync",
		Short:         "Keeps a channel's content list in sync with the backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.String("channel", "", "channel name")
	flags.String("mode", "", "channel mode (standard or aggregated)")
	flags.String("log-level", "", "log level")
	flags.String("port", "", "HTTP server port")

	bindings := map[string]string{
		"CHANNEL_NAME": "channel",
		"CHANNEL_MODE": "mode",
		"LOG_LEVEL":    "log-level",
		"SERVER_PORT":  "port",
	}
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "watch",
			Short: "Load the channel and keep it in sync until interrupted",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWatch(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print the reconciled first page as JSON",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runList(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Delete short clips from the first page once",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSweep(cmd.Context())
			},
		},
	)
	return root
}

// setup loads configuration and builds the application
func setup(oneShot bool) (*App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if oneShot {
		// One-shot commands run without background pollers
		cfg.ShortClipCleanup = false
		cfg.RefreshInitialDelay = 24 * time.Hour
	}

	app, cleanup, err := initializeApp(cfg)
	if err != nil {
		return nil, nil, err
	}

	shutdownTracing := tracing.Setup(cfg.TraceSampleRatio, app.Logger)
	teardown := func() {
		app.Search.Close()
		app.Session.Close()
		app.Registry.Close()
		if err := shutdownTracing(context.Background()); err != nil {
			app.Logger.WithError(err).Warn("Failed to flush traces")
		}
		cleanup()
	}
	return app, teardown, nil
}

func runWatch(parent context.Context) error {
	app, teardown, err := setup(false)
	if err != nil {
		return err
	}
	defer teardown()

	logger := app.Logger
	logger.WithFields(logrus.Fields{
		"channel": app.Config.ChannelName,
		"mode":    app.Config.ChannelMode,
	}).Info("Starting chansync")

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A failed first load is not fatal, POST /refresh retries it
	if err := app.Session.LoadInitial(ctx); err != nil {
		logger.WithError(err).Error("Initial load failed")
	}

	if err := app.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer app.Scheduler.Stop()

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- app.Server.Start(ctx)
	}()

	logger.Info("chansync is running")

	select {
	case err := <-serverErrChan:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
		if err := <-serverErrChan; err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("chansync stopped")
	return nil
}

func runList(parent context.Context) error {
	app, teardown, err := setup(true)
	if err != nil {
		return err
	}
	defer teardown()

	if err := app.Session.LoadInitial(parent); err != nil {
		return fmt.Errorf("failed to load channel: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(app.Session.Snapshot())
}

func runSweep(ctx context.Context) error {
	app, teardown, err := setup(true)
	if err != nil {
		return err
	}
	defer teardown()

	if err := app.Session.LoadInitial(ctx); err != nil {
		return fmt.Errorf("failed to load channel: %w", err)
	}

	deleted := app.Session.SweepShortClips(ctx)
	app.Logger.WithField("deleted", deleted).Info("Short clip sweep finished")
	return nil
}
