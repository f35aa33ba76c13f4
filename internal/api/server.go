package api

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/chansync/internal/api/handlers"
	"github.com/amaumene/chansync/internal/api/middleware"
	"github.com/amaumene/chansync/internal/config"
	"github.com/amaumene/chansync/internal/controllers"
	"github.com/amaumene/chansync/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	app    *fiber.App
	addr   string
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg *config.Config,
	session *controllers.Session,
	registry *controllers.Registry,
	search *controllers.SearchDebouncer,
	follow *controllers.FollowController,
	inbox *controllers.InboxController,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
	})
	app.Use(middleware.Logging(logger))

	s := &Server{
		app:    app,
		addr:   ":" + cfg.ServerPort,
		logger: logger,
	}

	content := handlers.NewContentHandler(session, logger)
	status := handlers.NewStatusHandler(session, registry, follow, inbox, logger)
	social := handlers.NewSocialHandler(search, follow, inbox, logger)

	// Health and status
	app.Get("/health", handlers.Health)
	app.Get("/status", status.Status)
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	// Channel content
	app.Get("/content", content.List)
	app.Post("/refresh", content.Refresh)
	app.Post("/more", content.More)
	app.Put("/filter", content.Filter)
	app.Post("/drafts", content.CreateDraft)
	app.Delete("/drafts", content.DeleteDraft)
	app.Delete("/content/:sk", content.Delete)
	app.Put("/content/:sk", content.UpdateDetails)

	// Social
	app.Get("/search", social.Search)
	app.Get("/inbox", social.Inbox)
	app.Post("/inbox/:id/read", social.MarkRead)
	app.Get("/follow-requests", social.FollowRequests)
	app.Post("/follow-requests", social.AddUsername)
	app.Post("/follow-requests/:id/:action", social.RespondFollowRequest)

	return s
}

// App returns the underlying fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server and blocks until ctx is done
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}
