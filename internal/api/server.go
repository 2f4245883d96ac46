package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"energy-queue/internal/config"
)

// Server represents the status HTTP server of an emitter or listener process.
type Server struct {
	app    *fiber.App
	config *config.HTTPConfig
	port   int
	logger *slog.Logger

	// Handlers
	statsHandler *StatsHandler
}

// ServerDeps contains all dependencies required to create a new Server.
type ServerDeps struct {
	Config       *config.HTTPConfig
	Port         int
	Logger       *slog.Logger
	StatsHandler *StatsHandler
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		config:       deps.Config,
		port:         deps.Port,
		logger:       deps.Logger,
		statsHandler: deps.StatsHandler,
	}

	s.app = fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable strict routing for consistency
		StrictRouting: true,
		// Case sensitive routing
		CaseSensitive: true,
		ReadTimeout:   deps.Config.ReadTimeout,
		WriteTimeout:  deps.Config.WriteTimeout,
		IdleTimeout:   deps.Config.IdleTimeout,
		ErrorHandler:  s.handleError,
	})

	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// registerMiddleware sets up all middleware for the server.
func (s *Server) registerMiddleware() {
	// Recovery middleware to handle panics
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware for tracing
	s.app.Use(requestid.New())

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
}

// registerRoutes sets up all routes.
func (s *Server) registerRoutes() {
	// Health check endpoint (outside versioned API)
	s.app.Get("/healthz", s.healthCheck)

	// Prometheus metrics endpoint
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	v1.Get("/stats", s.statsHandler.Get)
}

// healthCheck returns the health status of the service.
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return reply(c, s.statsHandler.service, map[string]string{
		"status": "healthy",
	})
}

// App exposes the fiber app for in-process requests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.config.Address(s.port)
	s.logger.Info("starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// handleError renders errors returned from handlers as a problem envelope.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return replyProblem(c, s.statsHandler.service, fe.Code, fe.Message)
	}

	s.logger.Error("request failed", "path", c.Path(), "error", err)
	return replyProblem(c, s.statsHandler.service, fiber.StatusInternalServerError, fmt.Sprintf("unexpected error: %v", err))
}
