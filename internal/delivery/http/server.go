package http

import (
	"context"
	"time"

	"github.com/JhanXXX/webGIS-for-GVI/internal/config"
	"github.com/JhanXXX/webGIS-for-GVI/internal/delivery/http/handler"
	"github.com/JhanXXX/webGIS-for-GVI/internal/delivery/http/middleware"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Server struct {
	app    *fiber.App
	config *config.Config
	logger *zap.Logger

	gviHandler *handler.GVIHandler
}

func NewServer(cfg *config.Config, logger *zap.Logger, gviHandler *handler.GVIHandler) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "GVI Calculator",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: errorHandler(logger),
	})

	s := &Server{
		app:        app,
		config:     cfg,
		logger:     logger,
		gviHandler: gviHandler,
	}

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddlewares() {
	s.app.Use(middleware.Recovery())
	s.app.Use(middleware.Logger(s.logger))
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api/v1")

	api.Get("/health", s.gviHandler.Health)
	api.Post("/calculate_gvi", s.gviHandler.CalculateGVI)
	api.Post("/calculate_single_gvi", s.gviHandler.CalculateSingleGVI)
	api.Get("/model_info", s.gviHandler.ModelInfo)
	api.Get("/supported_features", s.gviHandler.SupportedFeatures)
	api.Get("/cache_stats", s.gviHandler.CacheStats)
	api.Get("/cache_preview/:key", s.gviHandler.CachePreview)
}

func (s *Server) Start() error {
	addr := s.config.ServerAddr()
	s.logger.Info("starting HTTP server", zap.String("address", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error("http error",
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
