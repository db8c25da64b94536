package main

import (
	"time"

	"viterbi-notes/cmd/server/handlers"
	"viterbi-notes/cmd/server/handlers/httperr"
	notesHandlers "viterbi-notes/cmd/server/handlers/notes"
	"viterbi-notes/cmd/server/middlewares"
	"viterbi-notes/internal/config"
	"viterbi-notes/internal/logger"
	notesServices "viterbi-notes/internal/services/notes"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	RateLimitExpiration = 1 * time.Minute
)

// setupRouter configures and returns a Fiber app with all routes
func setupRouter(cfg config.Config, svc *notesServices.Service) *fiber.App {
	v := validator.New()

	app := fiber.New(fiber.Config{
		ErrorHandler: httperr.Handler,
		Immutable:    true, // make Fiber copy all request-derived strings
	})

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Content-Type, Authorization",
	}))

	if cfg.RouteMetricsEnabled {
		middlewares.AttachMetrics(app, svc.Stats)
	}

	// Health check endpoint, outside versioned API to appease scanners and to avoid logging
	app.Get("/healthz", handlers.Healthz(svc))

	var v1 fiber.Router
	if cfg.RequestLoggingEnabled {
		v1 = app.Group("/api/v1", fiberlogger.New())
		logger.L().Info("request logging enabled")
	} else {
		v1 = app.Group("/api/v1")
		logger.L().Info("request logging disabled")
	}

	jwtSecret := ""
	if cfg.AuthEnabled {
		jwtSecret = cfg.JWTSecret
		v1.Use(middlewares.JWT(jwtSecret))
		logger.L().Info("bearer auth enabled")
	}

	limiterMW := middlewares.BuildRateLimiter(cfg.WriteRatePerMin, RateLimitExpiration)

	notesH := notesHandlers.NewHandlers(svc, v)

	notesGrp := v1.Group("/notes", limiterMW)
	notesGrp.Get("/", notesH.List)
	notesGrp.Get("/count", notesH.Count)
	notesGrp.Get("/:id", notesH.Get)
	notesGrp.Post("/", notesH.Create)
	notesGrp.Put("/:id", notesH.Update)
	notesGrp.Delete("/:id", notesH.Delete)
	notesGrp.Post("/:id/favorite", notesH.ToggleFavorite)

	// WebSocket routes
	wsHandlers := notesHandlers.NewWebSocketHandlers(svc, jwtSecret, cfg.WSMaxSessionSec)
	app.Use("/ws", notesHandlers.LogWSConnections(jwtSecret))
	app.Get("/ws/notes/stream", wsHandlers.WSUpgrade, websocket.New(wsHandlers.WSNotesStream))

	return app
}
