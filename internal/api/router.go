package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"

	"github.com/fineme-ai/fineme/internal/api/docs"
	"github.com/fineme-ai/fineme/internal/api/handler"
	"github.com/fineme-ai/fineme/internal/api/middleware"
)

// Dependencies aggregates the service-layer handles the router needs
type Dependencies struct {
	MatchService  handler.MatchService
	HealthChecker handler.HealthChecker
}

type Router struct {
	app    *fiber.App
	logger *slog.Logger
	deps   *Dependencies
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "FineMe API",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	// Health check endpoints
	var checker handler.HealthChecker
	if r.deps != nil {
		checker = r.deps.HealthChecker
	}
	healthHandler := handler.NewHealthHandler(checker)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	// API v1 group
	v1 := r.app.Group("/v1")

	if r.deps != nil && r.deps.MatchService != nil {
		identityHandler := handler.NewIdentityHandler(r.deps.MatchService, r.logger)

		v1.Post("/identities", identityHandler.Enroll)
		v1.Post("/matches", identityHandler.Match)
	}
}

// Listen starts the HTTP server on addr
func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

// Shutdown gracefully stops the server
func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}

// App exposes the underlying fiber app for tests
func (r *Router) App() *fiber.App {
	return r.app
}
