package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/solvearc/solvearc-api/internal/config"
	"github.com/solvearc/solvearc-api/internal/handler"
	"github.com/solvearc/solvearc-api/internal/middleware"
	"github.com/solvearc/solvearc-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler   *handler.SubmissionHandler
	EnrollmentHandler   *handler.EnrollmentHandler
	SetAnalyticsHandler *handler.SetAnalyticsHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		// Rapid resubmission (double-click) is expected; the limiter bounds
		// judge load per user, the slot upsert keeps the writes consistent.
		submissions.Use(middleware.RateLimit("submissions", 10, time.Minute))
		deps.SubmissionHandler.Register(submissions)
	}

	if deps.EnrollmentHandler != nil || deps.SetAnalyticsHandler != nil {
		sets := api.Group("/problem-sets", jwtMiddleware)
		if deps.EnrollmentHandler != nil {
			deps.EnrollmentHandler.Register(sets)
		}
		if deps.SetAnalyticsHandler != nil {
			analytics := sets.Group("", middleware.RequireRole("teacher", "admin"))
			deps.SetAnalyticsHandler.Register(analytics)
		}
	}
}
