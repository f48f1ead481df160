package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tevo-edu/recovery-api/internal/config"
	"github.com/tevo-edu/recovery-api/internal/handler"
	"github.com/tevo-edu/recovery-api/internal/middleware"
	"github.com/tevo-edu/recovery-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AdminRecoveryHandler   *handler.AdminRecoveryHandler
	TeacherRecoveryHandler *handler.TeacherRecoveryHandler
	StudentRecoveryHandler *handler.StudentRecoveryHandler
	LedgerHandler          *handler.LedgerHandler
	PromotionHandler       *handler.PromotionHandler
	JWTMiddleware          fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AdminRecoveryHandler != nil || deps.PromotionHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole("admin"))
		admin.Use(middleware.RateLimit("admin", 30, time.Minute))

		if deps.AdminRecoveryHandler != nil {
			deps.AdminRecoveryHandler.Register(admin)
		}
		if deps.PromotionHandler != nil {
			deps.PromotionHandler.Register(admin)
		}
	}

	if deps.TeacherRecoveryHandler != nil || deps.LedgerHandler != nil {
		teacher := api.Group("/teacher", jwtMiddleware, middleware.RequireRole("teacher", "admin"))

		if deps.TeacherRecoveryHandler != nil {
			deps.TeacherRecoveryHandler.Register(teacher)
		}
		if deps.LedgerHandler != nil {
			deps.LedgerHandler.Register(teacher)
		}
	}

	if deps.StudentRecoveryHandler != nil {
		student := api.Group("/student", jwtMiddleware, middleware.RequireRole("student", "admin"))
		deps.StudentRecoveryHandler.Register(student)
	}
}
