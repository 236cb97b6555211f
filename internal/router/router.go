// Package router assembles the Fiber application serving the storefront API.
package router

import (
	"context"
	"time"

	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
)

// Services are the business services the routes delegate to.
type Services struct {
	Auth     *services.AuthService
	Products *services.ProductService
	Carts    *services.CartService
	Orders   *services.OrderService
}

// Options configures New.
type Options struct {
	Server config.ServerConfig
	// ImagesDir is served under /images when set.
	ImagesDir string
	// HealthCheck reports the state of the backing store on /health.
	HealthCheck func(ctx context.Context) error
	Logger      zerolog.Logger
}

// New builds the Fiber app with every route registered.
func New(svc Services, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "storefront",
		ReadTimeout:           opts.Server.ReadTimeout,
		WriteTimeout:          opts.Server.WriteTimeout,
		BodyLimit:             opts.Server.BodyLimit,
		ErrorHandler:          handlers.ErrorHandler(opts.Logger),
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(opts.Logger))
	app.Use(cors.New())

	if opts.ImagesDir != "" {
		app.Static("/images", opts.ImagesDir)
	}

	app.Get("/health", healthHandler(opts.HealthCheck))

	guards := handlers.Guards{
		User:  middleware.AuthRequired(svc.Auth),
		Admin: middleware.AdminRequired(svc.Auth),
	}

	api := app.Group("/api")
	api.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Storefront API is running")
	})

	productHandler := handlers.NewProductHandler(svc.Products)
	handlers.NewAuthHandler(svc.Auth).RegisterRoutes(api)
	productHandler.RegisterRoutes(api, guards)
	handlers.NewCartHandler(svc.Carts).RegisterRoutes(api, guards)
	handlers.NewOrderHandler(svc.Orders).RegisterRoutes(api, guards)
	productHandler.RegisterLegacyRoutes(app, guards)

	return app
}

func healthHandler(check func(ctx context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, code := "healthy", fiber.StatusOK
		store := "ok"
		if check != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				status, code = "degraded", fiber.StatusServiceUnavailable
				store = err.Error()
			}
		}
		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"database": store,
			"time":     time.Now().Format(time.RFC3339),
		})
	}
}
