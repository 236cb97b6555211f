package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/repositories"
	"storefront/internal/router"
	"storefront/internal/services"
	"storefront/internal/storage"
	"storefront/pkg/rabbitmq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
	logger.Info().Msg("server gracefully stopped")
}

// run serves HTTP until ctx is cancelled, then shuts down.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Address()).Msg("starting server")
		errCh <- a.app.Listen(cfg.Server.Address())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.app.ShutdownWithContext(shutdownCtx)
}

// application is the wired HTTP app plus the resources it holds.
type application struct {
	app     *fiber.App
	closers []func() error
	logger  zerolog.Logger
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Error().Err(err).Msg("failed to release resources")
		return err
	}
	return nil
}

// userStore holds accounts and the carts embedded in them.
type userStore interface {
	repositories.UserRepository
	repositories.CartRepository
}

// stores groups the repositories behind the services.
type stores struct {
	users    userStore
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	health   func(ctx context.Context) error
}

func newApplication(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *application, err error) {
	a := &application{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	st, err := a.openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	images, imagesDir, err := newImageStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher services.EventPublisher
	if cfg.RabbitMQ.Enabled {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
			Queue:    cfg.RabbitMQ.Queue,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, mq.Close)
		publisher = mq

		if err := mq.ConsumeOrderEvents(ctx, rabbitmq.LogOrderEvent(logger)); err != nil {
			logger.Warn().Err(err).Msg("failed to start order event consumer")
		}
	}

	hasher := services.NewPasswordHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency)
	authService := services.NewAuthService(st.users, hasher, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)
	cartService := services.NewCartService(st.users, st.products, logger)
	orderService := services.NewOrderService(st.orders, st.products, cartService, publisher, services.OrderOptions{
		Pricing:          services.PricingPolicy(cfg.Orders.PricingPolicy),
		ClearCartOnPlace: cfg.Orders.ClearCartOnPlace,
		Exchange:         cfg.RabbitMQ.Exchange,
	}, logger)

	a.app = router.New(router.Services{
		Auth:     authService,
		Products: services.NewProductService(st.products, images, logger),
		Carts:    cartService,
		Orders:   orderService,
	}, router.Options{
		Server:      cfg.Server,
		ImagesDir:   imagesDir,
		HealthCheck: st.health,
		Logger:      logger,
	})
	return a, nil
}

// openStores connects the configured database driver. The memory driver keeps
// everything in process and loses it on exit.
func (a *application) openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	policy := repositories.IDPolicy(cfg.Catalog.IDPolicy)

	if cfg.Database.Driver == "memory" {
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		return &stores{
			users:    repositories.NewMockUserRepository(),
			products: repositories.NewMockProductRepository(policy),
			orders:   repositories.NewMockOrderRepository(),
		}, nil
	}

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.closers = append(a.closers, func() error { return database.Close(db) })

	return &stores{
		users:    repositories.NewGORMUserRepository(db),
		products: repositories.NewGORMProductRepository(db, policy),
		orders:   repositories.NewGORMOrderRepository(db),
		health:   pinger(db),
	}, nil
}

func pinger(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// newImageStore returns the configured image store and, for local storage,
// the directory to serve under /images.
func newImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, string, error) {
	if cfg.Storage.Driver == "s3" {
		store, err := storage.NewS3Store(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	}

	store, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.Server.PublicBaseURL)
	if err != nil {
		return nil, "", err
	}
	return store, store.Dir(), nil
}
