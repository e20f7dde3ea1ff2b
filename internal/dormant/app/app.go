package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/directory"
	httpapi "github.com/aussiebroadwan/dormant/internal/dormant/http"
	"github.com/aussiebroadwan/dormant/internal/dormant/service"
	"github.com/aussiebroadwan/dormant/internal/dormant/store"
	"github.com/aussiebroadwan/dormant/internal/dormant/store/drivers/flatfile"
	"github.com/aussiebroadwan/dormant/internal/dormant/store/drivers/sqlite"
	"github.com/aussiebroadwan/dormant/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the dormancy service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	lifecycleService    *service.LifecycleService
	resetService        *service.ResetService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "dormant",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	secret, err := LoadSecret(cfg.SecretFile)
	if err != nil {
		return nil, err
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	if err := app.initServices(secret); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("dormancy service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down dormancy service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("dormancy service stopped")
	return nil
}

// initStore initializes the configured storage driver.
func (app *Application) initStore() error {
	switch app.cfg.StoreDriver {
	case "flatfile", "":
		st, err := flatfile.NewStore(app.cfg.StateDir)
		if err != nil {
			return fmt.Errorf("failed to initialize flatfile store: %w", err)
		}
		app.db = st
		app.logger.Info("flatfile store ready", "dir", app.cfg.StateDir)

	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		st, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := st.ApplyMigrations(); err != nil {
			_ = st.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		app.db = st
		app.logger.Info("database migrations applied successfully")

	default:
		return fmt.Errorf("unknown store driver %q", app.cfg.StoreDriver)
	}
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices(secret []byte) error {
	tokens, err := service.NewTokenStrategy(
		app.cfg.TokenStrategy,
		secret,
		app.cfg.TokenWindow,
		app.cfg.TokenFutureDrift,
		app.db.ActionTokens(),
	)
	if err != nil {
		return err
	}

	dir := &directory.Shadow{Timeout: app.cfg.DirectoryTimeout}

	// One lock table across both services: a confirm and a reset for the
	// same user must serialise.
	locks := service.NewUserLocks()

	app.lifecycleService = &service.LifecycleService{
		Store:            app.db,
		Directory:        dir,
		Tokens:           tokens,
		Locks:            locks,
		TrackOptOut:      app.cfg.TrackOptOut,
		OpenDeactivate:   app.cfg.OpenDeactivate,
		NologinShell:     app.cfg.NologinShell,
		DirectoryTimeout: app.cfg.DirectoryTimeout,
	}

	app.resetService = &service.ResetService{
		Store:            app.db,
		Directory:        dir,
		Tokens:           tokens,
		Locks:            locks,
		LoginShell:       app.cfg.LoginShell,
		DirectoryTimeout: app.cfg.DirectoryTimeout,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.TokenWindow,
	)

	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)
	router.LifecycleService = app.lifecycleService
	router.ResetService = app.resetService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
