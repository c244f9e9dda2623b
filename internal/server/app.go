// Package server wires the application together: configuration, database,
// object storage, services, and the HTTP endpoint, with graceful shutdown on
// OS signals.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/passman-project/passman/internal/logging"
	"github.com/passman-project/passman/internal/server/blob"
	"github.com/passman-project/passman/internal/server/config"
	"github.com/passman-project/passman/internal/server/httpapi"
	"github.com/passman-project/passman/internal/server/repositories/repomanager"
	"github.com/passman-project/passman/internal/server/services"
	"github.com/passman-project/passman/internal/suite"
)

// sweepInterval is how often expired challenge and session rows are purged.
const sweepInterval = 5 * time.Minute

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler http.Handler
	authn   *services.AuthService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := blob.NewS3Store(ctx, blob.S3Config{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	registry := suite.NewRegistry()

	aclSvc := services.NewAclService(db, manager, logger)
	authSvc := services.NewAuthService(db, manager, registry, cfg, logger)
	userSvc := services.NewUserService(db, manager, registry, aclSvc, logger)
	itemSvc := services.NewItemService(db, manager, registry, aclSvc, blobs, logger)

	handler := httpapi.New(cfg.ServerID, authSvc, userSvc, itemSvc, aclSvc, logger)

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		handler: handler,
		authn:   authSvc,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// startSweeper periodically purges expired challenge and session rows.
func (app *App) startSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := app.authn.Sweep(ctx); err != nil {
					app.logger.Warn(ctx, "sweep failed", "error", err)
				}
			}
		}
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)
	app.startSweeper(ctx)

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return app.db.Close()
}
