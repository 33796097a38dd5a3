package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/bootstrap"
	"jan-server/services/mesh-api/internal/config"
	"jan-server/services/mesh-api/internal/domain/generation"
	"jan-server/services/mesh-api/internal/infrastructure/jobstore"
	"jan-server/services/mesh-api/internal/infrastructure/logger"
	"jan-server/services/mesh-api/internal/infrastructure/observability"
	"jan-server/services/mesh-api/internal/infrastructure/storage"
	"jan-server/services/mesh-api/internal/interfaces/httpserver"
	"jan-server/services/mesh-api/internal/worker"
)

// @title Mesh API
// @version 1.0
// @description Image to 3D mesh generation with an async job lifecycle
// @BasePath /
type Application struct {
	httpServer *httpserver.HttpServer
	dispatcher *worker.Dispatcher
	cfg        *config.Config
	log        zerolog.Logger
}

func NewApplication(cfg *config.Config, httpServer *httpserver.HttpServer, dispatcher *worker.Dispatcher, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
	}
}

// Start serves HTTP until ctx is cancelled, then waits for running jobs.
func (a *Application) Start(ctx context.Context) error {
	serveErr := a.httpServer.Run(ctx)

	graceCtx, cancel := context.WithTimeout(context.Background(), a.cfg.JobShutdownGrace)
	defer cancel()
	if err := a.dispatcher.Shutdown(graceCtx); err != nil {
		a.log.Warn().Err(err).Msg("background jobs still running at shutdown")
	}
	return serveErr
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	app, err := buildApplication(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build application")
	}

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func buildApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, error) {
	workspace, err := storage.NewWorkspace(cfg, log)
	if err != nil {
		return nil, err
	}

	engine, err := bootstrap.NewEngine(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	mirror, err := storage.NewS3Mirror(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store := jobstore.Open(cfg.JobsSnapshot, log)
	runner := worker.NewRunner(engine.Pipeline, store, workspace, mirror, cfg.S3MirrorTimeout, log)
	dispatcher := worker.NewDispatcher(runner, log)

	service := generation.NewService(engine.Pipeline, store, dispatcher, workspace, newLimits(cfg), log)
	httpServer := httpserver.New(cfg, log, service, newReadinessChecks(workspace, engine, mirror))

	return NewApplication(cfg, httpServer, dispatcher, log), nil
}

func newLimits(cfg *config.Config) generation.Limits {
	return generation.Limits{
		MaxImages:     cfg.MaxImages,
		MaxImageBytes: cfg.MaxImageBytes,
	}
}

func newReadinessChecks(workspace *storage.Workspace, engine *bootstrap.Engine, mirror *storage.S3Mirror) map[string]httpserver.ReadinessCheck {
	checks := map[string]httpserver.ReadinessCheck{
		"workspace": func(context.Context) error { return workspace.Health() },
		"rembg":     engine.Rembg.Health,
		"tsr": func(ctx context.Context) error {
			_, err := engine.TSR.AcceleratorAvailable(ctx)
			return err
		},
	}
	if mirror.Enabled() {
		checks["s3"] = mirror.Health
	}
	return checks
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
