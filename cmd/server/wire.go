//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/bootstrap"
	"jan-server/services/mesh-api/internal/config"
	"jan-server/services/mesh-api/internal/domain/generation"
	"jan-server/services/mesh-api/internal/domain/job"
	"jan-server/services/mesh-api/internal/infrastructure/jobstore"
	"jan-server/services/mesh-api/internal/infrastructure/logger"
	"jan-server/services/mesh-api/internal/infrastructure/storage"
	"jan-server/services/mesh-api/internal/interfaces/httpserver"
	"jan-server/services/mesh-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/mesh-api/internal/worker"
)

var generationSet = wire.NewSet(
	storage.NewWorkspace,
	storage.NewS3Mirror,
	bootstrap.NewEngine,
	providePipeline,
	provideJobStore,
	wire.Bind(new(job.Store), new(*jobstore.MemoryStore)),
	wire.Bind(new(generation.PipelineRunner), new(*generation.Pipeline)),
	wire.Bind(new(generation.Scheduler), new(*worker.Dispatcher)),
	wire.Bind(new(generation.Workspace), new(*storage.Workspace)),
	wire.Bind(new(worker.InputCleaner), new(*storage.Workspace)),
	wire.Bind(new(worker.ArtifactMirror), new(*storage.S3Mirror)),
	wire.Bind(new(handlers.GenerationService), new(*generation.Service)),
	provideRunner,
	worker.NewDispatcher,
	newLimits,
	generation.NewService,
	newReadinessChecks,
)

// BuildApplication assembles the mesh API with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		generationSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func providePipeline(engine *bootstrap.Engine) *generation.Pipeline {
	return engine.Pipeline
}

func provideRunner(pipeline generation.PipelineRunner, store job.Store, cleaner worker.InputCleaner, mirror worker.ArtifactMirror, cfg *config.Config, log zerolog.Logger) *worker.Runner {
	return worker.NewRunner(pipeline, store, cleaner, mirror, cfg.S3MirrorTimeout, log)
}

func provideJobStore(cfg *config.Config, log zerolog.Logger) *jobstore.MemoryStore {
	return jobstore.Open(cfg.JobsSnapshot, log)
}
