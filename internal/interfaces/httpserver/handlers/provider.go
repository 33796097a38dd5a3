package handlers

import (
	"context"

	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/config"
	"jan-server/services/mesh-api/internal/domain/generation"
	"jan-server/services/mesh-api/internal/domain/job"
)

// GenerationService is the boundary the HTTP handlers drive.
type GenerationService interface {
	Generate(ctx context.Context, req generation.Request) (string, error)
	Submit(ctx context.Context, req generation.Request) (*job.Job, error)
	Status(id string) (*job.Job, error)
	Result(id string) (string, error)
	List(limit int) []job.Job
}

var _ GenerationService = (*generation.Service)(nil)

// Provider wires HTTP handlers.
type Provider struct {
	Generation *GenerationHandler
	Jobs       *JobHandler
}

func NewProvider(cfg *config.Config, service GenerationService, log zerolog.Logger) *Provider {
	return &Provider{
		Generation: NewGenerationHandler(cfg, service, log),
		Jobs:       NewJobHandler(cfg, service, log),
	}
}
