// Package bootstrap assembles the generation engine shared by the server
// and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/config"
	"jan-server/services/mesh-api/internal/domain/generation"
	"jan-server/services/mesh-api/internal/domain/inference"
	"jan-server/services/mesh-api/internal/domain/preprocess"
	"jan-server/services/mesh-api/internal/domain/texture"
	"jan-server/services/mesh-api/internal/infrastructure/atlas"
	"jan-server/services/mesh-api/internal/infrastructure/glb"
	"jan-server/services/mesh-api/internal/infrastructure/raster"
	"jan-server/services/mesh-api/internal/infrastructure/rembg"
	"jan-server/services/mesh-api/internal/infrastructure/tsr"
)

// Engine holds the pipeline and the collaborator clients behind it.
type Engine struct {
	Pipeline *generation.Pipeline
	Rembg    *rembg.Client
	TSR      *tsr.Client
	Device   string
}

// NewClients builds the sidecar clients without touching the network.
func NewClients(cfg *config.Config, log zerolog.Logger) (*rembg.Client, *tsr.Client) {
	rembgClient := rembg.NewClient(cfg.RembgURL, cfg.RembgModel, cfg.RembgTimeout, log)
	tsrClient := tsr.NewClient(cfg.TSRURL, tsr.Options{
		Checkpoint: cfg.TSRCheckpoint,
		ChunkSize:  cfg.TSRChunkSize,
		Timeout:    cfg.TSRTimeout,
	}, log)
	return rembgClient, tsrClient
}

// NewEngine resolves the inference device once, configures the model server
// on it and wires the pipeline stages.
func NewEngine(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Engine, error) {
	rembgClient, tsrClient := NewClients(cfg, log)

	device := inference.ResolveDevice(ctx, cfg.TSRDevice, tsrClient)
	if !strings.EqualFold(device, strings.TrimSpace(cfg.TSRDevice)) {
		log.Warn().Str("requested", cfg.TSRDevice).Str("device", device).Msg("accelerator unavailable, falling back")
	}
	if err := tsrClient.Configure(ctx, device); err != nil {
		return nil, fmt.Errorf("configure shape model: %w", err)
	}

	exporter := glb.NewExporter()
	baker := texture.NewBaker(atlas.New(), raster.New(), exporter, cfg.TextureSize, log)
	adapter := inference.NewAdapter(tsrClient, inference.ParsePolicy(cfg.MultiViewFallback), device, log)
	pipeline := generation.NewPipeline(
		preprocess.NewPreprocessor(rembgClient, log),
		adapter,
		exporter,
		baker,
		log,
	)

	log.Info().
		Str("device", device).
		Str("multiview_fallback", string(adapter.Policy())).
		Int("texture_size", cfg.TextureSize).
		Msg("generation engine ready")

	return &Engine{
		Pipeline: pipeline,
		Rembg:    rembgClient,
		TSR:      tsrClient,
		Device:   device,
	}, nil
}
