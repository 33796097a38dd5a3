package generation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"jan-server/services/mesh-api/internal/domain/inference"
	"jan-server/services/mesh-api/internal/domain/mesh"
	"jan-server/services/mesh-api/internal/domain/preprocess"
	"jan-server/services/mesh-api/internal/infrastructure/metrics"
	"jan-server/services/mesh-api/internal/infrastructure/observability"
)

// ImagePreprocessor normalizes input images for the model.
type ImagePreprocessor interface {
	PreprocessBatch(ctx context.Context, sources []preprocess.Source) ([]preprocess.NormalizedImage, error)
}

// ShapeReconstructor infers a scene and extracts meshes from it.
type ShapeReconstructor interface {
	Infer(ctx context.Context, images []preprocess.NormalizedImage) (inference.SceneRepresentation, error)
	Extract(ctx context.Context, scene inference.SceneRepresentation, resolution int, threshold float64) ([]*mesh.Mesh, error)
}

// MeshExporter writes a vertex-coloured mesh to a model file.
type MeshExporter interface {
	Export(path string, m *mesh.Mesh) error
}

// TextureBaker bakes vertex colour into a textured model, returning "" when
// baking did not produce a file.
type TextureBaker interface {
	TryBake(ctx context.Context, m *mesh.Mesh, outputDir, base string) string
}

// PipelineRunner runs one generation into an output directory.
type PipelineRunner interface {
	Run(ctx context.Context, images []ImageSource, outputDir string, params Params) (string, error)
}

// Pipeline sequences preprocessing, inference, extraction, smoothing, export
// and optional baking.
type Pipeline struct {
	preprocessor ImagePreprocessor
	model        ShapeReconstructor
	exporter     MeshExporter
	baker        TextureBaker
	log          zerolog.Logger
}

// NewPipeline creates a Pipeline. baker may be nil, which disables baking.
func NewPipeline(preprocessor ImagePreprocessor, model ShapeReconstructor, exporter MeshExporter, baker TextureBaker, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		preprocessor: preprocessor,
		model:        model,
		exporter:     exporter,
		baker:        baker,
		log:          log.With().Str("component", "pipeline").Logger(),
	}
}

// Run generates meshes from images into outputDir. Every mesh is exported as
// model_<i>.glb; the returned path is the first mesh's final file, or "" when
// extraction produced nothing.
func (p *Pipeline) Run(ctx context.Context, images []ImageSource, outputDir string, params Params) (string, error) {
	ctx, span := observability.StartStageSpan(ctx, "run",
		attribute.Int("images", len(images)),
		attribute.Int("resolution", params.Resolution),
		attribute.Bool("texture_bake", params.TextureBake),
	)
	defer span.End()

	path, err := p.run(ctx, images, outputDir, params)
	if err != nil {
		observability.RecordError(span, err, "error")
		return "", err
	}
	return path, nil
}

func (p *Pipeline) run(ctx context.Context, images []ImageSource, outputDir string, params Params) (string, error) {
	if len(images) == 0 {
		return "", ErrNoImages
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	normalized, err := p.preprocessor.PreprocessBatch(ctx, images)
	if err != nil {
		return "", fmt.Errorf("preprocess: %w", err)
	}

	scene, err := p.model.Infer(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("inference: %w", err)
	}

	meshes, err := p.model.Extract(ctx, scene, params.Resolution, params.Threshold)
	if err != nil {
		return "", err
	}
	if len(meshes) == 0 {
		p.log.Warn().Msg("extraction produced no meshes")
		return "", nil
	}

	var first string
	for i, m := range meshes {
		final, err := p.finish(ctx, m, outputDir, i, params)
		if err != nil {
			return "", err
		}
		if i == 0 {
			first = final
		}
	}
	return first, nil
}

func (p *Pipeline) finish(ctx context.Context, m *mesh.Mesh, outputDir string, index int, params Params) (string, error) {
	base := fmt.Sprintf("model_%d", index)
	log := p.log.With().Str("mesh", base).Logger()

	p.smooth(ctx, m, params.Smoothing, log)

	started := time.Now()
	path := filepath.Join(outputDir, base+".glb")
	err := p.exporter.Export(path, m)
	metrics.RecordStage("export", err, time.Since(started).Seconds())
	if err != nil {
		return "", fmt.Errorf("export %s: %w", base, err)
	}
	log.Info().
		Int("vertices", len(m.Vertices)).
		Int("faces", len(m.Faces)).
		Str("path", path).
		Msg("mesh exported")

	if !params.TextureBake || p.baker == nil {
		return path, nil
	}
	baked := p.baker.TryBake(ctx, m, outputDir, base)
	if baked == "" {
		return path, nil
	}
	if _, err := os.Stat(baked); err != nil {
		log.Warn().Err(err).Str("path", baked).Msg("baked model missing, keeping vertex-colored mesh")
		return path, nil
	}
	return baked, nil
}

func (p *Pipeline) smooth(ctx context.Context, m *mesh.Mesh, profile SmoothingProfile, log zerolog.Logger) {
	if profile.Iterations <= 0 {
		return
	}
	_, span := observability.StartStageSpan(ctx, "smooth", attribute.Int("iterations", profile.Iterations))
	defer span.End()
	started := time.Now()

	err := mesh.Smooth(m, profile.Iterations, profile.Lambda)
	metrics.RecordStage("smooth", err, time.Since(started).Seconds())
	if err != nil {
		log.Warn().Err(err).Msg("smoothing failed, continuing with unsmoothed mesh")
		metrics.RecordFallback(metrics.FallbackSmoothingFailed)
		observability.AddFallbackEvent(span, metrics.FallbackSmoothingFailed, err.Error())
	}
}
