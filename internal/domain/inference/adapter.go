package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"jan-server/services/mesh-api/internal/domain/mesh"
	"jan-server/services/mesh-api/internal/domain/preprocess"
	"jan-server/services/mesh-api/internal/infrastructure/metrics"
	"jan-server/services/mesh-api/internal/infrastructure/observability"
)

// Adapter runs batches through the Model on a fixed device.
type Adapter struct {
	model  Model
	policy Policy
	device string
	log    zerolog.Logger
}

// NewAdapter creates an Adapter. device should already be resolved with ResolveDevice.
func NewAdapter(model Model, policy Policy, device string, log zerolog.Logger) *Adapter {
	if device == "" {
		device = DeviceCPU
	}
	return &Adapter{
		model:  model,
		policy: policy,
		device: device,
		log:    log.With().Str("component", "inference").Logger(),
	}
}

// Device returns the device inference runs on.
func (a *Adapter) Device() string {
	return a.device
}

// Policy returns the multi-view fallback policy.
func (a *Adapter) Policy() Policy {
	return a.policy
}

// Infer turns normalized images into one scene representation. A rejected
// multi-view batch is either retried with the first image or reported as
// ErrMultiViewUnsupported, depending on the policy.
func (a *Adapter) Infer(ctx context.Context, images []preprocess.NormalizedImage) (SceneRepresentation, error) {
	if len(images) == 0 {
		return SceneRepresentation{}, fmt.Errorf("infer: no images")
	}
	ctx, span := observability.StartStageSpan(ctx, "infer",
		attribute.Int("images", len(images)),
		attribute.String("device", a.device),
	)
	defer span.End()
	started := time.Now()

	batch := make([]image.Image, len(images))
	for i, img := range images {
		batch[i] = img.Image()
	}

	scene, err := a.model.Infer(ctx, batch, a.device)
	if err != nil && len(batch) > 1 && errors.Is(err, ErrIncompatibleArguments) {
		if a.policy != PolicyFirst {
			err = fmt.Errorf("%w: %d images were supplied; set TRIPOSR_MULTIVIEW_FALLBACK=first to reconstruct from the first image only: %v",
				ErrMultiViewUnsupported, len(batch), err)
		} else {
			a.log.Warn().
				Int("images", len(batch)).
				Err(err).
				Msg("multi-view batch rejected, falling back to first image")
			metrics.RecordFallback(metrics.FallbackMultiViewFirst)
			observability.AddFallbackEvent(span, metrics.FallbackMultiViewFirst, err.Error())
			scene, err = a.model.Infer(ctx, batch[:1], a.device)
		}
	}

	metrics.RecordStage("infer", err, time.Since(started).Seconds())
	if err != nil {
		observability.RecordError(span, err, "error")
		return SceneRepresentation{}, err
	}
	return scene, nil
}

// Extract pulls meshes with vertex colour out of a scene.
func (a *Adapter) Extract(ctx context.Context, scene SceneRepresentation, resolution int, threshold float64) ([]*mesh.Mesh, error) {
	ctx, span := observability.StartStageSpan(ctx, "extract",
		attribute.Int("resolution", resolution),
		attribute.Float64("threshold", threshold),
	)
	defer span.End()
	started := time.Now()

	raw, err := a.model.ExtractMesh(ctx, scene, true, resolution, threshold)
	metrics.RecordStage("extract", err, time.Since(started).Seconds())
	if err != nil {
		observability.RecordError(span, err, "error")
		return nil, fmt.Errorf("extract mesh: %w", err)
	}

	meshes := make([]*mesh.Mesh, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		meshes = append(meshes, r.Normalize())
	}
	span.SetAttributes(attribute.Int("meshes", len(meshes)))
	return meshes, nil
}
