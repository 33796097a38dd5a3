// Package preprocess turns raw input photos into the normalized,
// background-free frames the shape model expects.
package preprocess

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"jan-server/services/mesh-api/internal/infrastructure/metrics"
	"jan-server/services/mesh-api/internal/infrastructure/observability"
)

// DefaultForegroundRatio is the share of the frame the foreground occupies after resizing.
const DefaultForegroundRatio = 0.85

// BackgroundRemover cuts the subject out of an image and returns it with an
// alpha channel. Implementations are safe for concurrent use.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, img image.Image) (*image.NRGBA, error)
}

// NormalizedImage is a square, opaque RGB frame with the subject centred.
type NormalizedImage struct {
	img *image.NRGBA
}

// NewNormalizedImage wraps an already normalized frame.
func NewNormalizedImage(img *image.NRGBA) NormalizedImage {
	return NormalizedImage{img: img}
}

// Image returns the frame.
func (n NormalizedImage) Image() image.Image {
	return n.img
}

// Size returns the frame edge length in pixels.
func (n NormalizedImage) Size() int {
	if n.img == nil {
		return 0
	}
	return n.img.Bounds().Dx()
}

// Preprocessor runs decode, background removal, recentring and compositing.
type Preprocessor struct {
	remover BackgroundRemover
	ratio   float64
	log     zerolog.Logger
}

// NewPreprocessor creates a Preprocessor using the default foreground ratio.
func NewPreprocessor(remover BackgroundRemover, log zerolog.Logger) *Preprocessor {
	return &Preprocessor{
		remover: remover,
		ratio:   DefaultForegroundRatio,
		log:     log.With().Str("component", "preprocess").Logger(),
	}
}

// Preprocess normalizes one source image.
func (p *Preprocessor) Preprocess(ctx context.Context, src Source) (NormalizedImage, error) {
	ctx, span := observability.StartStageSpan(ctx, "preprocess")
	defer span.End()
	started := time.Now()

	out, err := p.preprocess(ctx, src)
	metrics.RecordStage("preprocess", err, time.Since(started).Seconds())
	if err != nil {
		observability.RecordError(span, err, "error")
		return NormalizedImage{}, err
	}
	return out, nil
}

func (p *Preprocessor) preprocess(ctx context.Context, src Source) (NormalizedImage, error) {
	data, err := src.Bytes()
	if err != nil {
		return NormalizedImage{}, err
	}
	decoded, err := Decode(data)
	if err != nil {
		return NormalizedImage{}, fmt.Errorf("%s: %w", sourceLabel(src), err)
	}

	cutout, err := p.remover.RemoveBackground(ctx, decoded)
	if err != nil {
		return NormalizedImage{}, fmt.Errorf("remove background from %s: %w", sourceLabel(src), err)
	}

	framed, err := ResizeForeground(cutout, p.ratio)
	if err != nil {
		return NormalizedImage{}, fmt.Errorf("%s: %w", sourceLabel(src), err)
	}

	p.log.Debug().
		Str("source", sourceLabel(src)).
		Int("size", framed.Bounds().Dx()).
		Msg("image preprocessed")
	return NormalizedImage{img: CompositeOnGray(framed)}, nil
}

// PreprocessBatch normalizes every source concurrently. Output order matches
// input order; the first failure cancels the rest.
func (p *Preprocessor) PreprocessBatch(ctx context.Context, sources []Source) ([]NormalizedImage, error) {
	out := make([]NormalizedImage, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			img, err := p.Preprocess(gctx, src)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func sourceLabel(src Source) string {
	if src.Name != "" {
		return src.Name
	}
	if src.Path != "" {
		return src.Path
	}
	return "image"
}
