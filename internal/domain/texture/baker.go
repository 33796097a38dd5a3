// Package texture bakes per-vertex colour into a UV-mapped texture image.
package texture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"jan-server/services/mesh-api/internal/domain/mesh"
	"jan-server/services/mesh-api/internal/infrastructure/metrics"
	"jan-server/services/mesh-api/internal/infrastructure/observability"
)

// DefaultSize is the edge length of the baked texture.
const DefaultSize = 1024

// ErrNoVertexColors is returned when there is nothing to bake.
var ErrNoVertexColors = errors.New("mesh has no vertex colors")

// Unwrapper produces a UV atlas. Generate is the primary chart-based
// unwrap; Parametrize is the lower-level alternate.
type Unwrapper interface {
	Generate(ctx context.Context, m *mesh.Mesh) (*mesh.Atlas, error)
	Parametrize(ctx context.Context, m *mesh.Mesh) (*mesh.Atlas, error)
}

// RasterPass describes one colour draw into a square offscreen target.
type RasterPass struct {
	UVs       [][2]float32
	Indices   [][3]int32
	Colors    [][4]float32
	Size      int
	DepthTest bool
}

// Rasterizer draws a pass and returns Size*Size float RGBA pixels with rows
// ordered bottom-up.
type Rasterizer interface {
	Rasterize(ctx context.Context, pass RasterPass) ([]float32, error)
}

// TexturedExporter writes a textured mesh to a model file.
type TexturedExporter interface {
	ExportTextured(path string, m *mesh.TexturedMesh) error
}

// Baker runs unwrap, colour resampling and rasterization, then exports the
// baked model next to its albedo texture.
type Baker struct {
	unwrapper  Unwrapper
	rasterizer Rasterizer
	exporter   TexturedExporter
	size       int
	log        zerolog.Logger
}

// NewBaker creates a Baker. A non-positive size selects DefaultSize.
func NewBaker(unwrapper Unwrapper, rasterizer Rasterizer, exporter TexturedExporter, size int, log zerolog.Logger) *Baker {
	if size <= 0 {
		size = DefaultSize
	}
	return &Baker{
		unwrapper:  unwrapper,
		rasterizer: rasterizer,
		exporter:   exporter,
		size:       size,
		log:        log.With().Str("component", "texture_baker").Logger(),
	}
}

// Bake writes <base>_albedo.png and <base>_baked.glb into outputDir and
// returns the baked model path.
func (b *Baker) Bake(ctx context.Context, m *mesh.Mesh, outputDir, base string) (string, error) {
	if !m.HasColors() {
		return "", ErrNoVertexColors
	}
	if err := m.Validate(); err != nil {
		return "", err
	}

	atlas, err := b.unwrap(ctx, m)
	if err != nil {
		return "", err
	}

	colors, err := mesh.Resample(m.Colors, atlas.Mapping)
	if err != nil {
		return "", fmt.Errorf("resample colors: %w", err)
	}

	texture, err := b.rasterize(ctx, atlas, colors)
	if err != nil {
		return "", err
	}

	texturePath := filepath.Join(outputDir, base+"_albedo.png")
	if err := savePNG(texturePath, texture); err != nil {
		return "", err
	}

	bakedPath := filepath.Join(outputDir, base+"_baked.glb")
	baked := &mesh.TexturedMesh{
		Vertices: atlas.Vertices,
		Faces:    atlas.Faces,
		UVs:      atlas.UVs,
		Texture:  texture,
	}
	if err := b.exporter.ExportTextured(bakedPath, baked); err != nil {
		return "", fmt.Errorf("export baked mesh: %w", err)
	}
	return bakedPath, nil
}

// TryBake runs Bake and never fails. It returns "" when baking was skipped,
// went wrong or panicked.
func (b *Baker) TryBake(ctx context.Context, m *mesh.Mesh, outputDir, base string) string {
	ctx, span := observability.StartStageSpan(ctx, "bake", attribute.String("base", base))
	defer span.End()
	started := time.Now()

	path, err := b.bakeRecovered(ctx, m, outputDir, base)
	metrics.RecordStage("bake", err, time.Since(started).Seconds())
	switch {
	case errors.Is(err, ErrNoVertexColors):
		b.log.Warn().Str("base", base).Msg("mesh has no vertex colors, skipping texture bake")
		metrics.RecordFallback(metrics.FallbackBakeSkipped)
		observability.AddFallbackEvent(span, metrics.FallbackBakeSkipped, err.Error())
		return ""
	case err != nil:
		b.log.Error().Err(err).Str("base", base).Msg("texture bake failed, keeping vertex-colored mesh")
		metrics.RecordFallback(metrics.FallbackBakeFailed)
		observability.RecordError(span, err, "warning")
		return ""
	}
	return path
}

// bakeRecovered turns a panic anywhere in the bake chain into an error.
func (b *Baker) bakeRecovered(ctx context.Context, m *mesh.Mesh, outputDir, base string) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			path, err = "", fmt.Errorf("texture bake panicked: %v", r)
		}
	}()
	return b.Bake(ctx, m, outputDir, base)
}

func (b *Baker) unwrap(ctx context.Context, m *mesh.Mesh) (*mesh.Atlas, error) {
	atlas, err := b.unwrapper.Generate(ctx, m)
	if err == nil {
		err = atlas.Validate()
	}
	if err == nil {
		return atlas, nil
	}

	b.log.Warn().Err(err).Msg("atlas generation failed, using parametrize")
	metrics.RecordFallback(metrics.FallbackUnwrapParametrize)
	atlas, err = b.unwrapper.Parametrize(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("uv unwrap: %w", err)
	}
	if err := atlas.Validate(); err != nil {
		return nil, fmt.Errorf("uv unwrap: %w", err)
	}
	return atlas, nil
}

func (b *Baker) rasterize(ctx context.Context, atlas *mesh.Atlas, colors [][3]float32) (*image.NRGBA, error) {
	rgba := make([][4]float32, len(colors))
	for i, c := range colors {
		rgba[i] = [4]float32{c[0], c[1], c[2], 1}
	}

	pixels, err := b.rasterizer.Rasterize(ctx, RasterPass{
		UVs:       atlas.UVs,
		Indices:   atlas.Faces,
		Colors:    rgba,
		Size:      b.size,
		DepthTest: true,
	})
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	return ToImage(pixels, b.size)
}

// ToImage converts bottom-up float RGBA rows into a top-down 8-bit image,
// scaling by 255 and clamping to [0,255].
func ToImage(pixels []float32, size int) (*image.NRGBA, error) {
	if size <= 0 || len(pixels) != size*size*4 {
		return nil, fmt.Errorf("rasterizer returned %d floats for a %dx%d target", len(pixels), size, size)
	}
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for row := 0; row < size; row++ {
		y := size - 1 - row
		for x := 0; x < size; x++ {
			i := (row*size + x) * 4
			img.SetNRGBA(x, y, color.NRGBA{
				R: clampByte(pixels[i]),
				G: clampByte(pixels[i+1]),
				B: clampByte(pixels[i+2]),
				A: clampByte(pixels[i+3]),
			})
		}
	}
	return img, nil
}

func clampByte(v float32) uint8 {
	v *= 255
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create texture file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode texture: %w", err)
	}
	return f.Close()
}
