package texture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/mesh-api/internal/domain/mesh"
)

type MockUnwrapper struct {
	GenerateFunc    func(ctx context.Context, m *mesh.Mesh) (*mesh.Atlas, error)
	ParametrizeFunc func(ctx context.Context, m *mesh.Mesh) (*mesh.Atlas, error)
	parametrized    bool
}

func (u *MockUnwrapper) Generate(ctx context.Context, m *mesh.Mesh) (*mesh.Atlas, error) {
	return u.GenerateFunc(ctx, m)
}

func (u *MockUnwrapper) Parametrize(ctx context.Context, m *mesh.Mesh) (*mesh.Atlas, error) {
	u.parametrized = true
	return u.ParametrizeFunc(ctx, m)
}

type MockRasterizer struct {
	RasterizeFunc func(ctx context.Context, pass RasterPass) ([]float32, error)
	lastPass      RasterPass
}

func (r *MockRasterizer) Rasterize(ctx context.Context, pass RasterPass) ([]float32, error) {
	r.lastPass = pass
	return r.RasterizeFunc(ctx, pass)
}

type MockExporter struct {
	ExportTexturedFunc func(path string, m *mesh.TexturedMesh) error
}

func (e *MockExporter) ExportTextured(path string, m *mesh.TexturedMesh) error {
	return e.ExportTexturedFunc(path, m)
}

func triangle() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:    [][3]int32{{0, 1, 2}},
		Colors:   [][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	}
}

// seamAtlas duplicates vertex 0 so the mapping is not the identity.
func seamAtlas() *mesh.Atlas {
	return &mesh.Atlas{
		Vertices: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 0}},
		Faces:    [][3]int32{{3, 1, 2}},
		UVs:      [][2]float32{{0, 0}, {1, 0}, {0, 1}, {0, 0}},
		Mapping:  []int32{0, 1, 2, 0},
	}
}

func solidPixels(size int, r, g, b float32) []float32 {
	out := make([]float32, size*size*4)
	for i := 0; i < len(out); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = r, g, b, 1
	}
	return out
}

func writingExporter() *MockExporter {
	return &MockExporter{ExportTexturedFunc: func(path string, _ *mesh.TexturedMesh) error {
		return os.WriteFile(path, []byte("glb"), 0o644)
	}}
}

func TestBake_WritesTextureAndModel(t *testing.T) {
	dir := t.TempDir()
	unwrapper := &MockUnwrapper{GenerateFunc: func(context.Context, *mesh.Mesh) (*mesh.Atlas, error) {
		return seamAtlas(), nil
	}}
	rasterizer := &MockRasterizer{RasterizeFunc: func(_ context.Context, pass RasterPass) ([]float32, error) {
		return solidPixels(pass.Size, 0.5, 0.5, 0.5), nil
	}}
	var exported *mesh.TexturedMesh
	exporter := &MockExporter{ExportTexturedFunc: func(path string, m *mesh.TexturedMesh) error {
		exported = m
		return os.WriteFile(path, []byte("glb"), 0o644)
	}}
	baker := NewBaker(unwrapper, rasterizer, exporter, 8, zerolog.Nop())

	path, err := baker.Bake(context.Background(), triangle(), dir, "model_0")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "model_0_baked.glb"), path)
	assert.FileExists(t, filepath.Join(dir, "model_0_albedo.png"))
	assert.False(t, unwrapper.parametrized)

	// seam vertex 3 takes the colour of source vertex 0
	require.Len(t, rasterizer.lastPass.Colors, 4)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, rasterizer.lastPass.Colors[3])
	assert.True(t, rasterizer.lastPass.DepthTest)
	assert.Equal(t, 8, rasterizer.lastPass.Size)

	require.NotNil(t, exported)
	assert.Len(t, exported.UVs, 4)
	assert.Equal(t, uint8(127), exported.Texture.NRGBAAt(0, 0).R)
}

func TestBake_FallsBackToParametrize(t *testing.T) {
	unwrapper := &MockUnwrapper{
		GenerateFunc: func(context.Context, *mesh.Mesh) (*mesh.Atlas, error) {
			return nil, errors.New("atlas api unavailable")
		},
		ParametrizeFunc: func(context.Context, *mesh.Mesh) (*mesh.Atlas, error) {
			return seamAtlas(), nil
		},
	}
	rasterizer := &MockRasterizer{RasterizeFunc: func(_ context.Context, pass RasterPass) ([]float32, error) {
		return solidPixels(pass.Size, 1, 1, 1), nil
	}}
	baker := NewBaker(unwrapper, rasterizer, writingExporter(), 4, zerolog.Nop())

	_, err := baker.Bake(context.Background(), triangle(), t.TempDir(), "model_0")

	require.NoError(t, err)
	assert.True(t, unwrapper.parametrized)
}

func TestBake_NoVertexColors(t *testing.T) {
	m := triangle()
	m.Colors = nil
	baker := NewBaker(&MockUnwrapper{}, &MockRasterizer{}, &MockExporter{}, 4, zerolog.Nop())

	_, err := baker.Bake(context.Background(), m, t.TempDir(), "model_0")

	assert.ErrorIs(t, err, ErrNoVertexColors)
}

func TestTryBake_SwallowsFailures(t *testing.T) {
	tests := []struct {
		name       string
		unwrapper  *MockUnwrapper
		rasterizer *MockRasterizer
		exporter   *MockExporter
	}{
		{
			name: "both unwraps fail",
			unwrapper: &MockUnwrapper{
				GenerateFunc:    func(context.Context, *mesh.Mesh) (*mesh.Atlas, error) { return nil, errors.New("a") },
				ParametrizeFunc: func(context.Context, *mesh.Mesh) (*mesh.Atlas, error) { return nil, errors.New("b") },
			},
			rasterizer: &MockRasterizer{},
		},
		{
			name: "rasterizer fails",
			unwrapper: &MockUnwrapper{
				GenerateFunc: func(context.Context, *mesh.Mesh) (*mesh.Atlas, error) { return seamAtlas(), nil },
			},
			rasterizer: &MockRasterizer{RasterizeFunc: func(context.Context, RasterPass) ([]float32, error) {
				return nil, errors.New("no context")
			}},
		},
		{
			name: "short readback",
			unwrapper: &MockUnwrapper{
				GenerateFunc: func(context.Context, *mesh.Mesh) (*mesh.Atlas, error) { return seamAtlas(), nil },
			},
			rasterizer: &MockRasterizer{RasterizeFunc: func(context.Context, RasterPass) ([]float32, error) {
				return []float32{1, 2, 3}, nil
			}},
		},
		{
			name: "unwrapper panics",
			unwrapper: &MockUnwrapper{
				GenerateFunc: func(context.Context, *mesh.Mesh) (*mesh.Atlas, error) { panic("index out of range") },
			},
			rasterizer: &MockRasterizer{},
		},
		{
			name: "exporter panics",
			unwrapper: &MockUnwrapper{
				GenerateFunc: func(context.Context, *mesh.Mesh) (*mesh.Atlas, error) { return seamAtlas(), nil },
			},
			rasterizer: &MockRasterizer{RasterizeFunc: func(_ context.Context, pass RasterPass) ([]float32, error) {
				return solidPixels(pass.Size, 1, 1, 1), nil
			}},
			exporter: &MockExporter{ExportTexturedFunc: func(string, *mesh.TexturedMesh) error {
				panic("nil texture")
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			exporter := tt.exporter
			if exporter == nil {
				exporter = writingExporter()
			}
			baker := NewBaker(tt.unwrapper, tt.rasterizer, exporter, 4, zerolog.Nop())

			var path string
			require.NotPanics(t, func() {
				path = baker.TryBake(context.Background(), triangle(), dir, "model_0")
			})

			assert.Empty(t, path)
			assert.NoFileExists(t, filepath.Join(dir, "model_0_baked.glb"))
		})
	}
}

func TestToImage_FlipsAndClamps(t *testing.T) {
	// 2x2, bottom row first: bottom-left red overdriven, top-left negative
	pixels := []float32{
		2, 0, 0, 1, 0, 0, 0, 1,
		-1, 0, 0, 1, 0, 0.5, 0, 1,
	}

	img, err := ToImage(pixels, 2)

	require.NoError(t, err)
	assert.Equal(t, uint8(255), img.NRGBAAt(0, 1).R)
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(127), img.NRGBAAt(1, 0).G)
}
