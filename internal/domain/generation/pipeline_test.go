package generation

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/mesh-api/internal/domain/inference"
	"jan-server/services/mesh-api/internal/domain/mesh"
	"jan-server/services/mesh-api/internal/domain/preprocess"
)

type MockPreprocessor struct {
	PreprocessBatchFunc func(ctx context.Context, sources []preprocess.Source) ([]preprocess.NormalizedImage, error)
}

func (m *MockPreprocessor) PreprocessBatch(ctx context.Context, sources []preprocess.Source) ([]preprocess.NormalizedImage, error) {
	if m.PreprocessBatchFunc != nil {
		return m.PreprocessBatchFunc(ctx, sources)
	}
	out := make([]preprocess.NormalizedImage, len(sources))
	for i := range out {
		out[i] = preprocess.NewNormalizedImage(image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	}
	return out, nil
}

type MockReconstructor struct {
	InferFunc   func(ctx context.Context, images []preprocess.NormalizedImage) (inference.SceneRepresentation, error)
	ExtractFunc func(ctx context.Context, scene inference.SceneRepresentation, resolution int, threshold float64) ([]*mesh.Mesh, error)
}

func (m *MockReconstructor) Infer(ctx context.Context, images []preprocess.NormalizedImage) (inference.SceneRepresentation, error) {
	if m.InferFunc != nil {
		return m.InferFunc(ctx, images)
	}
	return inference.SceneRepresentation{Handle: "scene", Views: len(images)}, nil
}

func (m *MockReconstructor) Extract(ctx context.Context, scene inference.SceneRepresentation, resolution int, threshold float64) ([]*mesh.Mesh, error) {
	return m.ExtractFunc(ctx, scene, resolution, threshold)
}

type fileExporter struct {
	paths []string
}

func (e *fileExporter) Export(path string, _ *mesh.Mesh) error {
	e.paths = append(e.paths, path)
	return os.WriteFile(path, []byte("glb"), 0o644)
}

type MockBaker struct {
	TryBakeFunc func(ctx context.Context, m *mesh.Mesh, outputDir, base string) string
	calls       int
}

func (b *MockBaker) TryBake(ctx context.Context, m *mesh.Mesh, outputDir, base string) string {
	b.calls++
	return b.TryBakeFunc(ctx, m, outputDir, base)
}

func pyramid() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0.5, 0.5, 1}},
		Faces:    [][3]int32{{0, 1, 4}, {1, 2, 4}, {2, 3, 4}, {3, 0, 4}},
		Colors:   [][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 0}, {1, 1, 1}},
	}
}

func meshes(n int) func(context.Context, inference.SceneRepresentation, int, float64) ([]*mesh.Mesh, error) {
	return func(context.Context, inference.SceneRepresentation, int, float64) ([]*mesh.Mesh, error) {
		out := make([]*mesh.Mesh, n)
		for i := range out {
			out[i] = pyramid()
		}
		return out, nil
	}
}

var defaultParams = Request{Resolution: 256, Threshold: 30, Smoothing: "low"}.Params()

func TestPipeline_ExportsEveryMeshAndReturnsFirst(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	exporter := &fileExporter{}
	var gotRes int
	model := &MockReconstructor{ExtractFunc: func(ctx context.Context, s inference.SceneRepresentation, res int, thr float64) ([]*mesh.Mesh, error) {
		gotRes = res
		return meshes(2)(ctx, s, res, thr)
	}}
	p := NewPipeline(&MockPreprocessor{}, model, exporter, nil, zerolog.Nop())

	path, err := p.Run(context.Background(), []ImageSource{{Name: "a"}}, dir, defaultParams)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "model_0.glb"), path)
	assert.Equal(t, []string{filepath.Join(dir, "model_0.glb"), filepath.Join(dir, "model_1.glb")}, exporter.paths)
	assert.FileExists(t, filepath.Join(dir, "model_1.glb"))
	assert.Equal(t, 256, gotRes)
}

func TestPipeline_ZeroMeshesReturnsEmptyPath(t *testing.T) {
	p := NewPipeline(&MockPreprocessor{}, &MockReconstructor{ExtractFunc: meshes(0)}, &fileExporter{}, nil, zerolog.Nop())

	path, err := p.Run(context.Background(), []ImageSource{{Name: "a"}}, t.TempDir(), defaultParams)

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestPipeline_SmoothingFailureDoesNotAbort(t *testing.T) {
	broken := pyramid()
	broken.Faces = append(broken.Faces, [3]int32{0, 1, 99})
	model := &MockReconstructor{ExtractFunc: func(context.Context, inference.SceneRepresentation, int, float64) ([]*mesh.Mesh, error) {
		return []*mesh.Mesh{broken}, nil
	}}
	p := NewPipeline(&MockPreprocessor{}, model, &fileExporter{}, nil, zerolog.Nop())

	path, err := p.Run(context.Background(), []ImageSource{{Name: "a"}}, t.TempDir(), defaultParams)

	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.Equal(t, [3]float32{0.5, 0.5, 1}, broken.Vertices[4])
}

func TestPipeline_BakedModelSupersedesExport(t *testing.T) {
	dir := t.TempDir()
	baker := &MockBaker{TryBakeFunc: func(_ context.Context, _ *mesh.Mesh, outputDir, base string) string {
		path := filepath.Join(outputDir, base+"_baked.glb")
		_ = os.WriteFile(path, []byte("baked"), 0o644)
		return path
	}}
	p := NewPipeline(&MockPreprocessor{}, &MockReconstructor{ExtractFunc: meshes(1)}, &fileExporter{}, baker, zerolog.Nop())
	params := defaultParams
	params.TextureBake = true

	path, err := p.Run(context.Background(), []ImageSource{{Name: "a"}}, dir, params)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "model_0_baked.glb"), path)
	assert.FileExists(t, filepath.Join(dir, "model_0.glb"))
}

func TestPipeline_BakeFailureKeepsVertexColoredMesh(t *testing.T) {
	dir := t.TempDir()
	baker := &MockBaker{TryBakeFunc: func(context.Context, *mesh.Mesh, string, string) string { return "" }}
	p := NewPipeline(&MockPreprocessor{}, &MockReconstructor{ExtractFunc: meshes(1)}, &fileExporter{}, baker, zerolog.Nop())
	params := defaultParams
	params.TextureBake = true

	path, err := p.Run(context.Background(), []ImageSource{{Name: "a"}}, dir, params)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "model_0.glb"), path)
	assert.Equal(t, 1, baker.calls)
}

func TestPipeline_BakeDisabled(t *testing.T) {
	baker := &MockBaker{TryBakeFunc: func(context.Context, *mesh.Mesh, string, string) string { return "x" }}
	p := NewPipeline(&MockPreprocessor{}, &MockReconstructor{ExtractFunc: meshes(1)}, &fileExporter{}, baker, zerolog.Nop())

	_, err := p.Run(context.Background(), []ImageSource{{Name: "a"}}, t.TempDir(), defaultParams)

	require.NoError(t, err)
	assert.Zero(t, baker.calls)
}

func TestPipeline_StageErrorsPropagate(t *testing.T) {
	multiView := &MockReconstructor{
		InferFunc: func(context.Context, []preprocess.NormalizedImage) (inference.SceneRepresentation, error) {
			return inference.SceneRepresentation{}, inference.ErrMultiViewUnsupported
		},
		ExtractFunc: meshes(1),
	}
	decodeFail := &MockPreprocessor{PreprocessBatchFunc: func(context.Context, []preprocess.Source) ([]preprocess.NormalizedImage, error) {
		return nil, preprocess.ErrDecode
	}}

	tests := []struct {
		name  string
		pre   ImagePreprocessor
		model ShapeReconstructor
		want  error
	}{
		{"multi-view unsupported", &MockPreprocessor{}, multiView, inference.ErrMultiViewUnsupported},
		{"decode failure", decodeFail, &MockReconstructor{ExtractFunc: meshes(1)}, preprocess.ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			p := NewPipeline(tt.pre, tt.model, &fileExporter{}, nil, zerolog.Nop())

			path, err := p.Run(context.Background(), []ImageSource{{Name: "a"}, {Name: "b"}}, dir, defaultParams)

			assert.True(t, errors.Is(err, tt.want))
			assert.Empty(t, path)
			assert.NoFileExists(t, filepath.Join(dir, "model_0.glb"))
		})
	}
}

func TestPipeline_NoImages(t *testing.T) {
	p := NewPipeline(&MockPreprocessor{}, &MockReconstructor{ExtractFunc: meshes(1)}, &fileExporter{}, nil, zerolog.Nop())

	_, err := p.Run(context.Background(), nil, t.TempDir(), defaultParams)

	assert.ErrorIs(t, err, ErrNoImages)
}
