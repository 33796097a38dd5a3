package inference

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/mesh-api/internal/domain/mesh"
	"jan-server/services/mesh-api/internal/domain/preprocess"
)

type MockModel struct {
	InferFunc       func(ctx context.Context, images []image.Image, device string) (SceneRepresentation, error)
	ExtractMeshFunc func(ctx context.Context, scene SceneRepresentation, withVertexColor bool, resolution int, threshold float64) ([]*mesh.RawMesh, error)
	inferCalls      [][]image.Image
}

func (m *MockModel) Infer(ctx context.Context, images []image.Image, device string) (SceneRepresentation, error) {
	m.inferCalls = append(m.inferCalls, images)
	return m.InferFunc(ctx, images, device)
}

func (m *MockModel) ExtractMesh(ctx context.Context, scene SceneRepresentation, withVertexColor bool, resolution int, threshold float64) ([]*mesh.RawMesh, error) {
	return m.ExtractMeshFunc(ctx, scene, withVertexColor, resolution, threshold)
}

type stubProber struct {
	ok  bool
	err error
}

func (p stubProber) AcceleratorAvailable(context.Context) (bool, error) {
	return p.ok, p.err
}

func frames(n int) []preprocess.NormalizedImage {
	out := make([]preprocess.NormalizedImage, n)
	for i := range out {
		out[i] = preprocess.NewNormalizedImage(image.NewNRGBA(image.Rect(0, 0, 4+i, 4+i)))
	}
	return out
}

// singleViewModel rejects any batch with more than one image.
func singleViewModel() *MockModel {
	return &MockModel{
		InferFunc: func(_ context.Context, images []image.Image, device string) (SceneRepresentation, error) {
			if len(images) > 1 {
				return SceneRepresentation{}, ErrIncompatibleArguments
			}
			return SceneRepresentation{Handle: "scene", Views: len(images), Device: device}, nil
		},
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		raw  string
		want Policy
	}{
		{"", PolicyError},
		{"error", PolicyError},
		{"first", PolicyFirst},
		{" FIRST ", PolicyFirst},
		{"all", PolicyError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePolicy(tt.raw), tt.raw)
	}
}

func TestResolveDevice(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "cuda", ResolveDevice(ctx, "cuda", stubProber{ok: true}))
	assert.Equal(t, "cpu", ResolveDevice(ctx, "cuda", stubProber{ok: false}))
	assert.Equal(t, "cpu", ResolveDevice(ctx, "cuda", stubProber{err: errors.New("down")}))
	assert.Equal(t, "cpu", ResolveDevice(ctx, "cuda", nil))
	assert.Equal(t, "cpu", ResolveDevice(ctx, "CPU", stubProber{ok: true}))
}

func TestInfer_SingleImageNeverFallsBack(t *testing.T) {
	for _, policy := range []Policy{PolicyError, PolicyFirst} {
		model := &MockModel{
			InferFunc: func(context.Context, []image.Image, string) (SceneRepresentation, error) {
				return SceneRepresentation{}, ErrIncompatibleArguments
			},
		}
		adapter := NewAdapter(model, policy, "cpu", zerolog.Nop())

		_, err := adapter.Infer(context.Background(), frames(1))

		assert.ErrorIs(t, err, ErrIncompatibleArguments)
		assert.NotErrorIs(t, err, ErrMultiViewUnsupported)
		assert.Len(t, model.inferCalls, 1)
	}
}

func TestInfer_PolicyFirstUsesFirstImage(t *testing.T) {
	model := singleViewModel()
	adapter := NewAdapter(model, PolicyFirst, "cpu", zerolog.Nop())
	images := frames(3)

	scene, err := adapter.Infer(context.Background(), images)

	require.NoError(t, err)
	assert.Equal(t, 1, scene.Views)
	require.Len(t, model.inferCalls, 2)
	require.Len(t, model.inferCalls[1], 1)
	assert.Same(t, images[0].Image(), model.inferCalls[1][0])
}

func TestInfer_PolicyErrorReportsMultiViewUnsupported(t *testing.T) {
	model := singleViewModel()
	adapter := NewAdapter(model, PolicyError, "cpu", zerolog.Nop())

	_, err := adapter.Infer(context.Background(), frames(2))

	require.ErrorIs(t, err, ErrMultiViewUnsupported)
	assert.Contains(t, err.Error(), "TRIPOSR_MULTIVIEW_FALLBACK=first")
	assert.Len(t, model.inferCalls, 1)
}

func TestInfer_OtherErrorsPropagate(t *testing.T) {
	boom := errors.New("out of memory")
	model := &MockModel{
		InferFunc: func(context.Context, []image.Image, string) (SceneRepresentation, error) {
			return SceneRepresentation{}, boom
		},
	}
	adapter := NewAdapter(model, PolicyFirst, "cpu", zerolog.Nop())

	_, err := adapter.Infer(context.Background(), frames(2))

	assert.ErrorIs(t, err, boom)
	assert.Len(t, model.inferCalls, 1)
}

func TestInfer_MultiViewAcceptedNatively(t *testing.T) {
	model := &MockModel{
		InferFunc: func(_ context.Context, images []image.Image, _ string) (SceneRepresentation, error) {
			return SceneRepresentation{Views: len(images)}, nil
		},
	}
	adapter := NewAdapter(model, PolicyError, "cpu", zerolog.Nop())

	scene, err := adapter.Infer(context.Background(), frames(2))

	require.NoError(t, err)
	assert.Equal(t, 2, scene.Views)
}

func TestExtract_RequestsVertexColorAndNormalizes(t *testing.T) {
	var gotColor bool
	var gotRes int
	model := &MockModel{
		ExtractMeshFunc: func(_ context.Context, _ SceneRepresentation, withVertexColor bool, resolution int, _ float64) ([]*mesh.RawMesh, error) {
			gotColor = withVertexColor
			gotRes = resolution
			return []*mesh.RawMesh{{
				Vertices: [][3]float32{{0, 0, 0}},
				Colors:   [][]float32{{0, 128, 255}},
			}}, nil
		},
	}
	adapter := NewAdapter(model, PolicyError, "cpu", zerolog.Nop())

	meshes, err := adapter.Extract(context.Background(), SceneRepresentation{Handle: "s"}, 256, 30)

	require.NoError(t, err)
	assert.True(t, gotColor)
	assert.Equal(t, 256, gotRes)
	require.Len(t, meshes, 1)
	assert.InDelta(t, 1.0, meshes[0].Colors[0][2], 1e-6)
}
