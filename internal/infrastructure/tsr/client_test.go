package tsr

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/mesh-api/internal/domain/inference"
	"jan-server/services/mesh-api/internal/domain/preprocess"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// singleViewServer rejects batches with more than one image like older model builds.
func singleViewServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cuda_available": false})
	})
	mux.HandleFunc("/v1/config", func(w http.ResponseWriter, r *http.Request) {
		var req configRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 8192, req.ChunkSize)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("/v1/scenes", func(w http.ResponseWriter, r *http.Request) {
		var req sceneRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if len(req.Images) > 1 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": map[string]any{"type": "incompatible_argument", "message": "expected a single image"},
			})
			return
		}
		writeJSON(w, http.StatusOK, sceneResponse{SceneID: "scene-1", Views: 1})
	})
	mux.HandleFunc("/v1/scenes/scene-1/mesh", func(w http.ResponseWriter, r *http.Request) {
		var req meshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.HasVertexColor)
		assert.Equal(t, 256, req.Resolution)
		writeJSON(w, http.StatusOK, meshResponse{Meshes: []meshPayload{{
			Vertices:     [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			Faces:        [][3]int32{{0, 1, 2}},
			VertexColors: [][]float32{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}},
		}}})
	})
	mux.HandleFunc("/v1/scenes/missing/mesh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"type": "not_found", "message": "unknown scene"}})
	})
	return httptest.NewServer(mux)
}

func newTestClient(url string) *Client {
	return NewClient(url, Options{Checkpoint: "stabilityai/TripoSR", ChunkSize: 8192}, zerolog.Nop())
}

func TestClient_HealthAndConfigure(t *testing.T) {
	server := singleViewServer(t)
	defer server.Close()
	client := newTestClient(server.URL)

	ok, err := client.AcceleratorAvailable(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "cpu", inference.ResolveDevice(context.Background(), "cuda", client))

	assert.NoError(t, client.Configure(context.Background(), "cpu"))
}

func TestClient_InferSingleImage(t *testing.T) {
	server := singleViewServer(t)
	defer server.Close()

	scene, err := newTestClient(server.URL).Infer(context.Background(), []image.Image{image.NewNRGBA(image.Rect(0, 0, 2, 2))}, "cpu")

	require.NoError(t, err)
	assert.Equal(t, inference.SceneRepresentation{Handle: "scene-1", Views: 1, Device: "cpu"}, scene)
}

func TestClient_InferClassifiesIncompatibleArguments(t *testing.T) {
	server := singleViewServer(t)
	defer server.Close()
	images := []image.Image{image.NewNRGBA(image.Rect(0, 0, 2, 2)), image.NewNRGBA(image.Rect(0, 0, 2, 2))}

	_, err := newTestClient(server.URL).Infer(context.Background(), images, "cpu")

	assert.ErrorIs(t, err, inference.ErrIncompatibleArguments)
	assert.ErrorContains(t, err, "expected a single image")
}

func TestClient_AdapterFallbackEndToEnd(t *testing.T) {
	server := singleViewServer(t)
	defer server.Close()
	images := []preprocess.NormalizedImage{
		preprocess.NewNormalizedImage(image.NewNRGBA(image.Rect(0, 0, 2, 2))),
		preprocess.NewNormalizedImage(image.NewNRGBA(image.Rect(0, 0, 2, 2))),
	}

	strict := inference.NewAdapter(newTestClient(server.URL), inference.PolicyError, "cpu", zerolog.Nop())
	_, err := strict.Infer(context.Background(), images)
	assert.ErrorIs(t, err, inference.ErrMultiViewUnsupported)

	lenient := inference.NewAdapter(newTestClient(server.URL), inference.PolicyFirst, "cpu", zerolog.Nop())
	scene, err := lenient.Infer(context.Background(), images)
	require.NoError(t, err)
	assert.Equal(t, 1, scene.Views)
}

func TestClient_ExtractMesh(t *testing.T) {
	server := singleViewServer(t)
	defer server.Close()

	meshes, err := newTestClient(server.URL).ExtractMesh(context.Background(), inference.SceneRepresentation{Handle: "scene-1"}, true, 256, 30)

	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Len(t, meshes[0].Vertices, 3)
	assert.Equal(t, []float32{255, 0, 0, 255}, meshes[0].Colors[0])
}

func TestClient_ExtractMeshError(t *testing.T) {
	server := singleViewServer(t)
	defer server.Close()

	_, err := newTestClient(server.URL).ExtractMesh(context.Background(), inference.SceneRepresentation{Handle: "missing"}, true, 256, 30)

	assert.ErrorContains(t, err, "404")
	assert.NotErrorIs(t, err, inference.ErrIncompatibleArguments)
}
