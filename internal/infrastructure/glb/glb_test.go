package glb

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/mesh-api/internal/domain/mesh"
)

func colored() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0.5}},
		Faces:    [][3]int32{{0, 1, 2}, {0, 2, 3}},
		Colors:   [][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.25, 0.5, 0.75}},
	}
}

func TestExport_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_0.glb")
	src := colored()

	require.NoError(t, NewExporter().Export(path, src))
	got, err := Import(path)
	require.NoError(t, err)

	assert.Len(t, got.Vertices, len(src.Vertices))
	assert.Equal(t, src.Faces, got.Faces)
	require.Len(t, got.Colors, len(src.Colors))
	for i := range src.Colors {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, src.Colors[i][c], got.Colors[i][c], 1e-6)
			assert.InDelta(t, src.Vertices[i][c], got.Vertices[i][c], 1e-6)
		}
	}
}

func TestExport_WithoutColors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_0.glb")
	src := colored()
	src.Colors = nil

	require.NoError(t, NewExporter().Export(path, src))
	got, err := Import(path)
	require.NoError(t, err)

	assert.Len(t, got.Vertices, 4)
	assert.Len(t, got.Faces, 2)
	assert.Empty(t, got.Colors)
}

func TestExport_RejectsMalformedMesh(t *testing.T) {
	src := colored()
	src.Faces = append(src.Faces, [3]int32{0, 1, 7})

	err := NewExporter().Export(filepath.Join(t.TempDir(), "bad.glb"), src)

	assert.ErrorIs(t, err, mesh.ErrMalformedTopology)
}

func TestExportTextured(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model_0_baked.glb")
	baked := &mesh.TexturedMesh{
		Vertices: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:    [][3]int32{{0, 1, 2}},
		UVs:      [][2]float32{{0, 0}, {1, 0}, {0, 1}},
		Texture:  image.NewNRGBA(image.Rect(0, 0, 4, 4)),
	}

	require.NoError(t, NewExporter().ExportTextured(path, baked))

	doc, err := gltf.Open(path)
	require.NoError(t, err)
	require.Len(t, doc.Images, 1)
	require.Len(t, doc.Materials, 1)
	prim := doc.Meshes[0].Primitives[0]
	assert.Contains(t, prim.Attributes, gltf.TEXCOORD_0)
	assert.NotNil(t, prim.Material)

	got, err := Import(path)
	require.NoError(t, err)
	assert.Len(t, got.Vertices, 3)
	assert.Empty(t, got.Colors)
}

func TestExportTextured_RequiresTexture(t *testing.T) {
	err := NewExporter().ExportTextured(filepath.Join(t.TempDir(), "x.glb"), &mesh.TexturedMesh{})
	assert.Error(t, err)
}

func TestImport_NotAModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.glb")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	_, err := Import(path)
	assert.Error(t, err)
}
