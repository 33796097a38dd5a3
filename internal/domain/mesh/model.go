// Package mesh holds the geometry types that flow through the generation
// pipeline and the post-processing applied to them.
package mesh

import (
	"errors"
	"fmt"
	"image"
)

// ErrMalformedTopology is returned when faces reference vertices that do not exist.
var ErrMalformedTopology = errors.New("malformed mesh topology")

// Mesh is a triangle mesh with optional per-vertex RGB colour in [0,1].
type Mesh struct {
	Vertices [][3]float32
	Faces    [][3]int32
	Colors   [][3]float32
}

// HasColors reports whether the mesh carries per-vertex colour.
func (m *Mesh) HasColors() bool {
	return len(m.Colors) > 0
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices: make([][3]float32, len(m.Vertices)),
		Faces:    make([][3]int32, len(m.Faces)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Faces, m.Faces)
	if m.HasColors() {
		out.Colors = make([][3]float32, len(m.Colors))
		copy(out.Colors, m.Colors)
	}
	return out
}

// Validate checks the colour-count invariant and face indices.
func (m *Mesh) Validate() error {
	if m.HasColors() && len(m.Colors) != len(m.Vertices) {
		return fmt.Errorf("%w: %d colors for %d vertices", ErrMalformedTopology, len(m.Colors), len(m.Vertices))
	}
	return checkFaces(m.Faces, len(m.Vertices))
}

func checkFaces(faces [][3]int32, vertexCount int) error {
	for i, f := range faces {
		for _, idx := range f {
			if idx < 0 || int(idx) >= vertexCount {
				return fmt.Errorf("%w: face %d references vertex %d of %d", ErrMalformedTopology, i, idx, vertexCount)
			}
		}
	}
	return nil
}

// Atlas is a UV-unwrapped variant of a mesh. Vertices on chart seams are
// duplicated; Mapping[i] is the source vertex of atlas vertex i.
type Atlas struct {
	Vertices [][3]float32
	Faces    [][3]int32
	UVs      [][2]float32
	Mapping  []int32
}

// Validate checks that per-vertex arrays agree and faces are in range.
func (a *Atlas) Validate() error {
	n := len(a.Vertices)
	if len(a.UVs) != n || len(a.Mapping) != n {
		return fmt.Errorf("%w: atlas has %d vertices, %d uvs, %d mappings", ErrMalformedTopology, n, len(a.UVs), len(a.Mapping))
	}
	return checkFaces(a.Faces, n)
}

// TexturedMesh is an atlas mesh whose colour lives in a texture image.
type TexturedMesh struct {
	Vertices [][3]float32
	Faces    [][3]int32
	UVs      [][2]float32
	Texture  *image.NRGBA
}

// RawMesh is a mesh as returned by the reconstruction model. Colours may
// carry three or four channels in either [0,1] or [0,255].
type RawMesh struct {
	Vertices [][3]float32
	Faces    [][3]int32
	Colors   [][]float32
}

// Normalize converts the raw mesh into a Mesh with RGB colour in [0,1].
func (r *RawMesh) Normalize() *Mesh {
	return &Mesh{
		Vertices: r.Vertices,
		Faces:    r.Faces,
		Colors:   NormalizeColors(r.Colors),
	}
}
