// Package glb writes and reads binary glTF (.glb) model files.
package glb

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"jan-server/services/mesh-api/internal/domain/mesh"
)

// ErrNoMesh is returned when a model file has no triangle primitive.
var ErrNoMesh = errors.New("model file contains no mesh")

// Exporter writes meshes as .glb files.
type Exporter struct{}

// NewExporter returns an Exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export writes positions, indices and, when present, vertex colour.
func (e *Exporter) Export(path string, m *mesh.Mesh) error {
	if err := m.Validate(); err != nil {
		return err
	}
	doc := gltf.NewDocument()
	attrs := map[string]uint32{
		gltf.POSITION: modeler.WritePosition(doc, m.Vertices),
	}
	if m.HasColors() {
		attrs[gltf.COLOR_0] = modeler.WriteColor(doc, m.Colors)
	}
	prim := &gltf.Primitive{
		Attributes: attrs,
		Indices:    gltf.Index(modeler.WriteIndices(doc, flatten(m.Faces))),
	}
	addMesh(doc, "model", prim)
	return save(doc, path)
}

// ExportTextured writes the atlas geometry with UVs and an embedded PNG
// base colour texture.
func (e *Exporter) ExportTextured(path string, m *mesh.TexturedMesh) error {
	if m.Texture == nil {
		return fmt.Errorf("textured mesh has no texture")
	}
	if len(m.UVs) != len(m.Vertices) {
		return fmt.Errorf("%w: %d uvs for %d vertices", mesh.ErrMalformedTopology, len(m.UVs), len(m.Vertices))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, m.Texture); err != nil {
		return fmt.Errorf("encode texture: %w", err)
	}

	doc := gltf.NewDocument()
	imageIdx, err := modeler.WriteImage(doc, "albedo", "image/png", &buf)
	if err != nil {
		return fmt.Errorf("embed texture: %w", err)
	}
	doc.Textures = append(doc.Textures, &gltf.Texture{Source: gltf.Index(imageIdx)})
	doc.Materials = append(doc.Materials, &gltf.Material{
		Name: "baked",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorTexture: &gltf.TextureInfo{Index: uint32(len(doc.Textures) - 1)},
			MetallicFactor:   gltf.Float(0),
		},
	})

	// glTF puts the UV origin at the top-left of the image
	uvs := make([][2]float32, len(m.UVs))
	for i, uv := range m.UVs {
		uvs[i] = [2]float32{uv[0], 1 - uv[1]}
	}

	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION:   modeler.WritePosition(doc, m.Vertices),
			gltf.TEXCOORD_0: modeler.WriteTextureCoord(doc, uvs),
		},
		Indices:  gltf.Index(modeler.WriteIndices(doc, flatten(m.Faces))),
		Material: gltf.Index(uint32(len(doc.Materials) - 1)),
	}
	addMesh(doc, "model_baked", prim)
	return save(doc, path)
}

// Import reads the first primitive of a .glb file back into a Mesh.
func Import(path string) (*mesh.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	if len(doc.Meshes) == 0 || len(doc.Meshes[0].Primitives) == 0 {
		return nil, ErrNoMesh
	}
	prim := doc.Meshes[0].Primitives[0]

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok || prim.Indices == nil {
		return nil, ErrNoMesh
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
	if err != nil {
		return nil, fmt.Errorf("read indices: %w", err)
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d indices", mesh.ErrMalformedTopology, len(indices))
	}

	out := &mesh.Mesh{
		Vertices: positions,
		Faces:    make([][3]int32, len(indices)/3),
	}
	for i := range out.Faces {
		out.Faces[i] = [3]int32{int32(indices[i*3]), int32(indices[i*3+1]), int32(indices[i*3+2])}
	}

	if colorIdx, ok := prim.Attributes[gltf.COLOR_0]; ok {
		raw, err := modeler.ReadAccessor(doc, doc.Accessors[colorIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("read colors: %w", err)
		}
		switch c := raw.(type) {
		case [][3]float32:
			out.Colors = c
		case [][4]float32:
			out.Colors = make([][3]float32, len(c))
			for i, v := range c {
				out.Colors[i] = [3]float32{v[0], v[1], v[2]}
			}
		default:
			return nil, fmt.Errorf("unsupported color accessor %T", raw)
		}
	}
	return out, nil
}

func flatten(faces [][3]int32) []uint32 {
	out := make([]uint32, 0, len(faces)*3)
	for _, f := range faces {
		out = append(out, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}
	return out
}

func addMesh(doc *gltf.Document, name string, prim *gltf.Primitive) {
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: name, Primitives: []*gltf.Primitive{prim}})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: name, Mesh: gltf.Index(uint32(len(doc.Meshes) - 1))})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
}

func save(doc *gltf.Document, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	if err := gltf.SaveBinary(doc, path); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}
