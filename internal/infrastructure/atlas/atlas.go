// Package atlas unwraps triangle meshes into a packed UV atlas.
package atlas

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"jan-server/services/mesh-api/internal/domain/mesh"
)

var (
	// ErrEmptyMesh is returned for meshes without faces.
	ErrEmptyMesh = errors.New("mesh has no faces")
	// ErrNonFinite is returned when vertex positions contain NaN or Inf.
	ErrNonFinite = errors.New("mesh has non-finite vertex positions")
)

const (
	// maxChartAngle bounds how far a face normal may deviate from its chart seed.
	maxChartAngle = 60.0
	// padding between charts, as a share of the packed layout size.
	chartPadding = 0.01
)

type vec3 [3]float64

func (a vec3) sub(b vec3) vec3 { return vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a vec3) dot(b vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
func (a vec3) cross(b vec3) vec3 {
	return vec3{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}
func (a vec3) length() float64 { return math.Sqrt(a.dot(a)) }
func (a vec3) scale(s float64) vec3 {
	return vec3{a[0] * s, a[1] * s, a[2] * s}
}

func toVec(v [3]float32) vec3 {
	return vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

// Unwrapper implements texture.Unwrapper.
type Unwrapper struct{}

// New returns an Unwrapper.
func New() *Unwrapper {
	return &Unwrapper{}
}

// chart is a set of faces projected onto one plane.
type chart struct {
	faces  []int
	normal vec3
	// local vertex order and projected coordinates
	verts  []int32
	coords [][2]float64
	minU   float64
	minV   float64
	width  float64
	height float64
	// placement in the layout
	x, y float64
}

// Generate grows charts of faces whose normals stay within a cone around the
// seed face, projects each chart onto its plane and shelf-packs the charts
// into the unit square.
func (u *Unwrapper) Generate(ctx context.Context, m *mesh.Mesh) (*mesh.Atlas, error) {
	if err := checkInput(m); err != nil {
		return nil, err
	}
	for _, v := range m.Vertices {
		for _, c := range v {
			if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
				return nil, ErrNonFinite
			}
		}
	}

	normals := faceNormals(m)
	neighbours := faceAdjacency(m.Faces)
	minDot := math.Cos(maxChartAngle * math.Pi / 180)

	assigned := make([]bool, len(m.Faces))
	var charts []*chart
	for seed := range m.Faces {
		if assigned[seed] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := &chart{normal: normals[seed]}
		assigned[seed] = true
		queue := []int{seed}
		for len(queue) > 0 {
			f := queue[0]
			queue = queue[1:]
			c.faces = append(c.faces, f)
			if c.normal.length() == 0 {
				continue
			}
			for _, n := range neighbours[f] {
				if assigned[n] || normals[n].length() == 0 || normals[n].dot(c.normal) < minDot {
					continue
				}
				assigned[n] = true
				queue = append(queue, n)
			}
		}
		project(c, m)
		charts = append(charts, c)
	}

	pack(charts)
	return build(m, charts), nil
}

// Parametrize places every face in its own cell of a square grid. It does
// not look at vertex positions.
func (u *Unwrapper) Parametrize(ctx context.Context, m *mesh.Mesh) (*mesh.Atlas, error) {
	if err := checkInput(m); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	faces := len(m.Faces)
	cells := int(math.Ceil(math.Sqrt(float64(faces))))
	cell := 1.0 / float64(cells)
	pad := cell * 0.05

	out := &mesh.Atlas{
		Vertices: make([][3]float32, 0, faces*3),
		Faces:    make([][3]int32, 0, faces),
		UVs:      make([][2]float32, 0, faces*3),
		Mapping:  make([]int32, 0, faces*3),
	}
	for i, f := range m.Faces {
		x0 := float64(i%cells) * cell
		y0 := float64(i/cells) * cell
		corners := [3][2]float64{
			{x0 + pad, y0 + pad},
			{x0 + cell - pad, y0 + pad},
			{x0 + pad, y0 + cell - pad},
		}
		base := int32(len(out.Vertices))
		for k, src := range f {
			out.Vertices = append(out.Vertices, m.Vertices[src])
			out.UVs = append(out.UVs, [2]float32{float32(corners[k][0]), float32(corners[k][1])})
			out.Mapping = append(out.Mapping, src)
		}
		out.Faces = append(out.Faces, [3]int32{base, base + 1, base + 2})
	}
	return out, nil
}

func checkInput(m *mesh.Mesh) error {
	if m == nil || len(m.Faces) == 0 {
		return ErrEmptyMesh
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("unwrap: %w", err)
	}
	return nil
}

func faceNormals(m *mesh.Mesh) []vec3 {
	out := make([]vec3, len(m.Faces))
	for i, f := range m.Faces {
		a, b, c := toVec(m.Vertices[f[0]]), toVec(m.Vertices[f[1]]), toVec(m.Vertices[f[2]])
		n := b.sub(a).cross(c.sub(a))
		if l := n.length(); l > 1e-12 {
			out[i] = n.scale(1 / l)
		}
	}
	return out
}

func faceAdjacency(faces [][3]int32) [][]int {
	type edge struct{ a, b int32 }
	key := func(a, b int32) edge {
		if a > b {
			a, b = b, a
		}
		return edge{a, b}
	}
	byEdge := make(map[edge][]int, len(faces)*3/2)
	for i, f := range faces {
		for k := 0; k < 3; k++ {
			e := key(f[k], f[(k+1)%3])
			byEdge[e] = append(byEdge[e], i)
		}
	}
	out := make([][]int, len(faces))
	for _, shared := range byEdge {
		for _, a := range shared {
			for _, b := range shared {
				if a != b {
					out[a] = append(out[a], b)
				}
			}
		}
	}
	return out
}

// project maps the chart's vertices onto the plane orthogonal to its normal.
func project(c *chart, m *mesh.Mesh) {
	n := c.normal
	if n.length() == 0 {
		n = vec3{0, 0, 1}
	}
	helper := vec3{1, 0, 0}
	if math.Abs(n[0]) > 0.9 {
		helper = vec3{0, 1, 0}
	}
	uAxis := helper.cross(n)
	uAxis = uAxis.scale(1 / uAxis.length())
	vAxis := n.cross(uAxis)

	local := make(map[int32]int, len(c.faces)*3)
	for _, f := range c.faces {
		for _, src := range m.Faces[f] {
			if _, ok := local[src]; ok {
				continue
			}
			p := toVec(m.Vertices[src])
			local[src] = len(c.verts)
			c.verts = append(c.verts, src)
			c.coords = append(c.coords, [2]float64{p.dot(uAxis), p.dot(vAxis)})
		}
	}

	c.minU, c.minV = math.Inf(1), math.Inf(1)
	maxU, maxV := math.Inf(-1), math.Inf(-1)
	for _, p := range c.coords {
		c.minU = math.Min(c.minU, p[0])
		c.minV = math.Min(c.minV, p[1])
		maxU = math.Max(maxU, p[0])
		maxV = math.Max(maxV, p[1])
	}
	c.width = maxU - c.minU
	c.height = maxV - c.minV
}

// pack places charts on shelves ordered by height, in chart units.
func pack(charts []*chart) {
	var area, largest float64
	for _, c := range charts {
		area += c.width * c.height
		largest = math.Max(largest, math.Max(c.width, c.height))
	}
	if largest == 0 {
		largest = 1
	}
	gap := largest * chartPadding
	for _, c := range charts {
		// degenerate charts still get a cell
		c.width = math.Max(c.width, gap)
		c.height = math.Max(c.height, gap)
	}
	shelfWidth := math.Max(math.Sqrt(area)*1.2, largest)

	order := make([]*chart, len(charts))
	copy(order, charts)
	sort.SliceStable(order, func(a, b int) bool { return order[a].height > order[b].height })

	var x, y, shelfHeight float64
	for _, c := range order {
		if x > 0 && x+c.width > shelfWidth {
			y += shelfHeight + gap
			x, shelfHeight = 0, 0
		}
		c.x, c.y = x, y
		x += c.width + gap
		shelfHeight = math.Max(shelfHeight, c.height)
	}
}

// build emits atlas vertices per chart and scales the layout into [0,1].
func build(m *mesh.Mesh, charts []*chart) *mesh.Atlas {
	var extent float64
	for _, c := range charts {
		extent = math.Max(extent, math.Max(c.x+c.width, c.y+c.height))
	}
	if extent == 0 {
		extent = 1
	}

	out := &mesh.Atlas{}
	for _, c := range charts {
		base := int32(len(out.Vertices))
		local := make(map[int32]int32, len(c.verts))
		for i, src := range c.verts {
			local[src] = base + int32(i)
			uv := c.coords[i]
			out.Vertices = append(out.Vertices, m.Vertices[src])
			out.UVs = append(out.UVs, [2]float32{
				float32((c.x + uv[0] - c.minU) / extent),
				float32((c.y + uv[1] - c.minV) / extent),
			})
			out.Mapping = append(out.Mapping, src)
		}
		for _, f := range c.faces {
			face := m.Faces[f]
			out.Faces = append(out.Faces, [3]int32{local[face[0]], local[face[1]], local[face[2]]})
		}
	}
	return out
}
