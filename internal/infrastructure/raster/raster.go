// Package raster is an offscreen software rasterizer for UV-space colour
// passes.
package raster

import (
	"context"
	"errors"
	"fmt"
	"math"

	"jan-server/services/mesh-api/internal/domain/texture"
)

// ErrInvalidPass is returned when a pass is internally inconsistent.
var ErrInvalidPass = errors.New("invalid raster pass")

// Rasterizer implements texture.Rasterizer. The vertex stage maps UV in
// [0,1]^2 to clip space, the fragment stage passes the interpolated colour
// through. Output rows are bottom-up like a GL framebuffer readback.
type Rasterizer struct{}

// New returns a Rasterizer.
func New() *Rasterizer {
	return &Rasterizer{}
}

type vertex struct {
	x, y, z float64
	color   [4]float32
}

// Rasterize draws every triangle of the pass into a cleared float RGBA target.
func (r *Rasterizer) Rasterize(ctx context.Context, pass texture.RasterPass) ([]float32, error) {
	if err := validate(pass); err != nil {
		return nil, err
	}

	size := pass.Size
	color := make([]float32, size*size*4)
	depth := make([]float64, size*size)
	for i := range depth {
		depth[i] = 1
	}

	for t, tri := range pass.Indices {
		if t%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var v [3]vertex
		for k, idx := range tri {
			v[k] = vertexStage(pass.UVs[idx], pass.Colors[idx], size)
		}
		drawTriangle(v, size, color, depth, pass.DepthTest)
	}
	return color, nil
}

func validate(pass texture.RasterPass) error {
	if pass.Size <= 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidPass, pass.Size)
	}
	if len(pass.Colors) != len(pass.UVs) {
		return fmt.Errorf("%w: %d colors for %d uvs", ErrInvalidPass, len(pass.Colors), len(pass.UVs))
	}
	for i, tri := range pass.Indices {
		for _, idx := range tri {
			if idx < 0 || int(idx) >= len(pass.UVs) {
				return fmt.Errorf("%w: triangle %d references vertex %d", ErrInvalidPass, i, idx)
			}
		}
	}
	return nil
}

// vertexStage maps uv to clip space (uv*2-1, z=0) and then to window coordinates.
func vertexStage(uv [2]float32, c [4]float32, size int) vertex {
	clipX := float64(uv[0])*2 - 1
	clipY := float64(uv[1])*2 - 1
	return vertex{
		x:     (clipX + 1) / 2 * float64(size),
		y:     (clipY + 1) / 2 * float64(size),
		z:     0,
		color: c,
	}
}

func edge(a, b vertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

func drawTriangle(v [3]vertex, size int, color []float32, depth []float64, depthTest bool) {
	area := edge(v[0], v[1], v[2].x, v[2].y)
	if area == 0 {
		return
	}

	minX := clampInt(int(math.Floor(math.Min(v[0].x, math.Min(v[1].x, v[2].x)))), 0, size-1)
	maxX := clampInt(int(math.Ceil(math.Max(v[0].x, math.Max(v[1].x, v[2].x)))), 0, size-1)
	minY := clampInt(int(math.Floor(math.Min(v[0].y, math.Min(v[1].y, v[2].y)))), 0, size-1)
	maxY := clampInt(int(math.Ceil(math.Max(v[0].y, math.Max(v[1].y, v[2].y)))), 0, size-1)

	for py := minY; py <= maxY; py++ {
		cy := float64(py) + 0.5
		for px := minX; px <= maxX; px++ {
			cx := float64(px) + 0.5
			w0 := edge(v[1], v[2], cx, cy) / area
			w1 := edge(v[2], v[0], cx, cy) / area
			w2 := edge(v[0], v[1], cx, cy) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			i := py*size + px
			z := w0*v[0].z + w1*v[1].z + w2*v[2].z
			if depthTest {
				if !(z < depth[i]) {
					continue
				}
				depth[i] = z
			}
			// relative to vertex 0 so flat-coloured triangles stay exact
			for ch := 0; ch < 4; ch++ {
				c0 := v[0].color[ch]
				color[i*4+ch] = c0 + float32(w1)*(v[1].color[ch]-c0) + float32(w2)*(v[2].color[ch]-c0)
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Ensure interface compliance.
var _ texture.Rasterizer = (*Rasterizer)(nil)
