package mesh

import "math"

// minConstrainedVolume is the smallest enclosed volume the smoother will try
// to preserve. Flatter closed surfaces are smoothed without rescaling.
const minConstrainedVolume = 1e-9

// Smooth applies umbrella-weighted Laplacian smoothing in place: each pass
// moves every vertex lambda of the way toward the mean of its edge
// neighbours. Isolated vertices stay put. Closed meshes are rescaled about
// their centroid after every pass so the enclosed volume stays at its
// initial value. On error the mesh is left unchanged.
func Smooth(m *Mesh, iterations int, lambda float32) error {
	if iterations <= 0 || len(m.Vertices) == 0 {
		return nil
	}
	if err := checkFaces(m.Faces, len(m.Vertices)); err != nil {
		return err
	}

	neighbours := adjacency(m.Faces, len(m.Vertices))
	current := make([][3]float32, len(m.Vertices))
	copy(current, m.Vertices)
	next := make([][3]float32, len(current))

	initialVolume := 0.0
	if isClosed(m.Faces) {
		initialVolume = signedVolume(current, m.Faces)
	}
	constrain := math.Abs(initialVolume) > minConstrainedVolume

	for iter := 0; iter < iterations; iter++ {
		for i, v := range current {
			ring := neighbours[i]
			if len(ring) == 0 {
				next[i] = v
				continue
			}
			var mean [3]float32
			for _, n := range ring {
				p := current[n]
				mean[0] += p[0]
				mean[1] += p[1]
				mean[2] += p[2]
			}
			inv := 1 / float32(len(ring))
			for c := 0; c < 3; c++ {
				next[i][c] = v[c] + lambda*(mean[c]*inv-v[c])
			}
		}
		current, next = next, current
		if constrain {
			rescaleVolume(current, m.Faces, neighbours, initialVolume)
		}
	}

	copy(m.Vertices, current)
	return nil
}

// rescaleVolume scales the connected vertices about their centroid so the
// enclosed volume matches target. A pass that collapsed or inverted the
// surface is left as is.
func rescaleVolume(vertices [][3]float32, faces [][3]int32, neighbours [][]int32, target float64) {
	volume := signedVolume(vertices, faces)
	if volume == 0 || (volume > 0) != (target > 0) {
		return
	}
	scale := math.Cbrt(target / volume)

	var centroid [3]float64
	var n float64
	for i, v := range vertices {
		if len(neighbours[i]) == 0 {
			continue
		}
		centroid[0] += float64(v[0])
		centroid[1] += float64(v[1])
		centroid[2] += float64(v[2])
		n++
	}
	for c := range centroid {
		centroid[c] /= n
	}
	for i, v := range vertices {
		if len(neighbours[i]) == 0 {
			continue
		}
		for c := 0; c < 3; c++ {
			vertices[i][c] = float32(centroid[c] + (float64(v[c])-centroid[c])*scale)
		}
	}
}

// signedVolume sums the signed tetrahedra spanned by the origin and each
// face. The result is only meaningful for closed surfaces.
func signedVolume(vertices [][3]float32, faces [][3]int32) float64 {
	var total float64
	for _, f := range faces {
		a, b, c := vertices[f[0]], vertices[f[1]], vertices[f[2]]
		ax, ay, az := float64(a[0]), float64(a[1]), float64(a[2])
		bx, by, bz := float64(b[0]), float64(b[1]), float64(b[2])
		cx, cy, cz := float64(c[0]), float64(c[1]), float64(c[2])
		total += ax*(by*cz-bz*cy) - ay*(bx*cz-bz*cx) + az*(bx*cy-by*cx)
	}
	return total / 6
}

// isClosed reports whether every edge is shared by exactly two faces.
func isClosed(faces [][3]int32) bool {
	if len(faces) == 0 {
		return false
	}
	type edge struct{ a, b int32 }
	counts := make(map[edge]int, len(faces)*3/2)
	add := func(a, b int32) {
		if a > b {
			a, b = b, a
		}
		counts[edge{a, b}]++
	}
	for _, f := range faces {
		add(f[0], f[1])
		add(f[1], f[2])
		add(f[2], f[0])
	}
	for _, n := range counts {
		if n != 2 {
			return false
		}
	}
	return true
}

// adjacency builds the unique edge-neighbour list of every vertex.
func adjacency(faces [][3]int32, vertexCount int) [][]int32 {
	seen := make([]map[int32]struct{}, vertexCount)
	out := make([][]int32, vertexCount)
	link := func(a, b int32) {
		if a == b {
			return
		}
		if seen[a] == nil {
			seen[a] = make(map[int32]struct{}, 6)
		}
		if _, ok := seen[a][b]; ok {
			return
		}
		seen[a][b] = struct{}{}
		out[a] = append(out[a], b)
	}
	for _, f := range faces {
		link(f[0], f[1])
		link(f[1], f[0])
		link(f[1], f[2])
		link(f[2], f[1])
		link(f[2], f[0])
		link(f[0], f[2])
	}
	return out
}
