package mesh

// NormalizeColors converts raw per-vertex colours to RGB in [0,1].
// Extra channels such as alpha are dropped. Rows with fewer than three
// channels make the whole set unusable and nil is returned. If any channel
// exceeds 1.0 the set is treated as 0-255 and rescaled.
func NormalizeColors(raw [][]float32) [][3]float32 {
	if len(raw) == 0 {
		return nil
	}

	out := make([][3]float32, len(raw))
	var maxValue float32
	for i, row := range raw {
		if len(row) < 3 {
			return nil
		}
		out[i] = [3]float32{row[0], row[1], row[2]}
		for _, c := range out[i] {
			if c > maxValue {
				maxValue = c
			}
		}
	}

	if maxValue > 1.0 {
		for i := range out {
			for c := range out[i] {
				out[i][c] /= 255.0
			}
		}
	}
	return out
}

// Resample gathers colours for atlas vertices: out[i] = colors[mapping[i]].
func Resample(colors [][3]float32, mapping []int32) ([][3]float32, error) {
	out := make([][3]float32, len(mapping))
	for i, src := range mapping {
		if src < 0 || int(src) >= len(colors) {
			return nil, ErrMalformedTopology
		}
		out[i] = colors[src]
	}
	return out, nil
}
