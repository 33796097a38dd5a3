package generation

import (
	"strings"

	"jan-server/services/mesh-api/internal/domain/preprocess"
)

// Generation defaults.
const (
	DefaultResolution = 512
	DefaultThreshold  = 30.0
	DefaultSmoothing  = SmoothingMedium
)

// Smoothing profile names.
const (
	SmoothingNone   = "none"
	SmoothingLow    = "low"
	SmoothingMedium = "medium"
	SmoothingHigh   = "high"
)

// SmoothingProfile is an (iterations, lambda) pair for Laplacian smoothing.
type SmoothingProfile struct {
	Iterations int
	Lambda     float32
}

var smoothingProfiles = map[string]SmoothingProfile{
	SmoothingNone:   {Iterations: 0, Lambda: 0},
	SmoothingLow:    {Iterations: 8, Lambda: 0.1},
	SmoothingMedium: {Iterations: 15, Lambda: 0.1},
	SmoothingHigh:   {Iterations: 25, Lambda: 0.15},
}

// ImageSource is one uploaded or on-disk input image.
type ImageSource = preprocess.Source

// Request is a generation request as received from a caller.
type Request struct {
	Images      []ImageSource
	Resolution  int
	Threshold   float64
	Smoothing   string
	TextureBake bool
}

// Params is the coerced, pipeline-ready form of a Request.
type Params struct {
	Resolution  int
	Threshold   float64
	Smoothing   SmoothingProfile
	TextureBake bool
}

// NormalizeResolution coerces anything other than 256 or 512 to 512.
func NormalizeResolution(resolution int) int {
	if resolution == 256 || resolution == 512 {
		return resolution
	}
	return DefaultResolution
}

// LookupSmoothing returns the named profile, falling back to medium for
// unknown or empty names.
func LookupSmoothing(name string) SmoothingProfile {
	if p, ok := smoothingProfiles[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return smoothingProfiles[DefaultSmoothing]
}

// Params applies the silent coercions to the request parameters.
func (r Request) Params() Params {
	return Params{
		Resolution:  NormalizeResolution(r.Resolution),
		Threshold:   r.Threshold,
		Smoothing:   LookupSmoothing(r.Smoothing),
		TextureBake: r.TextureBake,
	}
}
