// Package inference wraps the shape reconstruction model behind a narrow
// contract and owns the multi-view compatibility policy.
package inference

import (
	"context"
	"errors"
	"image"
	"strings"

	"jan-server/services/mesh-api/internal/domain/mesh"
)

// DeviceCPU is the device every accelerator request downgrades to.
const DeviceCPU = "cpu"

var (
	// ErrIncompatibleArguments is returned by a Model that rejects the shape of
	// a call, such as a multi-view batch on a single-view build.
	ErrIncompatibleArguments = errors.New("model rejected call arguments")
	// ErrMultiViewUnsupported is returned when a multi-image batch is rejected
	// and the fallback policy is strict.
	ErrMultiViewUnsupported = errors.New("multi-view input not supported by this model build")
)

// SceneRepresentation is the model's latent output for one batch. Only the
// model client interprets Handle.
type SceneRepresentation struct {
	Handle string
	Views  int
	Device string
}

// Model is the external shape reconstruction capability.
type Model interface {
	Infer(ctx context.Context, images []image.Image, device string) (SceneRepresentation, error)
	ExtractMesh(ctx context.Context, scene SceneRepresentation, withVertexColor bool, resolution int, threshold float64) ([]*mesh.RawMesh, error)
}

// DeviceProber reports whether an accelerator is usable.
type DeviceProber interface {
	AcceleratorAvailable(ctx context.Context) (bool, error)
}

// Policy selects what happens when a multi-view batch is rejected.
type Policy string

const (
	PolicyError Policy = "error"
	PolicyFirst Policy = "first"
)

// ParsePolicy maps a raw flag value to a Policy. Anything but "first" is strict.
func ParsePolicy(raw string) Policy {
	if strings.EqualFold(strings.TrimSpace(raw), string(PolicyFirst)) {
		return PolicyFirst
	}
	return PolicyError
}

// ResolveDevice returns the requested device, or cpu when an accelerator was
// requested but the probe says it is unavailable or fails.
func ResolveDevice(ctx context.Context, requested string, prober DeviceProber) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" || requested == DeviceCPU {
		return DeviceCPU
	}
	if prober == nil {
		return DeviceCPU
	}
	ok, err := prober.AcceleratorAvailable(ctx)
	if err != nil || !ok {
		return DeviceCPU
	}
	return requested
}
