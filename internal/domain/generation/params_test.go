package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeResolution(t *testing.T) {
	for _, in := range []int{-1, 0, 128, 255, 257, 511, 513, 1024} {
		assert.Equal(t, 512, NormalizeResolution(in), in)
		assert.Equal(t, 512, NormalizeResolution(NormalizeResolution(in)), in)
	}
	assert.Equal(t, 256, NormalizeResolution(256))
	assert.Equal(t, 512, NormalizeResolution(512))
}

func TestLookupSmoothing(t *testing.T) {
	tests := []struct {
		name string
		want SmoothingProfile
	}{
		{"none", SmoothingProfile{0, 0}},
		{"low", SmoothingProfile{8, 0.1}},
		{"medium", SmoothingProfile{15, 0.1}},
		{"high", SmoothingProfile{25, 0.15}},
		{"HIGH", SmoothingProfile{25, 0.15}},
		{"", SmoothingProfile{15, 0.1}},
		{"extreme", SmoothingProfile{15, 0.1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LookupSmoothing(tt.name), tt.name)
	}
}

func TestRequest_Params(t *testing.T) {
	p := Request{Resolution: 300, Threshold: 12.5, Smoothing: "bogus", TextureBake: true}.Params()

	assert.Equal(t, Params{
		Resolution:  512,
		Threshold:   12.5,
		Smoothing:   SmoothingProfile{15, 0.1},
		TextureBake: true,
	}, p)
}
