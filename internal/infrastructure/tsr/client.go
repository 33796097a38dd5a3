// Package tsr is the HTTP client for the shape reconstruction model server.
package tsr

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/domain/inference"
	"jan-server/services/mesh-api/internal/domain/mesh"
)

const errorTypeIncompatibleArgument = "incompatible_argument"

// Options configures the model server session.
type Options struct {
	Checkpoint string
	ChunkSize  int
	Timeout    time.Duration
}

// Client implements inference.Model and inference.DeviceProber.
type Client struct {
	httpClient *resty.Client
	opts       Options
	log        zerolog.Logger
}

type healthResponse struct {
	Status        string `json:"status"`
	CUDAAvailable bool   `json:"cuda_available"`
	Checkpoint    string `json:"checkpoint,omitempty"`
}

type configRequest struct {
	Checkpoint string `json:"checkpoint"`
	ChunkSize  int    `json:"chunk_size"`
	Device     string `json:"device"`
}

type sceneRequest struct {
	Images []string `json:"images"`
	Device string   `json:"device"`
}

type sceneResponse struct {
	SceneID string `json:"scene_id"`
	Views   int    `json:"views"`
}

type meshRequest struct {
	HasVertexColor bool    `json:"has_vertex_color"`
	Resolution     int     `json:"resolution"`
	Threshold      float64 `json:"threshold"`
}

type meshPayload struct {
	Vertices     [][3]float32 `json:"vertices"`
	Faces        [][3]int32   `json:"faces"`
	VertexColors [][]float32  `json:"vertex_colors,omitempty"`
}

type meshResponse struct {
	Meshes []meshPayload `json:"meshes"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates a Resty-backed client. A zero timeout means no timeout.
func NewClient(baseURL string, opts Options, log zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}
	return &Client{
		httpClient: httpClient,
		opts:       opts,
		log:        log.With().Str("component", "tsr-client").Logger(),
	}
}

// AcceleratorAvailable reports whether the server sees a CUDA device.
func (c *Client) AcceleratorAvailable(ctx context.Context) (bool, error) {
	var health healthResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&health).
		Get("/v1/health")
	if err != nil {
		return false, err
	}
	if resp.IsError() {
		return false, fmt.Errorf("tsr health error: %d %s", resp.StatusCode(), resp.String())
	}
	return health.CUDAAvailable, nil
}

// Configure loads the checkpoint on device and sets the chunk size. It is
// called once at startup.
func (c *Client) Configure(ctx context.Context, device string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(configRequest{
			Checkpoint: c.opts.Checkpoint,
			ChunkSize:  c.opts.ChunkSize,
			Device:     device,
		}).
		Post("/v1/config")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("tsr config error: %d %s", resp.StatusCode(), resp.String())
	}
	c.log.Info().
		Str("checkpoint", c.opts.Checkpoint).
		Int("chunk_size", c.opts.ChunkSize).
		Str("device", device).
		Msg("model configured")
	return nil
}

// Infer runs a batch of images through the model.
func (c *Client) Infer(ctx context.Context, images []image.Image, device string) (inference.SceneRepresentation, error) {
	encoded := make([]string, len(images))
	for i, img := range images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return inference.SceneRepresentation{}, fmt.Errorf("encode image %d: %w", i, err)
		}
		encoded[i] = base64.StdEncoding.EncodeToString(buf.Bytes())
	}

	var scene sceneResponse
	var apiErr errorResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(sceneRequest{Images: encoded, Device: device}).
		SetResult(&scene).
		SetError(&apiErr).
		Post("/v1/scenes")
	if err != nil {
		return inference.SceneRepresentation{}, err
	}
	if resp.IsError() {
		return inference.SceneRepresentation{}, classify(resp, apiErr)
	}

	views := scene.Views
	if views == 0 {
		views = len(images)
	}
	return inference.SceneRepresentation{Handle: scene.SceneID, Views: views, Device: device}, nil
}

// ExtractMesh runs iso-surface extraction on a scene.
func (c *Client) ExtractMesh(ctx context.Context, scene inference.SceneRepresentation, withVertexColor bool, resolution int, threshold float64) ([]*mesh.RawMesh, error) {
	var out meshResponse
	var apiErr errorResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("scene", scene.Handle).
		SetBody(meshRequest{
			HasVertexColor: withVertexColor,
			Resolution:     resolution,
			Threshold:      threshold,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/scenes/{scene}/mesh")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, classify(resp, apiErr)
	}

	meshes := make([]*mesh.RawMesh, len(out.Meshes))
	for i, m := range out.Meshes {
		meshes[i] = &mesh.RawMesh{
			Vertices: m.Vertices,
			Faces:    m.Faces,
			Colors:   m.VertexColors,
		}
	}
	return meshes, nil
}

func classify(resp *resty.Response, apiErr errorResponse) error {
	msg := apiErr.Error.Message
	if msg == "" {
		msg = resp.String()
	}
	if resp.StatusCode() == http.StatusUnprocessableEntity && apiErr.Error.Type == errorTypeIncompatibleArgument {
		return fmt.Errorf("%w: %s", inference.ErrIncompatibleArguments, msg)
	}
	return fmt.Errorf("tsr api error: %d %s", resp.StatusCode(), msg)
}

// Ensure interface compliance.
var (
	_ inference.Model        = (*Client)(nil)
	_ inference.DeviceProber = (*Client)(nil)
)
