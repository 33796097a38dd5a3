// Package rembg talks to a rembg HTTP server for background removal.
package rembg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/domain/preprocess"
)

// Client implements preprocess.BackgroundRemover. The model session lives on
// the server; the client only names it.
type Client struct {
	httpClient *resty.Client
	model      string
	log        zerolog.Logger
}

// NewClient creates a Resty-backed client.
func NewClient(baseURL, model string, timeout time.Duration, log zerolog.Logger) *Client {
	httpClient := resty.New().SetBaseURL(baseURL)
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}
	return &Client{
		httpClient: httpClient,
		model:      model,
		log:        log.With().Str("component", "rembg-client").Logger(),
	}
}

// RemoveBackground uploads the image as PNG and decodes the cut-out.
func (c *Client) RemoveBackground(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("file", "image.png", &buf).
		SetFormData(map[string]string{"model": c.model}).
		Post("/api/remove")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rembg error: %d %s", resp.StatusCode(), resp.String())
	}

	out, _, err := image.Decode(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("decode rembg output: %w", err)
	}
	c.log.Debug().Int("bytes", len(resp.Body())).Msg("background removed")
	return preprocess.ToNRGBA(out), nil
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.httpClient.R().SetContext(ctx).Get("/")
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("rembg unhealthy: %d", resp.StatusCode())
	}
	return nil
}

// Ensure interface compliance.
var _ preprocess.BackgroundRemover = (*Client)(nil)
