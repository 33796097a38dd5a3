package requests

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"jan-server/services/mesh-api/internal/config"
	"jan-server/services/mesh-api/internal/domain/generation"
)

// GenerateForm is the multipart form shared by /v1/generate and /v1/jobs.
type GenerateForm struct {
	Resolution  *int     `form:"resolution"`
	Threshold   *float64 `form:"threshold"`
	Smoothing   *string  `form:"smoothing"`
	TextureBake bool     `form:"texture_bake"`
}

// ListJobsQuery holds the job listing query parameters.
type ListJobsQuery struct {
	Limit int `form:"limit,default=20"`
}

// ToDomain builds a generation request, filling unset fields from config.
func (f *GenerateForm) ToDomain(cfg *config.Config, images []generation.ImageSource) generation.Request {
	req := generation.Request{
		Images:      images,
		Resolution:  cfg.DefaultResolution,
		Threshold:   cfg.DefaultThreshold,
		Smoothing:   cfg.DefaultSmoothing,
		TextureBake: f.TextureBake,
	}
	if f.Resolution != nil {
		req.Resolution = *f.Resolution
	}
	if f.Threshold != nil {
		req.Threshold = *f.Threshold
	}
	if f.Smoothing != nil {
		req.Smoothing = *f.Smoothing
	}
	return req
}

// ReadImages collects uploads from the "files" and "file" fields in order.
// Each upload is limited to maxBytes.
func ReadImages(c *gin.Context, maxBytes int64) ([]generation.ImageSource, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, fmt.Errorf("%w: request body too large", generation.ErrImageTooLarge)
		}
		return nil, generation.ErrNoImages
	}

	var headers []*multipart.FileHeader
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["file"]...)

	images := make([]generation.ImageSource, 0, len(headers))
	for _, header := range headers {
		if maxBytes > 0 && header.Size > maxBytes {
			return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", generation.ErrImageTooLarge, header.Filename, header.Size, maxBytes)
		}
		data, err := readUpload(header)
		if err != nil {
			return nil, err
		}
		images = append(images, generation.ImageSource{Name: header.Filename, Data: data})
	}
	return images, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", header.Filename, err)
	}
	return data, nil
}
