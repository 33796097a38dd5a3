package handlers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/config"
	"jan-server/services/mesh-api/internal/domain/generation"
	"jan-server/services/mesh-api/internal/interfaces/httpserver/requests"
	"jan-server/services/mesh-api/internal/interfaces/httpserver/responses"
	"jan-server/services/mesh-api/internal/utils/platformerrors"
)

// GLBContentType is the media type of binary glTF.
const GLBContentType = "model/gltf-binary"

// GenerationHandler exposes the synchronous generation endpoint.
type GenerationHandler struct {
	cfg     *config.Config
	service GenerationService
	log     zerolog.Logger
}

func NewGenerationHandler(cfg *config.Config, service GenerationService, log zerolog.Logger) *GenerationHandler {
	return &GenerationHandler{
		cfg:     cfg,
		service: service,
		log:     log.With().Str("component", "generation-handler").Logger(),
	}
}

// Generate godoc
// @Summary      Generate a mesh
// @Description  Runs the full pipeline inline and returns the GLB file.
// @Tags         generation
// @Accept       multipart/form-data
// @Produce      model/gltf-binary
// @Param        files         formData  file    true   "Input images"
// @Param        resolution    formData  int     false  "Marching cubes resolution"
// @Param        threshold     formData  number  false  "Density threshold"
// @Param        smoothing     formData  string  false  "none, low, medium or high"
// @Param        texture_bake  formData  bool    false  "Bake vertex colors into a texture"
// @Success      200  {file}    file
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v1/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	req, ok := bindGenerateRequest(c, h.cfg)
	if !ok {
		return
	}

	// The pipeline keeps running if the client disconnects so the workspace
	// is always swept by the service.
	path, err := h.service.Generate(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		h.log.Debug().Err(err).Int("images", len(req.Images)).Msg("generation failed")
		responses.HandleError(c, err, "generation failed")
		return
	}

	id := filepath.Base(filepath.Dir(path))
	c.Header("Content-Type", GLBContentType)
	c.FileAttachment(path, fmt.Sprintf("model_%s.glb", id))
}

// bindGenerateRequest reads uploads and form fields. It writes the error
// response itself and reports false on failure.
func bindGenerateRequest(c *gin.Context, cfg *config.Config) (generation.Request, bool) {
	images, err := requests.ReadImages(c, cfg.MaxImageBytes)
	if err != nil {
		responses.HandleError(c, err, "invalid upload")
		return generation.Request{}, false
	}

	var form requests.GenerateForm
	if err := c.ShouldBind(&form); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "")
		return generation.Request{}, false
	}
	return form.ToDomain(cfg, images), true
}
