package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/config"
	"jan-server/services/mesh-api/internal/interfaces/httpserver/requests"
	"jan-server/services/mesh-api/internal/interfaces/httpserver/responses"
	"jan-server/services/mesh-api/internal/utils/platformerrors"
)

// JobHandler exposes the asynchronous job endpoints.
type JobHandler struct {
	cfg     *config.Config
	service GenerationService
	log     zerolog.Logger
}

func NewJobHandler(cfg *config.Config, service GenerationService, log zerolog.Logger) *JobHandler {
	return &JobHandler{
		cfg:     cfg,
		service: service,
		log:     log.With().Str("component", "job-handler").Logger(),
	}
}

// Submit godoc
// @Summary      Submit a generation job
// @Tags         jobs
// @Accept       multipart/form-data
// @Produce      json
// @Param        files  formData  file  true  "Input images"
// @Success      202  {object}  responses.SubmitResponse
// @Failure      400  {object}  responses.ErrorResponse
// @Router       /v1/jobs [post]
func (h *JobHandler) Submit(c *gin.Context) {
	req, ok := bindGenerateRequest(c, h.cfg)
	if !ok {
		return
	}

	created, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		h.log.Warn().Err(err).Msg("job submission rejected")
		responses.HandleError(c, err, "job submission failed")
		return
	}

	c.JSON(http.StatusAccepted, responses.SubmitResponse{
		JobID:  created.ID,
		Status: string(created.Status),
	})
}

// List godoc
// @Summary      List recent jobs
// @Tags         jobs
// @Produce      json
// @Param        limit  query  int  false  "Maximum number of jobs"  default(20)
// @Success      200  {object}  responses.JobListResponse
// @Router       /v1/jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	var query requests.ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "")
		return
	}
	c.JSON(http.StatusOK, responses.NewJobListResponse(h.service.List(query.Limit)))
}

// Get godoc
// @Summary      Get job status
// @Tags         jobs
// @Produce      json
// @Param        id  path  string  true  "Job ID"
// @Success      200  {object}  responses.JobResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/jobs/{id} [get]
func (h *JobHandler) Get(c *gin.Context) {
	j, err := h.service.Status(c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "job lookup failed")
		return
	}
	c.JSON(http.StatusOK, responses.NewJobResponse(*j))
}

// Result godoc
// @Summary      Download a job's model
// @Tags         jobs
// @Produce      model/gltf-binary
// @Param        id  path  string  true  "Job ID"
// @Success      200  {file}    file
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      409  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v1/jobs/{id}/result [get]
func (h *JobHandler) Result(c *gin.Context) {
	id := c.Param("id")
	path, err := h.service.Result(id)
	if err != nil {
		h.log.Debug().Err(err).Str("job_id", id).Msg("result unavailable")
		responses.HandleError(c, err, "result unavailable")
		return
	}
	c.Header("Content-Type", GLBContentType)
	c.FileAttachment(path, fmt.Sprintf("model_%s.glb", id))
}
