package responses

import (
	"time"

	"jan-server/services/mesh-api/internal/domain/job"
)

// SubmitResponse is returned when a job is accepted.
type SubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse is the public view of a job. The local output path is not exposed.
type JobResponse struct {
	ID          string    `json:"id"`
	Object      string    `json:"object"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ResultURL   string    `json:"result_url,omitempty"`
	ArtifactURL string    `json:"artifact_url,omitempty"`
}

// JobListResponse wraps a page of jobs.
type JobListResponse struct {
	Object string        `json:"object"`
	Data   []JobResponse `json:"data"`
	Total  int           `json:"total"`
}

// NewJobResponse converts a domain job.
func NewJobResponse(j job.Job) JobResponse {
	resp := JobResponse{
		ID:          j.ID,
		Object:      "mesh.job",
		Status:      string(j.Status),
		Message:     j.Message,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		ArtifactURL: j.ArtifactURL,
	}
	if j.Status == job.StatusComplete {
		resp.ResultURL = "/v1/jobs/" + j.ID + "/result"
	}
	return resp
}

// NewJobListResponse converts a slice of domain jobs.
func NewJobListResponse(jobs []job.Job) JobListResponse {
	data := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		data = append(data, NewJobResponse(j))
	}
	return JobListResponse{Object: "list", Data: data, Total: len(data)}
}
