package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"jan-server/services/mesh-api/internal/config"
	"jan-server/services/mesh-api/internal/domain/job"
)

func sampleJobs() []job.Job {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []job.Job{
		{ID: "job_b", Status: job.StatusComplete, Message: job.MessageComplete, CreatedAt: created},
		{ID: "job_a", Status: job.StatusQueued, Message: job.MessageQueued, CreatedAt: created.Add(-time.Hour)},
	}
}

func TestRenderJobs_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderJobs(&buf, sampleJobs(), "table"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "job_b")
	assert.Contains(t, lines[1], "2025-03-01T12:00:00Z")
	assert.Contains(t, lines[2], "queued")
}

func TestRenderJobs_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderJobs(&buf, nil, "table"))
	assert.Equal(t, "No jobs recorded\n", buf.String())
}

func TestRenderJobs_JSONAndYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderJobs(&buf, sampleJobs(), "json"))
	var decoded []job.Job
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "job_b", decoded[0].ID)

	buf.Reset()
	require.NoError(t, renderJobs(&buf, sampleJobs(), "yaml"))
	var generic []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &generic))
	require.Len(t, generic, 2)
	assert.Equal(t, "job_a", generic[1]["id"])
}

func TestRenderJobs_UnknownFormat(t *testing.T) {
	assert.Error(t, renderJobs(&bytes.Buffer{}, sampleJobs(), "csv"))
}

func TestConfigSchema(t *testing.T) {
	data, err := configSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "Mesh API Configuration", schema["title"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "multiview_fallback")
	assert.NotContains(t, props, "S3SecretKey")
}

func TestBuildGenerateRequest_UsesConfiguredDefaults(t *testing.T) {
	cfg := &config.Config{DefaultResolution: 256, DefaultThreshold: 12.5, DefaultSmoothing: "low"}

	cmd := &cobra.Command{Use: "generate"}
	addGenerateFlags(cmd)
	req := buildGenerateRequest(cmd, cfg, []string{"chair.png"})

	assert.Equal(t, 256, req.Resolution)
	assert.Equal(t, 12.5, req.Threshold)
	assert.Equal(t, "low", req.Smoothing)
	assert.False(t, req.TextureBake)
	require.Len(t, req.Images, 1)
	assert.Equal(t, "chair.png", req.Images[0].Path)
}

func TestBuildGenerateRequest_ExplicitFlagsWin(t *testing.T) {
	cfg := &config.Config{DefaultResolution: 256, DefaultThreshold: 12.5, DefaultSmoothing: "low"}

	cmd := &cobra.Command{Use: "generate"}
	addGenerateFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--resolution", "512", "--smoothing", "none", "--texture-bake"}))
	req := buildGenerateRequest(cmd, cfg, []string{"chair.png"})

	assert.Equal(t, 512, req.Resolution)
	assert.Equal(t, 12.5, req.Threshold)
	assert.Equal(t, "none", req.Smoothing)
	assert.True(t, req.TextureBake)
}
