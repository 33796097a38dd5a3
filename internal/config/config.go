package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the mesh service.
type Config struct {
	// Service Configuration
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"mesh-api" json:"service_name"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development" json:"environment"`
	HTTPPort        int           `env:"MESH_API_PORT" envDefault:"8290" json:"http_port"`
	LogLevel        string        `env:"MESH_LOG_LEVEL" envDefault:"info" json:"log_level"`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false" json:"enable_tracing"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"" json:"otlp_endpoint"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" json:"shutdown_timeout"`

	// Working directories
	TempDir       string `env:"MESH_TEMP_DIR" envDefault:"temp_inputs" json:"temp_dir"`
	OutputDir     string `env:"MESH_OUTPUT_DIR" envDefault:"outputs" json:"output_dir"`
	JobsSnapshot  string `env:"MESH_JOBS_SNAPSHOT" envDefault:"outputs/jobs.json" json:"jobs_snapshot"`
	MaxImageBytes int64  `env:"MESH_MAX_IMAGE_BYTES" envDefault:"20971520" json:"max_image_bytes"`
	MaxImages     int    `env:"MESH_MAX_IMAGES" envDefault:"8" json:"max_images"`

	// Background removal server (rembg "s" mode)
	RembgURL     string        `env:"REMBG_URL" envDefault:"http://localhost:7000" json:"rembg_url"`
	RembgModel   string        `env:"REMBG_MODEL" envDefault:"u2net" json:"rembg_model"`
	RembgTimeout time.Duration `env:"REMBG_TIMEOUT" envDefault:"60s" json:"rembg_timeout"`

	// Shape inference server
	TSRURL        string        `env:"TSR_URL" envDefault:"http://localhost:8300" json:"tsr_url"`
	TSRCheckpoint string        `env:"TSR_CHECKPOINT" envDefault:"stabilityai/TripoSR" json:"tsr_checkpoint"`
	TSRDevice     string        `env:"TSR_DEVICE" envDefault:"cuda" json:"tsr_device"`
	TSRChunkSize  int           `env:"TSR_CHUNK_SIZE" envDefault:"8192" json:"tsr_chunk_size"`
	TSRTimeout    time.Duration `env:"TSR_TIMEOUT" envDefault:"0s" json:"tsr_timeout"` // 0 disables the client timeout

	// Multi-view policy: "error" (default) or "first"
	MultiViewFallback string `env:"TRIPOSR_MULTIVIEW_FALLBACK" envDefault:"error" json:"multiview_fallback"`

	// Generation defaults
	DefaultResolution int     `env:"MESH_DEFAULT_RESOLUTION" envDefault:"512" json:"default_resolution"`
	DefaultThreshold  float64 `env:"MESH_DEFAULT_THRESHOLD" envDefault:"30.0" json:"default_threshold"`
	DefaultSmoothing  string  `env:"MESH_DEFAULT_SMOOTHING" envDefault:"medium" json:"default_smoothing"`
	TextureSize       int     `env:"MESH_TEXTURE_SIZE" envDefault:"1024" json:"texture_size"`

	// Optional S3 mirror for finished models
	S3Endpoint      string        `env:"MESH_S3_ENDPOINT" json:"s3_endpoint"`
	S3Region        string        `env:"MESH_S3_REGION" envDefault:"us-west-2" json:"s3_region"`
	S3Bucket        string        `env:"MESH_S3_BUCKET" json:"s3_bucket"`
	S3AccessKeyID   string        `env:"MESH_S3_ACCESS_KEY_ID" json:"-"`
	S3SecretKey     string        `env:"MESH_S3_SECRET_ACCESS_KEY" json:"-"`
	S3UsePathStyle  bool          `env:"MESH_S3_USE_PATH_STYLE" envDefault:"true" json:"s3_use_path_style"`
	S3PresignTTL    time.Duration `env:"MESH_S3_PRESIGN_TTL" envDefault:"24h" json:"s3_presign_ttl"`
	S3MirrorTimeout time.Duration `env:"MESH_S3_MIRROR_TIMEOUT" envDefault:"2m" json:"s3_mirror_timeout"`

	// Background jobs
	JobShutdownGrace time.Duration `env:"MESH_JOB_SHUTDOWN_GRACE" envDefault:"30s" json:"job_shutdown_grace"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.S3Bucket = strings.TrimSpace(cfg.S3Bucket)
	cfg.S3AccessKeyID = strings.TrimSpace(cfg.S3AccessKeyID)
	cfg.S3SecretKey = strings.TrimSpace(cfg.S3SecretKey)
	cfg.S3Endpoint = strings.TrimSpace(cfg.S3Endpoint)
	cfg.RembgURL = strings.TrimRight(strings.TrimSpace(cfg.RembgURL), "/")
	cfg.TSRURL = strings.TrimRight(strings.TrimSpace(cfg.TSRURL), "/")

	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 20 * 1024 * 1024
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 8
	}
	if cfg.TextureSize <= 0 {
		cfg.TextureSize = 1024
	}
	if cfg.TSRChunkSize <= 0 {
		cfg.TSRChunkSize = 8192
	}
	if strings.TrimSpace(cfg.TempDir) == "" {
		return nil, fmt.Errorf("MESH_TEMP_DIR must not be empty")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return nil, fmt.Errorf("MESH_OUTPUT_DIR must not be empty")
	}
	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsS3MirrorEnabled reports whether finished models are mirrored to S3.
func (c *Config) IsS3MirrorEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKeyID != "" && c.S3SecretKey != ""
}
