package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/config"
)

// Workspace owns the temp input and output directories on local disk.
type Workspace struct {
	tempDir   string
	outputDir string
	log       zerolog.Logger
}

// NewWorkspace creates the temp and output directories if needed.
func NewWorkspace(cfg *config.Config, log zerolog.Logger) (*Workspace, error) {
	logger := log.With().Str("component", "workspace").Logger()

	tempDir := strings.TrimSpace(cfg.TempDir)
	outputDir := strings.TrimSpace(cfg.OutputDir)
	for _, dir := range []string{tempDir, outputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create workspace directory %s: %w", dir, err)
		}
	}

	logger.Info().
		Str("temp_dir", tempDir).
		Str("output_dir", outputDir).
		Msg("workspace initialized")

	return &Workspace{
		tempDir:   tempDir,
		outputDir: outputDir,
		log:       logger,
	}, nil
}

// Stage writes an uploaded image to <temp>/<uuid>.<ext>.
func (w *Workspace) Stage(data []byte, ext string) (string, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "png"
	}
	path := filepath.Join(w.tempDir, uuid.NewString()+"."+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp input: %w", err)
	}

	w.log.Debug().
		Str("path", path).
		Int("bytes", len(data)).
		Msg("input staged")
	return path, nil
}

// Cleanup removes staged inputs. Missing files are ignored.
func (w *Workspace) Cleanup(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.log.Warn().Err(err).Str("path", p).Msg("failed to remove temp input")
		}
	}
}

// OutputDir returns the output directory for a run id.
func (w *Workspace) OutputDir(id string) string {
	return filepath.Join(w.outputDir, id)
}

// Health checks that the temp directory is writable.
func (w *Workspace) Health() error {
	testFile := filepath.Join(w.tempDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("temp directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	return nil
}
