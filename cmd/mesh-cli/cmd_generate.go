package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jan-server/services/mesh-api/internal/bootstrap"
	"jan-server/services/mesh-api/internal/config"
	"jan-server/services/mesh-api/internal/domain/generation"
	"jan-server/services/mesh-api/internal/infrastructure/storage"
	"jan-server/services/mesh-api/internal/utils/jobid"
)

var generateCmd = &cobra.Command{
	Use:   "generate <image>...",
	Short: "Generate a GLB model from images",
	Long: `Run the full pipeline synchronously against the configured rembg and
shape model servers. Several images are treated as views of one object.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	addGenerateFlags(generateCmd)
}

// addGenerateFlags registers the parameter flags. Unset flags fall back to
// the MESH_DEFAULT_* settings rather than the defaults printed in help.
func addGenerateFlags(cmd *cobra.Command) {
	cmd.Flags().Int("resolution", generation.DefaultResolution, "Marching cubes resolution (256 or 512, default from MESH_DEFAULT_RESOLUTION)")
	cmd.Flags().Float64("threshold", generation.DefaultThreshold, "Density threshold (default from MESH_DEFAULT_THRESHOLD)")
	cmd.Flags().String("smoothing", generation.DefaultSmoothing, "Smoothing level: none, low, medium, high (default from MESH_DEFAULT_SMOOTHING)")
	cmd.Flags().Bool("texture-bake", false, "Bake vertex colors into a texture atlas")
}

// buildGenerateRequest starts from the configured defaults and applies only
// the flags the user set explicitly.
func buildGenerateRequest(cmd *cobra.Command, cfg *config.Config, args []string) generation.Request {
	req := generation.Request{
		Images:     generation.SourcesFromPaths(args),
		Resolution: cfg.DefaultResolution,
		Threshold:  cfg.DefaultThreshold,
		Smoothing:  cfg.DefaultSmoothing,
	}

	flags := cmd.Flags()
	if flags.Changed("resolution") {
		req.Resolution, _ = flags.GetInt("resolution")
	}
	if flags.Changed("threshold") {
		req.Threshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Changed("smoothing") {
		req.Smoothing, _ = flags.GetString("smoothing")
	}
	req.TextureBake, _ = flags.GetBool("texture-bake")
	return req
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	workspace, err := storage.NewWorkspace(cfg, log)
	if err != nil {
		return err
	}
	engine, err := bootstrap.NewEngine(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	req := buildGenerateRequest(cmd, cfg, args)

	fmt.Printf("Generating from %d image(s) on %s...\n", len(args), engine.Device)
	path, err := engine.Pipeline.Run(cmd.Context(), req.Images, workspace.OutputDir(jobid.New()), req.Params())
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if path == "" {
		return generation.ErrNoOutput
	}

	fmt.Println(path)
	return nil
}
