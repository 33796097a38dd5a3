package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"jan-server/services/mesh-api/internal/bootstrap"
	"jan-server/services/mesh-api/internal/domain/generation"
	"jan-server/services/mesh-api/internal/domain/inference"
	"jan-server/services/mesh-api/internal/infrastructure/storage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the generation environment",
	Long: `Probe the rembg server and the shape model server, report which device
inference will run on and optionally run a sample generation.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().String("sample", "", "Image to run through the full pipeline")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := cmd.Context()
	failures := 0

	fmt.Println("Checking mesh generation environment...")

	workspace, err := storage.NewWorkspace(cfg, log)
	if err == nil {
		err = workspace.Health()
	}
	failures += report("workspace", fmt.Sprintf("%s, %s", cfg.TempDir, cfg.OutputDir), err)

	rembgClient, tsrClient := bootstrap.NewClients(cfg, log)
	failures += report("rembg", cfg.RembgURL, rembgClient.Health(ctx))

	accelerated, err := tsrClient.AcceleratorAvailable(ctx)
	failures += report("shape model", cfg.TSRURL, err)
	if err == nil {
		device := inference.ResolveDevice(ctx, cfg.TSRDevice, tsrClient)
		fmt.Printf("  requested device %q, accelerator available: %t, using %q\n", cfg.TSRDevice, accelerated, device)
	}
	fmt.Printf("  multi-view fallback policy: %s\n", inference.ParsePolicy(cfg.MultiViewFallback))

	sample, _ := cmd.Flags().GetString("sample")
	if sample != "" && failures == 0 {
		engine, err := bootstrap.NewEngine(ctx, cfg, log)
		var path string
		if err == nil {
			req := generation.Request{
				Images:     generation.SourcesFromPaths([]string{sample}),
				Resolution: cfg.DefaultResolution,
				Threshold:  cfg.DefaultThreshold,
				Smoothing:  cfg.DefaultSmoothing,
			}
			path, err = engine.Pipeline.Run(ctx, req.Images, workspace.OutputDir("doctor"), req.Params())
			if err == nil && path == "" {
				err = generation.ErrNoOutput
			}
		}
		failures += report("sample generation", filepath.Base(sample), err)
		if err == nil {
			fmt.Printf("  wrote %s\n", path)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	fmt.Println("\n Environment is ready")
	return nil
}

func report(name, target string, err error) int {
	if err != nil {
		fmt.Printf("  ✗ %-18s %s: %v\n", name, target, err)
		return 1
	}
	fmt.Printf("  ✓ %-18s %s\n", name, target)
	return 0
}
