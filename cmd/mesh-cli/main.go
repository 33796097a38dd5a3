package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jan-server/services/mesh-api/internal/config"
	"jan-server/services/mesh-api/internal/infrastructure/logger"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mesh-cli",
	Short: "Mesh CLI - local tooling for the image to 3D pipeline",
	Long: `mesh-cli runs the mesh generation pipeline from the command line and
inspects a mesh-api deployment.

Examples:
  # Generate a model from one or more views
  mesh-cli generate chair.png --smoothing high --texture-bake

  # Check that rembg and the shape model server are reachable
  mesh-cli doctor --sample chair.png

  # Inspect recorded jobs
  mesh-cli jobs list --limit 5 --format yaml`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
}

// loadRuntime reads .env overlays and the environment, then builds a logger
// on stderr so stdout stays scriptable. Verbose mode forces debug logging.
func loadRuntime(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.NewWithOutput(cfg, os.Stderr), nil
}
