package main

import (
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"jan-server/services/mesh-api/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the service configuration",
	RunE:  runConfigSchema,
}

func init() {
	configCmd.AddCommand(configSchemaCmd)
	configSchemaCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
}

func runConfigSchema(cmd *cobra.Command, args []string) error {
	data, err := configSchema()
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	fmt.Printf("✓ Generated %s\n", output)
	return nil
}

func configSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            false,
		ExpandedStruct:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "Mesh API Configuration"
	schema.Description = "Environment driven configuration for the mesh generation service"
	schema.Version = version

	data, err := schema.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
