package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/abcfood/fingerprint-bridge/pkg/config"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var schemaOutput string

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate JSON schema for configuration",
	Long: `Generate a JSON schema covering the environment settings and the
device fleet YAML.

Examples:
  # Print schema to stdout
  fpctl config schema

  # Save schema to file
  fpctl config schema --output config.schema.json`,
	RunE: runConfigSchema,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate settings and the device fleet file",
	RunE:  runConfigValidate,
}

func init() {
	configSchemaCmd.Flags().StringVar(&schemaOutput, "output", "",
		"Output file (default: stdout)")

	configCmd.AddCommand(configSchemaCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigSchema(cmd *cobra.Command, args []string) error {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Settings{})
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "Fingerprint Bridge Configuration"
	schema.Description = "Environment settings for the fingerprint bridge service"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if schemaOutput != "" {
		if err := os.WriteFile(schemaOutput, schemaJSON, 0o644); err != nil {
			return fmt.Errorf("failed to write schema file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", schemaOutput)
		return nil
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(schemaJSON))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	pool, err := device.NewPool(settings.ZKMachinesConfig, nil)
	if err != nil {
		return err
	}

	fmt.Printf("settings OK, %d device(s) configured\n", len(pool.Keys()))
	return nil
}
