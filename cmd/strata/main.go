package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strata-etl/strata/internal/normalize"
	"github.com/strata-etl/strata/pkg/config"
	"github.com/strata-etl/strata/pkg/ids"
	"github.com/strata-etl/strata/pkg/logger"
	"github.com/strata-etl/strata/pkg/schema"
	"github.com/strata-etl/strata/pkg/storage"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "strata",
		Short: "Strata - relational normalization for nested data",
		Long: `Strata turns extracted files of nested items into flat, relational
per-table job files, inferring and evolving the destination schema on the fly.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Strata v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var configFile, schemaFile, extractedDir, outputDir string
	var loadID, logLevel string
	var timeout time.Duration

	normalizeCmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize a load package",
		Long: `Normalize every extracted file in a load package into per-table job
files, updating the schema file in place with the inferred changes.

Example:
  strata normalize --schema schema.yaml --extracted ./extracted --output ./jobs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(configFile, schemaFile, extractedDir, outputDir, loadID, logLevel, timeout)
		},
	}

	normalizeCmd.Flags().StringVarP(&schemaFile, "schema", "s", "", "Path to the schema YAML file (required)")
	normalizeCmd.Flags().StringVarP(&extractedDir, "extracted", "e", "", "Directory holding the extracted item files (required)")
	normalizeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory job files are written to (required)")
	_ = normalizeCmd.MarkFlagRequired("schema")
	_ = normalizeCmd.MarkFlagRequired("extracted")
	_ = normalizeCmd.MarkFlagRequired("output")

	normalizeCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a normalize configuration YAML file (optional)")
	normalizeCmd.Flags().StringVar(&loadID, "load-id", "", "Load id to stamp on root rows (generated when empty)")
	normalizeCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	normalizeCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Normalization timeout")

	root.AddCommand(normalizeCmd)

	var initSchemaName string
	initCmd := &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write a normalize configuration file with default settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewNormalizeConfig(initSchemaName)
			if err := config.Save(args[0], cfg); err != nil {
				return fmt.Errorf("failed to write configuration: %w", err)
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}
	initCmd.Flags().StringVar(&initSchemaName, "schema-name", "", "Schema name to record in the configuration")
	root.AddCommand(initCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runNormalize wires storage, schema and the normalizer together and runs
// one load package end to end.
func runNormalize(configFile, schemaFile, extractedDir, outputDir, loadID, logLevel string, timeout time.Duration) error {
	sch, err := schema.LoadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	cfg := config.NewNormalizeConfig(sch.Name)
	if configFile != "" {
		if err := config.Load(configFile, cfg); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	if loadID != "" {
		cfg.LoadID = loadID
	}
	if cfg.LoadID == "" {
		cfg.LoadID = ids.NewLoadID()
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Encoding: "json"}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, logger.LoadIDKey, cfg.LoadID)
	ctx = context.WithValue(ctx, logger.SchemaKey, sch.Name)
	log := logger.WithContext(ctx).With(zap.String("component", "strata-cli"))

	normStorage, err := storage.NewNormalizeStorage(extractedDir)
	if err != nil {
		return fmt.Errorf("failed to open extracted files: %w", err)
	}
	itemStorage, err := storage.NewDataItemStorage(outputDir, cfg.Destination.PreferredFileFormat, cfg.Compression, log)
	if err != nil {
		return fmt.Errorf("failed to open job file storage: %w", err)
	}

	log.Info("starting normalization",
		zap.String("extracted", extractedDir),
		zap.String("output", outputDir))

	result, err := normalize.New(itemStorage, normStorage, sch, cfg, log).Run(ctx)
	if err != nil {
		return fmt.Errorf("normalization failed: %w", err)
	}

	if err := sch.SaveFile(schemaFile); err != nil {
		return fmt.Errorf("failed to save schema: %w", err)
	}

	log.Info("normalization completed",
		zap.Int("files", result.Files),
		zap.Int64("rows", result.RowsWritten),
		zap.Int("updated_tables", len(result.SchemaUpdate)))
	return nil
}
