// Package config provides the configuration for the Strata normalization
// stage: destination capabilities, system column toggles, and columnar
// streaming settings. Configuration is loaded from YAML with environment
// variable substitution and validated before use.
package config

import (
	"fmt"

	"github.com/strata-etl/strata/pkg/compression"
)

// FileFormat identifies an item file encoding.
type FileFormat string

const (
	// FormatJSONL is newline-delimited JSON item batches
	FormatJSONL FileFormat = "jsonl"
	// FormatParquet is the Apache Parquet columnar container
	FormatParquet FileFormat = "parquet"
)

// Capabilities describes what the destination can accept. The normalizers
// consult it for the rewrite decision and the timestamp precision fix.
type Capabilities struct {
	// PreferredFileFormat is the encoding job files are written in
	PreferredFileFormat FileFormat `yaml:"preferred_file_format" json:"preferred_file_format"`
	// SupportedFileFormats lists every encoding the destination loads
	SupportedFileFormats []FileFormat `yaml:"supported_file_formats" json:"supported_file_formats"`
	// TimestampPrecision is the maximum fractional-seconds precision
	TimestampPrecision int `yaml:"timestamp_precision" json:"timestamp_precision"`
}

// Supports reports whether the destination accepts a file format.
func (c *Capabilities) Supports(f FileFormat) bool {
	for _, s := range c.SupportedFileFormats {
		if s == f {
			return true
		}
	}
	return false
}

// ParquetConfig controls columnar normalization.
type ParquetConfig struct {
	// AddLoadID injects the _dlt_load_id system column
	AddLoadID bool `yaml:"add_load_id" json:"add_load_id"`
	// AddRowID injects the _dlt_id system column
	AddRowID bool `yaml:"add_row_id" json:"add_row_id"`
	// RowGroupsPerRead sets the streaming chunk size on the rewrite path
	RowGroupsPerRead int `yaml:"row_groups_per_read" json:"row_groups_per_read"`
}

// NormalizeConfig is the configuration of one normalize run.
type NormalizeConfig struct {
	// SchemaName names the schema the run belongs to
	SchemaName string `yaml:"schema_name" json:"schema_name"`
	// LoadID overrides the generated load id (used by tests and re-runs)
	LoadID string `yaml:"load_id,omitempty" json:"load_id,omitempty"`
	// Compression applied to row-oriented job files
	Compression compression.Algorithm `yaml:"compression" json:"compression"`

	Destination Capabilities  `yaml:"destination" json:"destination"`
	Parquet     ParquetConfig `yaml:"parquet" json:"parquet"`

	// Logging configuration
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewNormalizeConfig returns a configuration with production defaults:
// parquet-preferring destination, microsecond timestamps, both system
// columns injected.
func NewNormalizeConfig(schemaName string) *NormalizeConfig {
	return &NormalizeConfig{
		SchemaName:  schemaName,
		Compression: compression.None,
		Destination: Capabilities{
			PreferredFileFormat:  FormatParquet,
			SupportedFileFormats: []FileFormat{FormatParquet, FormatJSONL},
			TimestampPrecision:   6,
		},
		Parquet: ParquetConfig{
			AddLoadID:        true,
			AddRowID:         true,
			RowGroupsPerRead: 1,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for correctness.
func (c *NormalizeConfig) Validate() error {
	if c.SchemaName == "" {
		return fmt.Errorf("schema_name is required")
	}
	if c.Destination.PreferredFileFormat == "" {
		return fmt.Errorf("destination preferred_file_format is required")
	}
	if !c.Destination.Supports(c.Destination.PreferredFileFormat) {
		return fmt.Errorf("preferred file format %q is not among supported formats", c.Destination.PreferredFileFormat)
	}
	if c.Destination.TimestampPrecision < 0 || c.Destination.TimestampPrecision > 9 {
		return fmt.Errorf("timestamp_precision must be between 0 and 9")
	}
	if c.Parquet.RowGroupsPerRead <= 0 {
		return fmt.Errorf("row_groups_per_read must be positive")
	}
	return nil
}
