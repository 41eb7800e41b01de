// Package testutil provides testing utilities for Strata
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/strata-etl/strata/pkg/schema"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// TestSchema creates an empty schema with the default snake_case naming.
func TestSchema(t *testing.T, name string) *schema.Schema {
	t.Helper()
	return schema.New(name)
}

// WriteExtractedFile writes one extracted item file into dir and returns
// its bare name, ready for NormalizeStorage.
func WriteExtractedFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		t.Fatalf("failed to write extracted file %s: %v", name, err)
	}
	return name
}
