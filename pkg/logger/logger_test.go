package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := newLogger(Config{Level: "loud", Encoding: "json"})
	require.Error(t, err)
}

func TestNewLoggerBuilds(t *testing.T) {
	log, err := newLogger(Config{Level: "debug", Encoding: "json"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestWithContextAttachesFields(t *testing.T) {
	base := Get()

	// no values, no child logger
	assert.Same(t, base, WithContext(context.Background()))

	ctx := context.WithValue(context.Background(), LoadIDKey, "1700000000.000001")
	ctx = context.WithValue(ctx, SchemaKey, "shop")
	assert.NotSame(t, base, WithContext(ctx))
}
