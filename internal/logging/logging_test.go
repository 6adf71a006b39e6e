package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenamesECSFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelInfo, &buf)

	logger.Info("driving md", "md", "example.org")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Contains(t, decoded, "@timestamp")
	assert.Contains(t, decoded, "log.level")
	assert.Equal(t, "driving md", decoded["message"])
	assert.Equal(t, "example.org", decoded["md"])
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelDebug, &buf)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	assert.NotNil(t, FromContext(context.Background()))
}

func TestStepAddsAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelInfo, &buf)
	ctx := WithLogger(context.Background(), logger)

	Step(ctx, "setup-authz").Info("starting")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "setup-authz", decoded["step"])
}
