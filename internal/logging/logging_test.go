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

func TestFor_PrefersContextLogger(t *testing.T) {
	var base, carried bytes.Buffer
	baseLogger := New(&base, "info")
	ctx := ContextWithLogger(context.Background(), New(&carried, "info"))

	For(ctx, baseLogger, "circulation", "book", "holder", "a@example.com").Info("done")

	assert.Zero(t, base.Len())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(carried.Bytes(), &entry))
	assert.Equal(t, "circulation", entry["service"])
	assert.Equal(t, "book", entry["operation"])
	assert.Equal(t, "a@example.com", entry["holder"])
}

func TestFor_FallsBackToBase(t *testing.T) {
	var base bytes.Buffer
	For(context.Background(), New(&base, "info"), "digest", "").Info("run")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(base.Bytes(), &entry))
	assert.Equal(t, "digest", entry["service"])
	assert.NotContains(t, entry, "operation")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
