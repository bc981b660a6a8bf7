package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestJSONLoggerCarriesContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "json")

	ctx := ContextWithRequestID(context.Background(), "req-123")
	log.WithContext(ctx).WithComponent("gradcam").WithError(errors.New("boom")).Info("attribution failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "gradcam", entry["component"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "attribution failed", entry["msg"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "error", "text")
	log.Info("hidden")
	assert.Empty(t, buf.String())
	log.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithContextWithoutRequestID(t *testing.T) {
	log := Discard()
	assert.Same(t, log, log.WithContext(context.Background()))
	assert.Equal(t, "", RequestID(context.Background()))
}
