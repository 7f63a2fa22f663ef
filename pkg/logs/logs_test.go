package logs

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := fanout([]slog.Handler{
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	})

	logger := slog.New(h).With("component", "test")
	logger.Info("only first")
	logger.Warn("both")

	assert.Contains(t, a.String(), "only first")
	assert.Contains(t, a.String(), "both")
	assert.NotContains(t, b.String(), "only first")
	assert.Contains(t, b.String(), `"component":"test"`)
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
}
