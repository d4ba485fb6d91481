package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStructuredLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("pipeline").
		With("build_id", "b-1").
		Warn(context.Background(), errors.New("low quality"), "asset below threshold", "asset", "logo")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "asset below threshold", entry["msg"])
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "b-1", entry["build_id"])
	assert.Equal(t, "logo", entry["asset"])
	assert.Equal(t, "low quality", entry["error"])
}

func TestStructuredLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "hidden debug")
	logger.Info(context.Background(), "hidden info")
	logger.Error(context.Background(), nil, "visible error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible error")
}

func TestNopLogger(t *testing.T) {
	logger := OrNop(nil)
	assert.NotPanics(t, func() {
		logger.With("a", 1).WithComponent("x").Info(context.Background(), "nothing")
	})
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	perf := StartOperation(NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf}), "process")
	perf.End(context.Background(), "assets", 3)

	out := buf.String()
	assert.True(t, strings.Contains(out, "operation=process"))
	assert.Contains(t, out, "duration_ms=")
	assert.Contains(t, out, "assets=3")
}
