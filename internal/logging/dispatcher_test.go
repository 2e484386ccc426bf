package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsnap/extension/internal/dispatcher"
	"github.com/gsnap/extension/internal/scheduler"
)

var (
	_ dispatcher.Logger = (*DispatcherLogger)(nil)
	_ scheduler.Logger  = (*DispatcherLogger)(nil)
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "failed to parse log output")
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*DispatcherLogger)
		level string
		msg   string
		want  map[string]any
	}{
		{
			name:  "debug",
			log:   func(l *DispatcherLogger) { l.Debug("test message", "key1", "value1", "key2", 42) },
			level: "debug",
			msg:   "test message",
			want:  map[string]any{"key1": "value1", "key2": float64(42)},
		},
		{
			name:  "info",
			log:   func(l *DispatcherLogger) { l.Info("info message", "status", "ok") },
			level: "info",
			msg:   "info message",
			want:  map[string]any{"status": "ok"},
		},
		{
			name:  "error",
			log:   func(l *DispatcherLogger) { l.Error("error occurred", "code", 500, "reason", "internal") },
			level: "error",
			msg:   "error occurred",
			want:  map[string]any{"code": float64(500), "reason": "internal"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

			tt.log(dl)

			entry := decodeEntry(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.msg, entry["message"])
			for k, v := range tt.want {
				assert.Equal(t, v, entry[k], k)
			}
		})
	}
}

func TestDispatcherLogger_NoKeyValues(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("simple message")

	assert.Equal(t, "simple message", decodeEntry(t, &buf)["message"])
}

func TestDispatcherLogger_OddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("odd", "key", "value", "dangling", 7, "tail")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "value", entry["key"])
	assert.NotContains(t, entry, "tail")
}

func TestDispatcherLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("hidden")

	assert.Empty(t, buf.String())
}

func TestParseZerologLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseZerologLevel(tt.input))
		})
	}
}

func TestNewZerolog_WritesFileAndGelf(t *testing.T) {
	var file, gelf bytes.Buffer
	logger := NewZerolog(&file, &gelf, "info")

	logger.Debug().Msg("filtered")
	logger.Info().Str("group", "GSnap").Msg("tool opened")

	assert.Contains(t, file.String(), "tool opened")
	assert.Contains(t, file.String(), "group=GSnap")
	assert.NotContains(t, file.String(), "filtered")

	entry := decodeEntry(t, &gelf)
	assert.Equal(t, "tool opened", entry["message"])
	assert.Equal(t, "GSnap", entry["group"])
}
