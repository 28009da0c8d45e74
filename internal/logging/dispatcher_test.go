package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLast(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(dl *DispatcherLogger)
		level string
		msg   string
	}{
		{"debug", func(dl *DispatcherLogger) { dl.Debug("handling event", "command", "timeline") }, "debug", "handling event"},
		{"info", func(dl *DispatcherLogger) { dl.Info("registered", "command", "timeline") }, "info", "registered"},
		{"error", func(dl *DispatcherLogger) { dl.Error("event failed", "command", "timeline") }, "error", "event failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

			tt.log(dl)

			entry := decodeLast(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.msg, entry["message"])
			assert.Equal(t, "timeline", entry["command"])
		})
	}
}

func TestDispatcherLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("hidden")
	assert.Empty(t, buf.String())

	dl.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestToFields(t *testing.T) {
	fields := toFields([]any{"a", 1, "b", "two", 3, "skipped", "dangling"})

	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, fields)
}

func TestToFields_Empty(t *testing.T) {
	assert.Empty(t, toFields(nil))
}
