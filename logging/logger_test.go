package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestRuntimeLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "json", Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown", "k", "v")
	l.Error("shown too")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.Equal(t, "v", lines[0]["k"])
	assert.Equal(t, "ERROR", lines[1]["level"])
}

func TestRuntimeLogger_ScopedAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelDebug, Output: &buf})

	scoped := base.WithComponent("engine").WithAgent("chat_agent").With("run", 7)
	scoped.Info("hello")
	base.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "engine", lines[0]["component"])
	assert.Equal(t, "chat_agent", lines[0]["agent_id"])
	assert.EqualValues(t, 7, lines[0]["run"])

	_, hasComponent := lines[1]["component"]
	assert.False(t, hasComponent, "clones must not leak into the parent")
}

func TestRuntimeLogger_LogDelivery(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Output: &buf})

	l.LogDelivery("m1", "agent.TextMessage", "chat", time.Millisecond, nil)
	l.LogDelivery("m2", "int", "echo", time.Millisecond, errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "Message delivered", lines[0]["msg"])
	assert.Equal(t, true, lines[0]["success"])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestRuntimeLogger_LogModelCall(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(LogLevelInfo, "json", false)
	l.logger = slog.New(slog.NewJSONHandler(&buf, nil))

	l.LogModelCall("gpt-4o", 42, time.Second, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "gpt-4o", lines[0]["model"])
	assert.EqualValues(t, 42, lines[0]["token_count"])
}

func TestRuntimeLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "text", Output: &buf})

	l.Info("hello", "who", "world")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "who=world")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogLevelDebug, false},
		{"INFO", LogLevelInfo, false},
		{"", LogLevelInfo, false},
		{"warning", LogLevelWarn, false},
		{"error", LogLevelError, false},
		{"loud", LogLevelInfo, true},
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

func TestNoOpLogger(_ *testing.T) {
	var l Logger = NoOpLogger{}
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
}

type recordingLogger struct {
	msgs []string
	args [][]any
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.rec(msg, args) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.rec(msg, args) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.rec(msg, args) }
func (r *recordingLogger) Error(msg string, args ...any) { r.rec(msg, args) }

func (r *recordingLogger) rec(msg string, args []any) {
	r.msgs = append(r.msgs, msg)
	r.args = append(r.args, args)
}

func TestWithAttrs(t *testing.T) {
	t.Run("runtime logger", func(t *testing.T) {
		var buf bytes.Buffer
		l := WithAttrs(NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf}), "agent_id", "echo")
		l.Info("hi", "k", 1)

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "echo", lines[0]["agent_id"])
		assert.EqualValues(t, 1, lines[0]["k"])
	})

	t.Run("slog adapter", func(t *testing.T) {
		var buf bytes.Buffer
		l := WithAttrs(NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil))), "agent_id", "echo")
		l.Warn("hi")

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "echo", lines[0]["agent_id"])
	})

	t.Run("custom logger", func(t *testing.T) {
		rec := &recordingLogger{}
		l := WithAttrs(rec, "agent_id", "echo")
		l.Error("boom", "k", "v")

		require.Len(t, rec.msgs, 1)
		assert.Equal(t, []any{"agent_id", "echo", "k", "v"}, rec.args[0])
	})

	t.Run("nil and noop", func(t *testing.T) {
		assert.Equal(t, NoOpLogger{}, WithAttrs(nil, "k", "v"))
		assert.Equal(t, NoOpLogger{}, WithAttrs(NoOpLogger{}, "k", "v"))
	})
}
