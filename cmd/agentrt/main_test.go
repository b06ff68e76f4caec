package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("AGENTRT_LOG_LEVEL", "error")

	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.Execute()

	return out.String(), err
}

func TestChat_SingleMessage(t *testing.T) {
	out, err := run(t, "", "chat", "--message", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "assistant: Mock response to: hello")
}

func TestChat_Loop(t *testing.T) {
	out, err := run(t, "first\n\nsecond\nquit\nignored\n", "chat", "--provider", "mock")
	require.NoError(t, err)

	assert.Contains(t, out, "assistant: Mock response to: first")
	assert.Contains(t, out, "assistant: Mock response to: second")
	assert.NotContains(t, out, "ignored")
}

func TestChat_TemplateInstruction(t *testing.T) {
	out, err := run(t, "", "chat", "--instruction", "You are {{.Recipient}}.", "--message", "hi")
	require.NoError(t, err)
	assert.Contains(t, out, "assistant: Mock response to: hi")

	_, err = run(t, "", "chat", "--instruction", "{{.Recipient", "--message", "hi")
	require.ErrorContains(t, err, "model.instruction")
}

func TestChat_InvalidProvider(t *testing.T) {
	_, err := run(t, "", "chat", "--provider", "llama", "--message", "hi")
	require.ErrorContains(t, err, "unknown model provider")
}

func TestConfigValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentrt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  provider: mock\n  name: canned\n"), 0o600))

	out, err := run(t, "", "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration ok (provider=mock model=canned)")

	_, err = run(t, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "config", "validate")
	require.Error(t, err)
}

func TestServe_Once(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentrt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`model:
  provider: mock
schedules:
  - name: standup
    spec: "@daily"
    message: status report
  - spec: "*/5 * * * *"
    message: heartbeat
`), 0o600))

	out, err := run(t, "", "--config", path, "serve", "--once")
	require.NoError(t, err)

	assert.Contains(t, out, "[standup] assistant: Mock response to: status report")
	assert.Contains(t, out, "[schedule-2] assistant: Mock response to: heartbeat")
}

func TestServe_NoSchedules(t *testing.T) {
	_, err := run(t, "", "serve")
	require.ErrorContains(t, err, "no schedules configured")
}

func TestScanReader(t *testing.T) {
	var out bytes.Buffer
	r := newLineReader(strings.NewReader("one\n"), &out)

	line, err := r.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "one", line)

	_, err = r.ReadLine("> ")
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> > \n", out.String())
	require.NoError(t, r.Close())
}
