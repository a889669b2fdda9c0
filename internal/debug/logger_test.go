package debug

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(slog.LevelInfo, "json", &buf))
	t.Cleanup(func() { _ = Init(slog.LevelInfo, "text", nil) })

	Debug("hidden")
	Info("request served", "status", 200)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "request served", entry["msg"])
	assert.Equal(t, float64(200), entry["status"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(slog.LevelWarn, "text", &buf))
	t.Cleanup(func() { _ = Init(slog.LevelInfo, "text", nil) })

	Info("dropped")
	assert.Empty(t, buf.String())
	assert.False(t, Enabled())

	SetLevel(slog.LevelDebug)
	assert.True(t, Enabled())
	With("component", "test").Debug("kept")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), "component=test")
}

func TestInit_InvalidFormat(t *testing.T) {
	assert.Error(t, Init(slog.LevelInfo, "xml", nil))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
