package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel(LevelWarn)

	Info("hidden")
	Debug("hidden too")
	Warn("clock sync skipped", "reason", "offline")
	Error("fetch failed", errors.New("boom"), "attempt", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] clock sync skipped reason=offline")
	assert.Contains(t, out, "[ERROR] fetch failed err=boom attempt=1")
}

func TestFormatKVsQuotesAndDropsOdd(t *testing.T) {
	got := formatKVs("title", "Team sync", "n", 3, "dangling")
	require.Equal(t, ` title="Team sync" n=3`, got)
}
