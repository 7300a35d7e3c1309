package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []Entry {
	t.Helper()
	var out []Entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		out = append(out, e)
	}
	return out
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("tracker", "WARN", &buf)

	log.Debug(Entry{Action: "d"})
	log.Info(Entry{Action: "i"})
	log.Warn(Entry{Action: "w"})
	log.Error(Entry{Action: "e", Error: &ErrObj{Msg: "boom"}})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0].Level)
	assert.Equal(t, "ERROR", lines[1].Level)
	assert.Equal(t, "boom", lines[1].Error.Msg)
	assert.Equal(t, "tracker", lines[1].Service)
	assert.NotEmpty(t, lines[1].Timestamp)
}

func TestContextLoggerCarriesIDs(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("api", "DEBUG", &buf)

	log.WithContext("req-1", "del-1").Info(Entry{Action: "phase_changed"})
	log.WithFields(map[string]any{"driver_id": "d1", "service": "ignored"}).Info(Entry{Action: "x"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "req-1", lines[0].RequestID)
	assert.Equal(t, "del-1", lines[0].DeliveryID)
	assert.NotContains(t, lines[0].Additional, "request_id")

	assert.Equal(t, "d1", lines[1].Additional["driver_id"])
	assert.NotContains(t, lines[1].Additional, "service")
	assert.Contains(t, lines[1].Additional, "caller")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" debug "))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLoggerWithOptionsWritesFiles(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLoggerWithOptions("tracker", "INFO", dir)
	require.NoError(t, err)

	log.Info(Entry{Action: "tracking_started"})
	log.Error(Entry{Action: "tracking_stopped"})
	log.Close()

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "tracking_started")
	assert.Contains(t, string(info), "tracking_stopped")

	errs, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "tracking_started")
	assert.Contains(t, string(errs), "tracking_stopped")
}
