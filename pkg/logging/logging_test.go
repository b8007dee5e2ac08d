package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: FormatJSON, Level: InfoLevel, Output: &buf})
	require.NoError(t, err)

	ctx := context.Background()
	logger.Debug(ctx, "hidden", nil)
	logger.Info(ctx, "analysis started", Fields{"directory": "/tmp/x"})
	logger.Error(ctx, "classifier failed", errors.New("exit status 1"), Fields{"action": "organize"})
	require.NoError(t, logger.Close())

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 2)

	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "analysis started", entries[0]["message"])
	assert.Equal(t, "/tmp/x", entries[0]["directory"])
	assert.Contains(t, entries[0], "timestamp")

	assert.Equal(t, "error", entries[1]["level"])
	assert.Equal(t, "exit status 1", entries[1]["error"])
	assert.Equal(t, "organize", entries[1]["action"])
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: FormatText, Level: DebugLevel, Output: &buf})
	require.NoError(t, err)

	logger.Debug(context.Background(), "scan", Fields{"files": 3})
	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "scan")
	assert.Contains(t, out, `"files": 3`)
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: FormatJSON, Level: InfoLevel, Output: &buf})
	require.NoError(t, err)

	child := logger.WithFields(Fields{"session": "abc"})
	child.Warn(context.Background(), "entry dropped", Fields{"index": 2})

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0]["session"])
	assert.Equal(t, float64(2), entries[0]["index"])
	assert.Equal(t, "warn", entries[0]["level"])
}

func TestFileOutputCreatesDirectory(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "dir", "fylr.log")
	logger, err := New(Config{Format: FormatJSON, Level: InfoLevel, Path: logPath})
	require.NoError(t, err)

	logger.Info(context.Background(), "hello", nil)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "fylr.log")
	logger, err := New(Config{
		Format:     FormatJSON,
		Level:      InfoLevel,
		Path:       logPath,
		MaxSize:    200,
		MaxBackups: 2,
	})
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		logger.Info(context.Background(), "rotation test message", Fields{"i": i})
	}
	require.NoError(t, logger.Close())

	for _, p := range []string{logPath, logPath + ".1", logPath + ".2"} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	_, err = os.Stat(logPath + ".3")
	assert.True(t, os.IsNotExist(err), "only MaxBackups backups are kept")
}

func TestConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "fylr.log")
	logger, err := New(Config{Format: FormatJSON, Level: InfoLevel, Path: logPath})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				logger.Info(context.Background(), fmt.Sprintf("g%d-%d", g, i), nil)
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Len(t, decodeLines(t, data), 200)
}

func TestNopLogger(t *testing.T) {
	var logger Logger = NewNopLogger()
	logger.Info(context.Background(), "ignored", Fields{"k": "v"})
	logger.Error(context.Background(), "ignored", errors.New("x"), nil)
	assert.Same(t, logger, logger.WithFields(Fields{"a": 1}))
	assert.NoError(t, logger.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"Warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), tt.input)
	}
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
