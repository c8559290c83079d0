package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
		wantErr  bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tc := range tests {
		level, err := ParseLevel(tc.input)
		if tc.wantErr {
			assert.Error(t, err, "level %q", tc.input)
			continue
		}
		require.NoError(t, err, "level %q", tc.input)
		assert.Equal(t, tc.expected, level)
	}
}

func TestInit_WritesToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "feedhub.log")

	require.NoError(t, Init(Config{Level: "debug", File: logFile}))
	t.Cleanup(func() { _ = Init(Config{}) })
	Infof("hello %s", "world")
	Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
}

func TestInit_RejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Init(Config{Level: "loud"}))
}

func TestHelpers_ReportCallerOutsidePackage(t *testing.T) {
	prevZ, prevL := Z, L
	t.Cleanup(func() { Z, L = prevZ, prevL })

	core, logs := observer.New(zapcore.DebugLevel)
	Z = zap.New(core, callerOptions...)
	L = Z.Sugar()

	Warnf("feed %q is slow", "A")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, `feed "A" is slow`, entries[0].Message)
	require.True(t, entries[0].Caller.Defined)
	assert.Equal(t, "logger_test.go", filepath.Base(entries[0].Caller.File))
}
