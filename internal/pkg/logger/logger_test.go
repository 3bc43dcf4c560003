package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{level: "debug", expected: zapcore.DebugLevel},
		{level: "warn", expected: zapcore.WarnLevel},
		{level: "error", expected: zapcore.ErrorLevel},
		{level: "", expected: zapcore.InfoLevel},
		{level: "verbose", expected: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log, err := New(tt.level)
			require.NoError(t, err)
			require.NotNil(t, log)

			assert.True(t, log.Core().Enabled(tt.expected))
			if tt.expected > zapcore.DebugLevel {
				assert.False(t, log.Core().Enabled(tt.expected-1))
			}
		})
	}
}

func TestNew_Outputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.log")

	log, err := New("info", path)
	require.NoError(t, err)

	log.Info("dataset loaded")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dataset loaded")
	assert.Contains(t, string(data), `"service":"permit-map"`)
}
