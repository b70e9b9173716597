package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/upb/todo-backend/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.ObservabilityConfig
		wantErr   bool
		wantLevel zapcore.Level
	}{
		{name: "json info", cfg: config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"}, wantLevel: zapcore.InfoLevel},
		{name: "text debug", cfg: config.ObservabilityConfig{LogLevel: "debug", LogFormat: "text"}, wantLevel: zapcore.DebugLevel},
		{name: "uppercase level", cfg: config.ObservabilityConfig{LogLevel: "WARN"}, wantLevel: zapcore.WarnLevel},
		{name: "bad level", cfg: config.ObservabilityConfig{LogLevel: "loud"}, wantErr: true},
		{name: "bad format", cfg: config.ObservabilityConfig{LogLevel: "info", LogFormat: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
		})
	}
}
