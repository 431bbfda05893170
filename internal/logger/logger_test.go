package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("Console", func(t *testing.T) {
		log, err := NewLogger("debug", "console")
		assert.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("JSON", func(t *testing.T) {
		log, err := NewLogger("warn", "json")
		assert.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("Off", func(t *testing.T) {
		log, err := NewLogger("off", "console")
		assert.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := NewLogger("loud", "console")
		assert.Error(t, err)
	})
}
