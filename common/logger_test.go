package common

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("", "test")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("debug", "test")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger("loud", "test")
	require.Error(t, err)
	require.Contains(t, err.Error(), `invalid log level "loud"`)
}

func TestNewTestLogger(t *testing.T) {
	logger, logs := NewTestLogger()
	logger.Debug("first")
	logger.Warn("second")
	require.Equal(t, 2, logs.Len())
	require.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
}
