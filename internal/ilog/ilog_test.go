package ilog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToStderr(t *testing.T) {
	logger, err := New(Config{})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNew_WritesToConfiguredPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	logger, err := New(Config{Level: "debug", Path: path})
	require.NoError(t, err)

	logger.Info("hello")
	assert.FileExists(t, path)
}

func TestNew_DisableWireLoggerClampsDebugToInfo(t *testing.T) {
	logger, err := New(Config{Level: "debug", DisableWireLogger: true})
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), -4)) // slog.LevelDebug
}
