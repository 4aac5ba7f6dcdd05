package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DICOMNODE_AE_TITLE", "DICOMNODE_IP", "DICOMNODE_PORT",
		"DICOMNODE_REQUIRE_CALLING_AET", "DICOMNODE_ROOT_DATA_DIRECTORY",
		"DICOMNODE_PROCESSING_DIRECTORY", "DICOMNODE_LOG_LEVEL",
		"DICOMNODE_LOG_PATH", "DICOMNODE_DISABLE_WIRE_LOGGER",
	} {
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "PIPELINE", cfg.AETitle)
	assert.Equal(t, "0.0.0.0", cfg.IP)
	assert.Equal(t, 11112, cfg.Port)
	assert.Nil(t, cfg.RequireCallingAET)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DisableWireLogger)
	assert.Equal(t, "0.0.0.0:11112", cfg.Address())
}

func TestLoad_ReadsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DICOMNODE_AE_TITLE", "MYNODE")
	t.Setenv("DICOMNODE_PORT", "104")
	t.Setenv("DICOMNODE_REQUIRE_CALLING_AET", "SCU1, SCU2")
	t.Setenv("DICOMNODE_DISABLE_WIRE_LOGGER", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "MYNODE", cfg.AETitle)
	assert.Equal(t, 104, cfg.Port)
	assert.Equal(t, []string{"SCU1", "SCU2"}, cfg.RequireCallingAET)
	assert.True(t, cfg.DisableWireLogger)
}

func TestLoad_InvalidPortErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("DICOMNODE_PORT", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}
