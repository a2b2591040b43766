package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevel(t *testing.T) {
	logger, err := New("loud", "", true)
	assert.Error(t, err)
	assert.Nil(t, logger)
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.log")

	logger, err := New("debug", path, false)
	require.NoError(t, err)
	logger.Info("[test] hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[test] hello")
}

func TestNew_NoOutputs(t *testing.T) {
	logger, err := New("info", "", false)
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Info("[test] dropped") })
}

func TestNew_Console(t *testing.T) {
	logger, err := New("warn", "", true)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
	assert.True(t, logger.Core().Enabled(1))
}
