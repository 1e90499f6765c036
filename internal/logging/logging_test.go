package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/config"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closer := New(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1, MaxBackups: 1})

	l := Component(logger, "index")
	l.Info().Int("segments", 3).Msg("reindexed")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"index"`)
	assert.Contains(t, string(data), `"segments":3`)
	assert.Contains(t, string(data), `"app":"pdfqa"`)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closer := New(config.LogConfig{Level: "loud", File: path})
	defer closer.Close()

	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
