package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("SESSION_BACKEND", "memory")

	cfg, err := LoadAndValidateConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)

	t.Setenv("API_BASE_URL", "ftp://api.example.com")
	_, err = LoadAndValidateConfig()
	assert.ErrorContains(t, err, "must be 'http' or 'https'")
}

func TestSetupLoggerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&buf, "warn", true)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestInitSessionStore(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "sessions.db"))
	cfg, err := LoadAndValidateConfig()
	require.NoError(t, err)

	var buf bytes.Buffer
	res, err := InitSessionStore(context.Background(), SetupLogger(&buf, "info", false), cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Store)
	assert.NoError(t, res.Cleanup())

	cfg.SessionBackend = "redis"
	_, err = InitSessionStore(context.Background(), SetupLogger(&buf, "info", false), cfg)
	assert.Error(t, err)
}
