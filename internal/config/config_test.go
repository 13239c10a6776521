package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "bills", cfg.Storage.Bucket)
	assert.Equal(t, "documents", cfg.Events.SubjectPrefix)
	assert.Equal(t, 0.995, cfg.Thresholds.Critical)
	assert.Equal(t, 0.90, cfg.Thresholds.Overall)
	assert.Equal(t, 30*time.Second, cfg.OneBill.Timeout)
	assert.True(t, cfg.Autopilot)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
ai:
  default_provider: gemini
  gemini:
    model: gemini-1.5-pro
thresholds:
  overall: 0.8
onebill:
  timeout: 5s
`), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("ONEBILL_API_KEY", "secret")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env wins over file")
	assert.Equal(t, "gemini", cfg.AI.DefaultProvider)
	assert.Equal(t, "gemini-1.5-pro", cfg.AI.Gemini.Model)
	assert.Equal(t, 0.8, cfg.Thresholds.Overall)
	assert.Equal(t, 0.995, cfg.Thresholds.Critical, "unset thresholds keep their defaults")
	assert.Equal(t, 5*time.Second, cfg.OneBill.Timeout)
	assert.Equal(t, "secret", cfg.OneBill.APIKey)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Equal(t, "0.0.0.0:9100", cfg.Addr())
}

func TestLoad_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)

	t.Setenv("PORT", "eighty")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, DefaultPath, PathFromEnv())
	t.Setenv("CONFIG_PATH", "/etc/parsetastic.yaml")
	assert.Equal(t, "/etc/parsetastic.yaml", PathFromEnv())
}
