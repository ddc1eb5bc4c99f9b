package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "filesystem", cfg.ChunkStore.Type)
	assert.Equal(t, 9000, cfg.Gateway.Port)
	assert.Equal(t, "default", cfg.Gateway.DefaultBucket)
	assert.True(t, cfg.Metadata.SyncWrites)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: DEBUG
  format: json
gateway:
  port: 9100
chunkstore:
  type: memory
shutdown_timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 9100, cfg.Gateway.Port)
	assert.Equal(t, "memory", cfg.ChunkStore.Type)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)

	// Untouched keys keep their defaults.
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  port: 9100\n"), 0644))

	t.Setenv("NIMBUS_GATEWAY_PORT", "9200")
	t.Setenv("NIMBUS_LOGGING_LEVEL", "ERROR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Gateway.Port)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.ChunkStore.Type = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ChunkStore.Type = "s3"
	cfg.ChunkStore.S3.Bucket = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Gateway.Port = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Metadata.InodeRangeEnd = 1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ShutdownTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunkstore:\n  type: bogus\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	require.NoError(t, WriteSample(path, false))

	// The sample round-trips through Load.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Gateway.Port, cfg.Gateway.Port)

	// Refuses to overwrite without force.
	assert.Error(t, WriteSample(path, false))
	assert.NoError(t, WriteSample(path, true))
}
