package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blacktokki/notesearcher/internal/config"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("DB_HOST", "test-host")
	defer os.Unsetenv("DB_HOST")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	content := []byte("DB_HOST=loaded-from-file")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.SyncIntervalSeconds)
	assert.Equal(t, 100, cfg.UpsertBatchSize)
	assert.Equal(t, "passage: ", cfg.PassagePrefix)
	assert.Equal(t, "query: ", cfg.QueryPrefix)
}

func TestLoadConfig_PipelineOverrides(t *testing.T) {
	os.Setenv("CHUNK_SIZE", "800")
	os.Setenv("SYNC_INTERVAL_SECONDS", "30")
	defer os.Unsetenv("CHUNK_SIZE")
	defer os.Unsetenv("SYNC_INTERVAL_SECONDS")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 30, cfg.SyncIntervalSeconds)
}

func TestValidate(t *testing.T) {
	t.Run("overlap must be below chunk size", func(t *testing.T) {
		cfg := &config.Config{
			DBHost: "h", DBUser: "u", DBName: "d",
			ChunkSize: 100, ChunkOverlap: 100, UpsertBatchSize: 10,
		}
		err := cfg.Validate()
		assert.ErrorIs(t, err, config.ErrMissingRequired)
	})

	t.Run("missing db host", func(t *testing.T) {
		cfg := &config.Config{DBUser: "u", DBName: "d", ChunkSize: 100, UpsertBatchSize: 10}
		err := cfg.Validate()
		assert.ErrorIs(t, err, config.ErrMissingRequired)
		assert.Contains(t, err.Error(), "DB_HOST")
	})
}
