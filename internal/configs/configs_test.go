package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":9400", cfg.ListenAddr)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 4, cfg.PersistWorkers)
	assert.Equal(t, 1024, cfg.PersistQueueSize)
	assert.NotEmpty(t, cfg.JWTSecret, "development falls back to an insecure default secret")
	assert.False(t, cfg.Backup.Enabled())
}

func TestLoadConfig_ProductionRequiresJWTSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "real-secret")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "real-secret", cfg.JWTSecret)
}

func TestLoadConfig_PortValidation(t *testing.T) {
	tests := []struct {
		name    string
		port    string
		wantErr bool
	}{
		{name: "privileged port", port: "80", wantErr: true},
		{name: "out of range", port: "70000", wantErr: true},
		{name: "valid port", port: "9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HTTP_PORT", tt.port)

			_, err := LoadConfig()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_Backup(t *testing.T) {
	t.Run("bucket without credentials is rejected", func(t *testing.T) {
		t.Setenv("S3_BUCKET_NAME", "chat-backups")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "S3_ENDPOINT")
	})

	t.Run("complete backup config", func(t *testing.T) {
		t.Setenv("S3_BUCKET_NAME", "chat-backups")
		t.Setenv("S3_ENDPOINT", "https://s3.example.com")
		t.Setenv("S3_ACCESS_KEY_ID", "key")
		t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
		t.Setenv("S3_BACKUP_INTERVAL", "5m")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.True(t, cfg.Backup.Enabled())
		assert.Equal(t, 5*time.Minute, cfg.Backup.Interval)
	})
}

func TestLoadConfig_PersistencePipeline(t *testing.T) {
	t.Setenv("PERSIST_WORKERS", "0")
	_, err := LoadConfig()
	assert.Error(t, err)
}
