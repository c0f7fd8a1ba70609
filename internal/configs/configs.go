/*
Package configs loads and validates the application's configuration.

All settings come from environment variables. Chat traffic is served on a raw
TCP listener; the HTTP gateway carries the WebSocket bridge and health checks.
*/
package configs

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig contains every configuration parameter the server needs.
type AppConfig struct {
	// General server settings
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":9400"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`

	// Security settings
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	JWTSecret      string   `env:"JWT_SECRET"`

	// Store settings. DataDir backs the default file store; a non-empty
	// DatabaseDSN switches the server to the Postgres store instead.
	DataDir     string `env:"DATA_DIR" envDefault:"./data"`
	DatabaseDSN string `env:"DATABASE_URL"`

	// Persistence pipeline settings
	PersistWorkers   int `env:"PERSIST_WORKERS" envDefault:"4"`
	PersistQueueSize int `env:"PERSIST_QUEUE_SIZE" envDefault:"1024"`

	// Snapshot backup settings (disabled unless the bucket is set)
	Backup BackupConfig `envPrefix:"S3_"`
}

// BackupConfig holds the S3-compatible storage settings for snapshot backups.
type BackupConfig struct {
	BucketName      string        `env:"BUCKET_NAME"`
	Endpoint        string        `env:"ENDPOINT"`
	AccessKeyID     string        `env:"ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"SECRET_ACCESS_KEY"`
	Interval        time.Duration `env:"BACKUP_INTERVAL" envDefault:"15m"`
}

// Enabled reports whether snapshot backups are configured.
func (b BackupConfig) Enabled() bool {
	return b.BucketName != ""
}

// LoadConfig parses the configuration from environment variables and applies
// the validation rules that cannot be expressed as struct tags.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.HTTPPort < 1024 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("http port %d is outside the allowed range (%d-%d) to avoid privileged ports", cfg.HTTPPort, 1024, 65535)
	}

	if cfg.JWTSecret == "" {
		if cfg.Environment != "development" {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		cfg.JWTSecret = "your_default_insecure_secret_key_change_me"
	}

	if cfg.Backup.Enabled() {
		if cfg.Backup.Endpoint == "" || cfg.Backup.AccessKeyID == "" || cfg.Backup.SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when S3_BUCKET_NAME is set")
		}
	}

	if cfg.PersistWorkers < 1 {
		return nil, fmt.Errorf("PERSIST_WORKERS must be at least 1, got %d", cfg.PersistWorkers)
	}
	if cfg.PersistQueueSize < 1 {
		return nil, fmt.Errorf("PERSIST_QUEUE_SIZE must be at least 1, got %d", cfg.PersistQueueSize)
	}

	return cfg, nil
}
