// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/pos-tracker/attachments"
	"github.com/warp/pos-tracker/tracker"
)

// Persistence drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all server configuration
type Config struct {
	Port        int
	Persistence PersistenceConfig
	Blob        attachments.Config
	SeedPath    string

	// BackupInterval is how often the scheduler snapshots the collection.
	// Zero disables scheduled backups.
	BackupInterval time.Duration

	LogLevel       slog.Level
	CORSOrigins    []string
	MaxUploadBytes int64
}

// PersistenceConfig selects the record storage backend.
type PersistenceConfig struct {
	Driver      string
	SQLitePath  string
	DatabaseURL string
	StorageKey  string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return Config{}, fmt.Errorf("PORT: %w", err)
	}
	interval, err := time.ParseDuration(getEnv("BACKUP_INTERVAL", "24h"))
	if err != nil {
		return Config{}, fmt.Errorf("BACKUP_INTERVAL: %w", err)
	}
	if interval < 0 {
		return Config{}, fmt.Errorf("BACKUP_INTERVAL: must not be negative")
	}
	maxMB, err := strconv.Atoi(getEnv("MAX_UPLOAD_MB", "10"))
	if err != nil || maxMB <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_MB: invalid value %q", os.Getenv("MAX_UPLOAD_MB"))
	}
	level, err := ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	pathStyle, err := strconv.ParseBool(getEnv("BLOB_S3_PATH_STYLE", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("BLOB_S3_PATH_STYLE: %w", err)
	}

	cfg := Config{
		Port: port,
		Persistence: PersistenceConfig{
			Driver:      strings.ToLower(getEnv("PERSISTENCE_DRIVER", DriverSQLite)),
			SQLitePath:  getEnv("SQLITE_PATH", "postracker.db"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			StorageKey:  getEnv("STORAGE_KEY", tracker.DefaultStorageKey),
		},
		Blob: attachments.Config{
			Driver: getEnv("BLOB_DRIVER", string(attachments.DriverFilesystem)),
			FSRoot: getEnv("BLOB_FS_ROOT", "./blobdata"),
			S3: attachments.S3Config{
				Bucket:    os.Getenv("BLOB_S3_BUCKET"),
				Region:    os.Getenv("BLOB_S3_REGION"),
				Endpoint:  os.Getenv("BLOB_S3_ENDPOINT"),
				PathStyle: pathStyle,
			},
		},
		SeedPath:       os.Getenv("SEED_PATH"),
		BackupInterval: interval,
		LogLevel:       level,
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		MaxUploadBytes: int64(maxMB) << 20,
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Persistence.Driver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("PERSISTENCE_DRIVER: unknown driver %q", c.Persistence.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT: %d out of range", c.Port)
	}
	if strings.EqualFold(c.Blob.Driver, string(attachments.DriverS3)) && c.Blob.S3.Bucket == "" {
		return fmt.Errorf("BLOB_S3_BUCKET is required for the s3 blob driver")
	}
	return nil
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
