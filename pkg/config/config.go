// Package config builds the single Config value the service runs with.
// Components receive it (or the parts they need) explicitly at construction.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cometwk/standards/pkg/env"
)

const (
	BackendDrive  = "drive"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// ConfigError reports missing or inconsistent startup configuration.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

type Config struct {
	ServiceName string
	Version     string

	Host     string
	Port     int
	LogLevel string
	LogDir   string

	CacheDir      string
	CacheTTL      time.Duration
	CacheMaxBytes int64

	Backend        string
	AllowedFolders []string
	GatewayRPS     float64

	DriveCredentialsFile string

	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string

	DBDriver     string
	DBURL        string
	StoreRESTURL string
	StoreRESTKey string

	AutoSyncEnabled  bool
	AutoSyncInterval time.Duration
	RedisURL         string

	SentryDSN string
}

// Load 读取环境变量, 只在启动时调用一次
func Load() *Config {
	return &Config{
		ServiceName: env.String("SERVICE_NAME", "standards-resolver"),
		Version:     env.String("SERVICE_VERSION", "1.0.0"),

		Host:     env.String("HOST", ""),
		Port:     env.Int("PORT", 4444),
		LogLevel: env.String("LOG_LEVEL", "info"),
		LogDir:   env.DirPath("LOG_DIR", "./log"),

		CacheDir:      env.DirPath("CACHE_DIR", "./cache"),
		CacheTTL:      hours(env.Float("CACHE_TTL_HOURS", 24)),
		CacheMaxBytes: int64(env.Int("CACHE_MAX_SIZE_MB", 1024)) * 1024 * 1024,

		Backend:        strings.ToLower(env.String("GATEWAY_BACKEND", BackendDrive)),
		AllowedFolders: env.Strings("ALLOWED_FOLDER_IDS"),
		GatewayRPS:     env.Float("GATEWAY_RPS", 0),

		DriveCredentialsFile: env.String("GOOGLE_APPLICATION_CREDENTIALS", ""),

		S3Bucket:   env.String("S3_BUCKET", ""),
		S3Region:   env.String("S3_REGION", "us-east-1"),
		S3Endpoint: env.String("S3_ENDPOINT", ""),
		S3Prefix:   env.String("S3_PREFIX", ""),

		DBDriver:     env.String("DB_DRIVER", "sqlite3"),
		DBURL:        env.String("DB_URL", ""),
		StoreRESTURL: env.String("SUPABASE_URL", ""),
		StoreRESTKey: env.String("SUPABASE_SERVICE_ROLE_KEY", ""),

		AutoSyncEnabled:  env.Bool("AUTO_SYNC_ENABLED", true),
		AutoSyncInterval: hours(env.Float("AUTO_SYNC_INTERVAL_HOURS", 6)),
		RedisURL:         env.String("REDIS_URL", ""),

		SentryDSN: env.String("SENTRY_DSN", ""),
	}
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// Validate 检查所选后端与存储的凭据是否齐全
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDrive:
		if c.DriveCredentialsFile == "" {
			return &ConfigError{"GOOGLE_APPLICATION_CREDENTIALS", "required for drive backend"}
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return &ConfigError{"S3_BUCKET", "required for s3 backend"}
		}
	case BackendMemory:
	default:
		return &ConfigError{"GATEWAY_BACKEND", fmt.Sprintf("unknown backend %q", c.Backend)}
	}
	if c.StoreRESTURL == "" && c.DBURL == "" {
		return &ConfigError{"DB_URL", "either DB_URL or SUPABASE_URL must be set"}
	}
	if c.StoreRESTURL != "" && c.StoreRESTKey == "" {
		return &ConfigError{"SUPABASE_SERVICE_ROLE_KEY", "required with SUPABASE_URL"}
	}
	if c.CacheTTL <= 0 {
		return &ConfigError{"CACHE_TTL_HOURS", "must be positive"}
	}
	if c.CacheMaxBytes <= 0 {
		return &ConfigError{"CACHE_MAX_SIZE_MB", "must be positive"}
	}
	if c.AutoSyncEnabled && c.AutoSyncInterval <= 0 {
		return &ConfigError{"AUTO_SYNC_INTERVAL_HOURS", "must be positive"}
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
