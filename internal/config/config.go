package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	StorageBackendSupabase = "supabase"
	StorageBackendMinIO    = "minio"
	StorageBackendLocal    = "local"

	RecordsBackendDatabase = "database"
	RecordsBackendSupabase = "supabase"

	DatabaseDriverMySQL    = "mysql"
	DatabaseDriverPostgres = "postgres"
)

type Config struct {
	App      AppConfig      `toml:"app"`
	Log      LogConfig      `toml:"log"`
	Auth     AuthConfig     `toml:"auth"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
	Supabase SupabaseConfig `toml:"supabase"`
	Storage  StorageConfig  `toml:"storage"`
	Records  RecordsConfig  `toml:"records"`
	Session  SessionConfig  `toml:"session"`
	Upload   UploadConfig   `toml:"upload"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
	Locale  string `toml:"locale"`
	// CORSOrigins limits the JSON API to these origins. Empty allows all.
	CORSOrigins []string `toml:"cors_origins"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type AuthConfig struct {
	Enabled         bool   `toml:"enabled"`
	JWTSecret       string `toml:"jwt_secret"`
	JWTExpireMinute int    `toml:"jwt_expire_minute"`
}

type DatabaseConfig struct {
	Driver   string `toml:"driver"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DB       string `toml:"db"`
	Params   string `toml:"params"`
	SSLMode  string `toml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// RabbitMQConfig leaves URL empty to run without events and without the
// cleanup worker.
type RabbitMQConfig struct {
	URL               string `toml:"url"`
	EventQueue        string `toml:"event_queue"`
	OrphanQueue       string `toml:"orphan_queue"`
	OrphanMaxAttempts int    `toml:"orphan_max_attempts"`

	// OrphanRetryBaseSeconds is the wait before the first cleanup retry. Each
	// later retry waits twice as long.
	OrphanRetryBaseSeconds int `toml:"orphan_retry_base_seconds"`
}

type SupabaseConfig struct {
	Endpoint       string `toml:"endpoint"`
	Credential     string `toml:"credential"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type StorageConfig struct {
	Backend string `toml:"backend"`
	Bucket  string `toml:"bucket"`
	// PublicBaseURL is the base of every derived attachment URL. Empty means
	// the Supabase endpoint for the supabase backend.
	PublicBaseURL  string `toml:"public_base_url"`
	LocalPath      string `toml:"local_path"`
	MinIOEndpoint  string `toml:"minio_endpoint"`
	MinIOAccessKey string `toml:"minio_access_key"`
	MinIOSecretKey string `toml:"minio_secret_key"`
	MinIOUseSSL    bool   `toml:"minio_use_ssl"`
}

type RecordsConfig struct {
	Backend string `toml:"backend"`
	Table   string `toml:"table"`
}

type SessionConfig struct {
	TTLMinutes      int    `toml:"ttl_minutes"`
	BusyLockSeconds int    `toml:"busy_lock_seconds"`
	CookieName      string `toml:"cookie_name"`
}

type UploadConfig struct {
	MaxSizeMB int `toml:"max_size_mb"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects backend combinations that cannot be wired.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageBackendSupabase, StorageBackendMinIO, StorageBackendLocal:
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	switch c.Records.Backend {
	case RecordsBackendDatabase, RecordsBackendSupabase:
	default:
		return fmt.Errorf("unsupported records backend %q", c.Records.Backend)
	}
	switch c.Database.Driver {
	case DatabaseDriverMySQL, DatabaseDriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	usesSupabase := c.Storage.Backend == StorageBackendSupabase || c.Records.Backend == RecordsBackendSupabase
	if usesSupabase && (c.Supabase.Endpoint == "" || c.Supabase.Credential == "") {
		return fmt.Errorf("supabase endpoint and credential are required")
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if c.PublicBaseURL() == "" {
		return fmt.Errorf("storage public_base_url is required for backend %q", c.Storage.Backend)
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

// PublicBaseURL is the address prefix of derived attachment locations.
func (c *Config) PublicBaseURL() string {
	base := c.Storage.PublicBaseURL
	if base == "" && c.Storage.Backend == StorageBackendSupabase {
		base = c.Supabase.Endpoint
	}
	return strings.TrimRight(base, "/")
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DB,
		c.Database.Params,
	)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DB,
		c.Database.SSLMode,
	)
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxSizeMB) << 20
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "service-order-attachments",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
			Locale:  "id",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			Enabled:         false,
			JWTSecret:       "change-me-in-production",
			JWTExpireMinute: 720,
		},
		Database: DatabaseConfig{
			Driver:   DatabaseDriverMySQL,
			Host:     "127.0.0.1",
			Port:     3306,
			User:     "root",
			Password: "",
			DB:       "service_orders",
			Params:   "parseTime=true&loc=UTC&charset=utf8mb4",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
			DB:   0,
		},
		RabbitMQ: RabbitMQConfig{
			URL:                    "",
			EventQueue:             "attachments.created",
			OrphanQueue:            "attachments.orphan_cleanup",
			OrphanMaxAttempts:      5,
			OrphanRetryBaseSeconds: 30,
		},
		Supabase: SupabaseConfig{
			TimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			Backend:       StorageBackendLocal,
			Bucket:        "uploads",
			PublicBaseURL: "http://localhost:8080",
			LocalPath:     "data/objects",
		},
		Records: RecordsConfig{
			Backend: RecordsBackendDatabase,
			Table:   "service_orders",
		},
		Session: SessionConfig{
			TTLMinutes:      60,
			BusyLockSeconds: 120,
			CookieName:      "so_session",
		},
		Upload: UploadConfig{
			MaxSizeMB: 20,
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.App.Locale = getEnv("APP_LOCALE", cfg.App.Locale)
	if raw := getEnv("CORS_ALLOW_ORIGINS", ""); raw != "" {
		cfg.App.CORSOrigins = splitList(raw)
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Auth.Enabled = getEnvAsBool("AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpireMinute = getEnvAsInt("JWT_EXPIRE_MINUTE", cfg.Auth.JWTExpireMinute)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvAsInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DB = getEnv("DB_NAME", cfg.Database.DB)
	cfg.Database.Params = getEnv("DB_PARAMS", cfg.Database.Params)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.EventQueue = getEnv("RABBITMQ_EVENT_QUEUE", cfg.RabbitMQ.EventQueue)
	cfg.RabbitMQ.OrphanQueue = getEnv("RABBITMQ_ORPHAN_QUEUE", cfg.RabbitMQ.OrphanQueue)
	cfg.RabbitMQ.OrphanMaxAttempts = getEnvAsInt("RABBITMQ_ORPHAN_MAX_ATTEMPTS", cfg.RabbitMQ.OrphanMaxAttempts)
	cfg.RabbitMQ.OrphanRetryBaseSeconds = getEnvAsInt("RABBITMQ_ORPHAN_RETRY_BASE_SECONDS", cfg.RabbitMQ.OrphanRetryBaseSeconds)

	cfg.Supabase.Endpoint = getEnv("SUPABASE_URL", cfg.Supabase.Endpoint)
	cfg.Supabase.Credential = getEnv("SUPABASE_KEY", cfg.Supabase.Credential)
	cfg.Supabase.TimeoutSeconds = getEnvAsInt("SUPABASE_TIMEOUT_SECONDS", cfg.Supabase.TimeoutSeconds)

	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Bucket = getEnv("STORAGE_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.PublicBaseURL = getEnv("STORAGE_PUBLIC_BASE_URL", cfg.Storage.PublicBaseURL)
	cfg.Storage.LocalPath = getEnv("STORAGE_LOCAL_PATH", cfg.Storage.LocalPath)
	cfg.Storage.MinIOEndpoint = getEnv("MINIO_ENDPOINT", cfg.Storage.MinIOEndpoint)
	cfg.Storage.MinIOAccessKey = getEnv("MINIO_ACCESS_KEY", cfg.Storage.MinIOAccessKey)
	cfg.Storage.MinIOSecretKey = getEnv("MINIO_SECRET_KEY", cfg.Storage.MinIOSecretKey)
	cfg.Storage.MinIOUseSSL = getEnvAsBool("MINIO_USE_SSL", cfg.Storage.MinIOUseSSL)

	cfg.Records.Backend = getEnv("RECORDS_BACKEND", cfg.Records.Backend)
	cfg.Records.Table = getEnv("RECORDS_TABLE", cfg.Records.Table)

	cfg.Session.TTLMinutes = getEnvAsInt("SESSION_TTL_MINUTES", cfg.Session.TTLMinutes)
	cfg.Session.BusyLockSeconds = getEnvAsInt("SESSION_BUSY_LOCK_SECONDS", cfg.Session.BusyLockSeconds)
	cfg.Session.CookieName = getEnv("SESSION_COOKIE_NAME", cfg.Session.CookieName)

	cfg.Upload.MaxSizeMB = getEnvAsInt("UPLOAD_MAX_SIZE_MB", cfg.Upload.MaxSizeMB)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
