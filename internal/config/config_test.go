package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageBackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "uploads", cfg.Storage.Bucket)
	assert.Equal(t, "service_orders", cfg.Records.Table)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
port = 9090
locale = "en"

[storage]
backend = "supabase"
public_base_url = ""

[records]
backend = "supabase"

[supabase]
endpoint = "https://project.supabase.co/"
credential = "file-key"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SUPABASE_KEY", "env-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "en", cfg.App.Locale)
	assert.Equal(t, "env-key", cfg.Supabase.Credential)
	assert.Equal(t, "https://project.supabase.co", cfg.PublicBaseURL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "s3" },
			wantErr: "unsupported storage backend",
		},
		{
			name:    "unknown records backend",
			mutate:  func(c *Config) { c.Records.Backend = "sheet" },
			wantErr: "unsupported records backend",
		},
		{
			name:    "unknown database driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "unsupported database driver",
		},
		{
			name:    "supabase without credential",
			mutate:  func(c *Config) { c.Records.Backend = RecordsBackendSupabase; c.Supabase.Endpoint = "https://x" },
			wantErr: "supabase endpoint and credential are required",
		},
		{
			name:    "empty bucket",
			mutate:  func(c *Config) { c.Storage.Bucket = " " },
			wantErr: "storage bucket is required",
		},
		{
			name:    "local backend without public base",
			mutate:  func(c *Config) { c.Storage.PublicBaseURL = "" },
			wantErr: "public_base_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSNs(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.User = "app"
	cfg.Database.Password = "secret"

	assert.Equal(t, "app:secret@tcp(127.0.0.1:3306)/service_orders?parseTime=true&loc=UTC&charset=utf8mb4", cfg.MySQLDSN())
	assert.Equal(t, "host=127.0.0.1 port=3306 user=app password=secret dbname=service_orders sslmode=disable", cfg.PostgresDSN())
}

func TestLoadEnvLists(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example, ,https://b.example ")
	t.Setenv("AUTH_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.CORSOrigins)
	assert.True(t, cfg.Auth.Enabled)
}
