package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// File store backends.
const (
	FileStoreMemory   = "memory"
	FileStoreLocal    = "local"
	FileStoreSupabase = "supabase"
)

type Config struct {
	Port               string   `mapstructure:"PORT"`
	Env                string   `mapstructure:"ENV"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32    `mapstructure:"DB_MIN_CONNS"`
	DBSchema           string   `mapstructure:"DB_SCHEMA"`
	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	AdminPassword      string   `mapstructure:"ADMIN_PASSWORD"`
	AdminPasswordHash  string   `mapstructure:"ADMIN_PASSWORD_HASH"`
	AdminSessionSecret string   `mapstructure:"ADMIN_SESSION_SECRET"`
	FileStore          string   `mapstructure:"FILE_STORE"`
	FileDir            string   `mapstructure:"FILE_DIR"`
	PublicBaseURL      string   `mapstructure:"PUBLIC_BASE_URL"`
	SupabaseURL        string   `mapstructure:"SUPABASE_URL"`
	SupabaseServiceKey string   `mapstructure:"SUPABASE_SERVICE_KEY"`
	FileBucket         string   `mapstructure:"FILE_BUCKET"`
	SeedFile           string   `mapstructure:"SEED_FILE"`
	Timezone           string   `mapstructure:"TIMEZONE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"CORS_ORIGINS", "ADMIN_PASSWORD", "ADMIN_PASSWORD_HASH", "ADMIN_SESSION_SECRET",
	"FILE_STORE", "FILE_DIR", "PUBLIC_BASE_URL", "SUPABASE_URL",
	"SUPABASE_SERVICE_KEY", "FILE_BUCKET", "SEED_FILE", "TIMEZONE",
}

// Load reads .env (when present) and the environment. A missing
// DATABASE_URL is not an error: the server then runs in local mode.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("FILE_STORE", FileStoreMemory)
	v.SetDefault("FILE_DIR", "./data/files")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8000")
	v.SetDefault("FILE_BUCKET", "patient-files")
	v.SetDefault("TIMEZONE", "Local")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.FileStore = strings.ToLower(strings.TrimSpace(cfg.FileStore))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasBackend reports whether a store of record is configured. Without one
// the board keeps everything in memory for the life of the process.
func (c *Config) HasBackend() bool {
	return c.DatabaseURL != ""
}

// AdminEnabled reports whether the admin gate can issue sessions.
func (c *Config) AdminEnabled() bool {
	return c.AdminSessionSecret != "" && (c.AdminPasswordHash != "" || c.AdminPassword != "")
}

// Validate checks that the configuration is safe to run. Outside
// development the admin password must be a bcrypt hash and the session
// secret at least 32 bytes.
func (c *Config) Validate() error {
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	if !c.IsDev() {
		if c.AdminPassword != "" && c.AdminPasswordHash == "" {
			return fmt.Errorf("ADMIN_PASSWORD is only accepted in development; set ADMIN_PASSWORD_HASH (ENV=%q)", c.Env)
		}
		if (c.AdminPasswordHash != "" || c.AdminPassword != "") && len(c.AdminSessionSecret) < 32 {
			return fmt.Errorf("ADMIN_SESSION_SECRET must be at least 32 characters outside development")
		}
	}
	if c.AdminPasswordHash != "" && !strings.HasPrefix(c.AdminPasswordHash, "$2") {
		return fmt.Errorf("ADMIN_PASSWORD_HASH is not a bcrypt hash")
	}

	switch c.FileStore {
	case FileStoreMemory:
	case FileStoreLocal:
		if c.FileDir == "" {
			return fmt.Errorf("FILE_DIR is required when FILE_STORE is %q", FileStoreLocal)
		}
	case FileStoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when FILE_STORE is %q", FileStoreSupabase)
		}
		if c.FileBucket == "" {
			return fmt.Errorf("FILE_BUCKET is required when FILE_STORE is %q", FileStoreSupabase)
		}
	default:
		return fmt.Errorf("FILE_STORE must be %q, %q or %q, got %q", FileStoreMemory, FileStoreLocal, FileStoreSupabase, c.FileStore)
	}

	return nil
}
