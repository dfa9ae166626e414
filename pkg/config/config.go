// Package config loads process-level configuration: how to reach the
// configuration-store backend and the document backend, plus ambient
// server/logging/tracing settings. It is distinct from the dynamic
// configuration tree served at runtime by domain/configstore.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host      string `json:"host" env:"SERVER_HOST"`
	Port      int    `json:"port" env:"SERVER_PORT"`
	ApiPrefix string `json:"api_prefix" env:"API_PREFIX"`
}

// DatabaseConfig controls the document backend (Postgres, JSONB collections).
type DatabaseConfig struct {
	Driver          string `json:"driver" env:"DATABASE_DRIVER"`
	DSN             string `json:"dsn" env:"DATABASE_DSN"`
	Host            string `json:"host" env:"DATABASE_HOST"`
	Port            int    `json:"port" env:"DATABASE_PORT"`
	User            string `json:"user" env:"DATABASE_USER"`
	Password        string `json:"password" env:"DATABASE_PASSWORD"`
	Name            string `json:"name" env:"DATABASE_NAME"`
	SSLMode         string `json:"sslmode" env:"DATABASE_SSLMODE"`
	MaxOpenConns    int    `json:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `json:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// ConfigStoreConfig controls the connection to the dynamic configuration
// store backend (the same Postgres cluster, by default, using NOTIFY/LISTEN
// for change events).
type ConfigStoreConfig struct {
	DSN         string `json:"dsn" env:"CONFIGSTORE_DSN"`
	RootTable   string `json:"root_table" env:"CONFIGSTORE_TABLE"`
	WatchEvents bool   `json:"watch_events" env:"CONFIGSTORE_WATCH"`
}

// EnumServiceConfig controls the external enum service client.
type EnumServiceConfig struct {
	BaseURL         string        `json:"base_url" env:"ENUM_SERVICE_URL"`
	RefreshInterval time.Duration `json:"refresh_interval" env:"ENUM_REFRESH_INTERVAL"`
	FailOnLoadError bool          `json:"fail_on_load_error" env:"ENUM_FAIL_ON_LOAD_ERROR"`
	Enabled         bool          `json:"enabled" env:"ENUM_SERVICE_ENABLED"`
}

// GlobalsConfig mirrors the `/{ENV}/Globals` configuration-store subtree;
// values there, when present, override these process defaults.
type GlobalsConfig struct {
	IsEnvValidate              bool `json:"is_env_validate"`
	FailOnEnumLoadFailure      bool `json:"fail_on_enum_load_failure"`
	EnumRefreshIntervalSeconds int  `json:"enum_refresh_interval_seconds"`
	EnableEnumService          bool `json:"enable_enum_service"`
}

// TracingConfig configures OTLP/Tracing exporters.
type TracingConfig struct {
	Endpoint           string            `json:"endpoint" env:"TRACING_OTLP_ENDPOINT"`
	Insecure           bool              `json:"insecure" env:"TRACING_OTLP_INSECURE"`
	ServiceName        string            `json:"service_name" env:"TRACING_SERVICE_NAME"`
	ResourceAttributes map[string]string `json:"resource_attributes" mapstructure:"resource_attributes"`
	AttributesEnv      string            `json:"-" yaml:"-" env:"TRACING_OTLP_ATTRIBUTES"`
}

// Config is the top-level configuration structure.
type Config struct {
	Env         string            `json:"env" env:"ENV"`
	Service     string            `json:"service" env:"SERVICE"`
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	ConfigStore ConfigStoreConfig `json:"config_store"`
	EnumService EnumServiceConfig `json:"enum_service"`
	Globals     GlobalsConfig     `json:"globals"`
	Logging     LoggingConfig     `json:"logging"`
	Tracing     TracingConfig     `json:"tracing"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8080,
			ApiPrefix: "/api",
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		ConfigStore: ConfigStoreConfig{
			RootTable:   "config_nodes",
			WatchEvents: true,
		},
		EnumService: EnumServiceConfig{
			RefreshInterval: 300 * time.Second,
			FailOnLoadError: true,
			Enabled:         true,
		},
		Globals: GlobalsConfig{
			IsEnvValidate:              false,
			FailOnEnumLoadFailure:      true,
			EnumRefreshIntervalSeconds: 300,
			EnableEnumService:          true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePrefix: "gateway",
		},
		Tracing: TracingConfig{},
	}
}

// ConnectionString builds a PostgreSQL connection string using host parameters.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Load loads configuration from file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)
	cfg.normalize()

	return cfg, nil
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

// LoadConfig is a helper used by tests to load JSON config snippets.
func LoadConfig(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

// applyDatabaseURLOverride aligns config loading with cmd/gateway: DATABASE_URL
// overrides any file-based DSN to reduce setup friction.
func applyDatabaseURLOverride(cfg *Config) {
	if cfg == nil {
		return
	}
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

// Validate fails fast on the two required environment variables called out
// for the gateway: ENV and SERVICE must both be non-empty.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Env) == "" {
		return fmt.Errorf("config: ENV is required")
	}
	if strings.TrimSpace(c.Service) == "" {
		return fmt.Errorf("config: SERVICE is required")
	}
	return nil
}

func (t *TracingConfig) normalize() {
	if t == nil {
		return
	}
	t.MergeAttributes(t.AttributesEnv)
}

// MergeAttributes merges comma-separated key=value pairs into ResourceAttributes.
func (t *TracingConfig) MergeAttributes(raw string) {
	if t == nil {
		return
	}
	pairs := parseAttributePairs(raw)
	if len(pairs) == 0 {
		return
	}
	if t.ResourceAttributes == nil {
		t.ResourceAttributes = make(map[string]string, len(pairs))
	}
	for k, v := range pairs {
		if k == "" {
			continue
		}
		t.ResourceAttributes[k] = v
	}
}

func parseAttributePairs(raw string) map[string]string {
	result := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		val := ""
		if len(kv) > 1 {
			val = strings.TrimSpace(kv[1])
		}
		result[key] = val
	}
	return result
}

func (c *Config) normalize() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.Server.ApiPrefix) == "" {
		c.Server.ApiPrefix = "/api"
	}
	c.Tracing.normalize()
}
