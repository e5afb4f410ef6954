package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Registry RegistryConfig `koanf:"registry"`
	Sync     SyncConfig     `koanf:"sync"`
	Sources  SourcesConfig  `koanf:"sources"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxConns        int           `koanf:"max_conns"`
	MinConns        int           `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RegistryConfig struct {
	URL   string `koanf:"url" validate:"required,url"`
	Token string `koanf:"token" validate:"required"`

	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond int           `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst"`
	RetryAttempts     int           `koanf:"retry_attempts" validate:"gt=0"`
	BackoffFactor     float64       `koanf:"backoff_factor" validate:"gt=0"`
}

type SyncConfig struct {
	Site             string        `koanf:"site"`
	Interval         time.Duration `koanf:"interval"`
	DeleteGraceDays  int           `koanf:"delete_grace_days" validate:"gte=1"`
	FetchTimeout     time.Duration `koanf:"fetch_timeout"`
	ApplyConcurrency int           `koanf:"apply_concurrency" validate:"gte=1"`

	// Precedence overrides the built-in attribute -> source priority table.
	// Keys are attribute names, values ordered source identifiers.
	Precedence map[string][]string `koanf:"precedence"`
}

type SourcesConfig struct {
	FortiGate FortiGateConfig `koanf:"fortigate"`
	Intune    IntuneConfig    `koanf:"intune"`
	ESET      ESETConfig      `koanf:"eset"`
}

type FortiGateConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Token   string `koanf:"token"`
}

type IntuneConfig struct {
	Enabled      bool   `koanf:"enabled"`
	TenantID     string `koanf:"tenant_id"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
}

type ESETConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`
	Token   string `koanf:"token"`
}

// Load builds the configuration from defaults, an optional YAML file and
// REGSYNC_-prefixed environment variables, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Registry: RegistryConfig{
			Timeout:           30 * time.Second,
			RequestsPerSecond: 10,
			Burst:             20,
			RetryAttempts:     3,
			BackoffFactor:     1.0,
		},
		Sync: SyncConfig{
			Interval:         6 * time.Hour,
			DeleteGraceDays:  7,
			FetchTimeout:     2 * time.Minute,
			ApplyConcurrency: 4,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Key names themselves contain underscores (log_level,
	// delete_grace_days), so an env name cannot be split on "_"
	// mechanically. Resolve it against the keys loaded so far.
	envKeys := make(map[string]string)
	for _, key := range k.Keys() {
		envKeys[strings.ReplaceAll(key, ".", "_")] = key
	}
	if err := k.Load(env.Provider("REGSYNC_", ".", func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, "REGSYNC_"))
		if key, ok := envKeys[name]; ok {
			return key
		}
		return name
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// GracePeriod returns the configured deletion grace as a duration.
func (c *SyncConfig) GracePeriod() time.Duration {
	return time.Duration(c.DeleteGraceDays) * 24 * time.Hour
}
