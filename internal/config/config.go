// Package config handles application configuration using Viper.
// Viper merges defaults, a YAML file, and environment variables, in that priority order.
// Go convention: configuration is loaded into structs, not accessed as raw key-value pairs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	FlyBase   FlyBaseConfig   `mapstructure:"flybase"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

type AuthConfig struct {
	// TenantKeys lists the API keys issued to tenants. It is a list rather
	// than a map because Viper lowercases map keys.
	TenantKeys []TenantKey `mapstructure:"tenant_keys"`
	AdminKeys  []string    `mapstructure:"admin_keys"`
}

// TenantKey binds one API key to the tenant it acts for.
type TenantKey struct {
	Key    string `mapstructure:"key"`
	Tenant string `mapstructure:"tenant"`
}

// TenantsByKey returns the key to tenant lookup used by the auth middleware.
func (a AuthConfig) TenantsByKey() map[string]string {
	out := make(map[string]string, len(a.TenantKeys))
	for _, tk := range a.TenantKeys {
		out[tk.Key] = tk.Tenant
	}
	return out
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// FlyBaseConfig controls the bulk stock file download and cache.
type FlyBaseConfig struct {
	URL          string        `mapstructure:"url"`
	CacheDir     string        `mapstructure:"cache_dir"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	SearchLimit  int           `mapstructure:"search_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultFlyBaseURL is the FlyBase precomputed stocks file for the current release.
const DefaultFlyBaseURL = "https://s3ftp.flybase.org/releases/current/precomputed_files/stocks/stocks_FB2025_01.tsv.gz"

// Load reads configuration from a YAML file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Defaults apply when neither file nor env provides a value
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.database_path", "./storage/flystocks.db")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("flybase.url", DefaultFlyBaseURL)
	v.SetDefault("flybase.cache_dir", "./storage/flybase")
	v.SetDefault("flybase.max_age", 30*24*time.Hour)
	v.SetDefault("flybase.fetch_timeout", 60*time.Second)
	v.SetDefault("flybase.search_limit", 20)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("log.level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// A missing default config file is fine; defaults + env are enough
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// FLYSTOCKS_ prefix + nested keys: FLYSTOCKS_FLYBASE_MAX_AGE=240h → flybase.max_age
	v.SetEnvPrefix("FLYSTOCKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.FlyBase.URL == "" {
		return fmt.Errorf("flybase.url must be set")
	}
	if c.FlyBase.MaxAge <= 0 {
		return fmt.Errorf("flybase.max_age must be positive, got %s", c.FlyBase.MaxAge)
	}
	if c.FlyBase.FetchTimeout <= 0 {
		return fmt.Errorf("flybase.fetch_timeout must be positive, got %s", c.FlyBase.FetchTimeout)
	}
	for i, tk := range c.Auth.TenantKeys {
		if tk.Key == "" || tk.Tenant == "" {
			return fmt.Errorf("auth.tenant_keys[%d] needs both key and tenant", i)
		}
	}
	if c.FlyBase.SearchLimit <= 0 {
		return fmt.Errorf("flybase.search_limit must be positive, got %d", c.FlyBase.SearchLimit)
	}
	return nil
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
