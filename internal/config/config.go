// Package config loads runtime configuration for the polifeed CLI.
//
// Sources are applied in order, later ones winning:
//
//  1. Built-in defaults (see Default).
//  2. An optional YAML file.
//  3. Environment variables, including any found in a .env file.
//
// Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	developmentBaseURL = "http://localhost:8000"
	productionBaseURL  = "https://api.example.com"
)

// Environment variables
const (
	EnvVarEnv         = "POLIFEED_ENV"
	EnvVarBaseURL     = "POLIFEED_API_BASE_URL"
	EnvVarTimeout     = "POLIFEED_API_TIMEOUT"
	EnvVarStorage     = "POLIFEED_STORAGE"
	EnvVarStorageDir  = "POLIFEED_STORAGE_DIR"
	EnvVarRedisAddr   = "POLIFEED_REDIS_ADDR"
	EnvVarRedisPrefix = "POLIFEED_REDIS_PREFIX"
)

// Storage backends
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

var (
	ErrMissingBaseURL = errors.New("api base url is required")
	ErrInvalidStorage = errors.New("unknown storage backend")
)

type Config struct {
	Env     string        `yaml:"env"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`

	Endpoints Endpoints `yaml:"-"`
}

type APIConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Prefix   string        `yaml:"prefix"`
	Timeout  time.Duration `yaml:"timeout"`
	Cache    bool          `yaml:"cache"`
	CacheDir string        `yaml:"cache_dir"`
}

type StorageConfig struct {
	Backend     string        `yaml:"backend"`
	Dir         string        `yaml:"dir"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisPrefix string        `yaml:"redis_prefix"`
	RedisTTL    time.Duration `yaml:"redis_ttl"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Env: EnvDevelopment,
		API: APIConfig{
			Prefix:  DefaultAPIPrefix,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend:     StorageFile,
			RedisPrefix: "polifeed",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty) and the environment. envFile names a dotenv file; a missing file is
// ignored.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvVarEnv); v != "" {
		c.Env = v
	}
	if v := os.Getenv(EnvVarBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvVarTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvVarTimeout, err)
		}
		c.API.Timeout = d
	}
	if v := os.Getenv(EnvVarStorage); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv(EnvVarStorageDir); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv(EnvVarRedisAddr); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv(EnvVarRedisPrefix); v != "" {
		c.Storage.RedisPrefix = v
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = EnvDevelopment
	}

	if c.API.BaseURL == "" {
		c.API.BaseURL = productionBaseURL
		if c.Env == EnvDevelopment {
			c.API.BaseURL = developmentBaseURL
		}
	}

	if c.API.Prefix == "" {
		c.API.Prefix = DefaultAPIPrefix
	}

	if c.API.Timeout <= 0 {
		c.API.Timeout = 30 * time.Second
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageFile
	}

	c.Endpoints = NewEndpoints(c.API.Prefix)
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return ErrMissingBaseURL
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base url %q", c.API.BaseURL)
	}

	switch c.Storage.Backend {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("redis address is required for redis storage")
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStorage, c.Storage.Backend)
	}

	return nil
}
