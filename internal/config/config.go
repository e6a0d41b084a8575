package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"
	"gopkg.in/yaml.v3"

	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/provider/gateway"
)

// Storage backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config represents the application configuration.
// Provider and Storage come from the config document; the rest is environment only.
type Config struct {
	Provider ProviderConfig `toml:"provider" yaml:"provider"`
	Storage  StorageConfig  `toml:"storage"  yaml:"storage"`

	Gateway gateway.Config `toml:"-" yaml:"-"`
	Server  ServerConfig   `toml:"-" yaml:"-"`
	CORS    CORSConfig     `toml:"-" yaml:"-"`
}

// ProviderConfig holds routing preferences.
type ProviderConfig struct {
	Name                  string              `toml:"name"                    yaml:"name"                    env:"STARRAY_PROVIDER"`
	Fallbacks             []string            `toml:"fallbacks"               yaml:"fallbacks"`
	DefaultModel          string              `toml:"default_model"           yaml:"default_model"           env:"STARRAY_DEFAULT_MODEL"`
	Temperature           float64             `toml:"temperature"             yaml:"temperature"`
	RequestTimeoutSeconds float64             `toml:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	RoleModels            map[string]string   `toml:"role_models"             yaml:"role_models"`
	RoleFallbackModels    map[string][]string `toml:"role_fallback_models"    yaml:"role_fallback_models"`
}

// StorageConfig controls where sessions and activity logs are kept.
type StorageConfig struct {
	DataDir  string `toml:"data_dir"  yaml:"data_dir"  env:"STARRAY_DATA_DIR"`
	Backend  string `toml:"backend"   yaml:"backend"   env:"STARRAY_STORAGE_BACKEND"`
	RedisURL string `toml:"redis_url" yaml:"redis_url" env:"STARRAY_REDIS_URL"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"120"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"false"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*StorageConfig
	*gateway.Config
	*domain.RoutingConfig
}

// Error describes a configuration failure.
type Error struct {
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Path)
}

func (e *Error) Is(target error) bool {
	return target == domain.ErrConfig
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Default returns the configuration used for keys the document omits.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:                  "openai",
			DefaultModel:          "gpt-4.1",
			Temperature:           0.2,
			RequestTimeoutSeconds: 30,
			Fallbacks:             []string{},
			RoleModels:            map[string]string{},
			RoleFallbackModels:    map[string][]string{},
		},
		Storage: StorageConfig{
			DataDir: ".starray",
			Backend: BackendFile,
		},
	}
}

// Load reads the config document at path and applies environment overrides.
func Load(path string) (*Config, error) {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Path: path, Msg: "Config file not found", Err: err}
		}
		return nil, &Error{Path: path, Msg: "Cannot read config file", Err: err}
	}

	cfg := Default()
	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, &Error{Msg: "Invalid environment configuration", Err: err}
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, &Error{Path: path, Msg: err.Error(), Err: err}
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return &Error{Path: path, Msg: "Invalid YAML in config file", Err: err}
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return &Error{Path: path, Msg: "Invalid TOML in config file", Err: err}
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Provider.Name = strings.TrimSpace(c.Provider.Name)
	if c.Provider.Name == "" {
		c.Provider.Name = "openai"
	}
	c.Provider.DefaultModel = strings.TrimSpace(c.Provider.DefaultModel)
	if c.Provider.DefaultModel == "" {
		c.Provider.DefaultModel = "gpt-4.1"
	}
	if c.Provider.Fallbacks == nil {
		c.Provider.Fallbacks = []string{}
	}
	if c.Provider.RoleModels == nil {
		c.Provider.RoleModels = map[string]string{}
	}
	if c.Provider.RoleFallbackModels == nil {
		c.Provider.RoleFallbackModels = map[string][]string{}
	}

	if c.Storage.DataDir == "" {
		c.Storage.DataDir = ".starray"
	}
	c.Storage.DataDir = ExpandTilde(c.Storage.DataDir)
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
}

func (c *Config) validate() error {
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", c.Provider.Temperature)
	}
	if c.Provider.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %g", c.Provider.RequestTimeoutSeconds)
	}

	switch c.Storage.Backend {
	case BackendFile:
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("storage backend redis requires redis_url")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	return nil
}

// Routing converts the provider section into the router's view.
func (c *Config) Routing() *domain.RoutingConfig {
	return &domain.RoutingConfig{
		Provider:           c.Provider.Name,
		Fallbacks:          c.Provider.Fallbacks,
		DefaultModel:       c.Provider.DefaultModel,
		RoleModels:         c.Provider.RoleModels,
		RoleFallbackModels: c.Provider.RoleFallbackModels,
		Temperature:        c.Provider.Temperature,
		RequestTimeout:     time.Duration(c.Provider.RequestTimeoutSeconds * float64(time.Second)),
	}
}

// SessionsDir is where session records are written.
func (c *Config) SessionsDir() string {
	return c.Storage.SessionsDir()
}

// LogsDir is where per-session activity logs are written.
func (c *Config) LogsDir() string {
	return c.Storage.LogsDir()
}

// SessionsDir is <data_dir>/sessions.
func (s *StorageConfig) SessionsDir() string {
	return filepath.Join(s.DataDir, "sessions")
}

// LogsDir is <data_dir>/logs.
func (s *StorageConfig) LogsDir() string {
	return filepath.Join(s.DataDir, "logs")
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Storage,
		&cfg.Gateway,
		cfg.Routing(),
	}
}
