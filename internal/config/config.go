// Package config loads service configuration from TOML files, a .env file,
// and BINDER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/binder/pkg/database"
	"github.com/JaimeStill/binder/pkg/lease"
	"github.com/JaimeStill/binder/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"
	DotEnvFile           = ".env"

	EnvBinderEnv             = "BINDER_ENV"
	EnvBinderShutdownTimeout = "BINDER_SHUTDOWN_TIMEOUT"
	EnvBinderVersion         = "BINDER_VERSION"
	EnvTemplatesCatalog      = "BINDER_TEMPLATES_CATALOG"
)

// DatabaseEnv names the BINDER_DB_* variables shared by the server and migrate.
var DatabaseEnv = &database.Env{
	Host:            "BINDER_DB_HOST",
	Port:            "BINDER_DB_PORT",
	Name:            "BINDER_DB_NAME",
	User:            "BINDER_DB_USER",
	Password:        "BINDER_DB_PASSWORD",
	SSLMode:         "BINDER_DB_SSL_MODE",
	MaxOpenConns:    "BINDER_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "BINDER_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "BINDER_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "BINDER_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Provider:         "BINDER_STORAGE_PROVIDER",
	ContainerName:    "BINDER_STORAGE_CONTAINER_NAME",
	ConnectionString: "BINDER_STORAGE_CONNECTION_STRING",
	AccountURL:       "BINDER_STORAGE_ACCOUNT_URL",
	Endpoint:         "BINDER_STORAGE_ENDPOINT",
	AccessKey:        "BINDER_STORAGE_ACCESS_KEY",
	SecretKey:        "BINDER_STORAGE_SECRET_KEY",
	UseSSL:           "BINDER_STORAGE_USE_SSL",
}

var leaseEnv = &lease.Env{
	Enabled: "BINDER_LEASE_ENABLED",
	URL:     "BINDER_LEASE_REDIS_URL",
	TTL:     "BINDER_LEASE_TTL",
	Prefix:  "BINDER_LEASE_PREFIX",
}

// TemplatesConfig points at an external template catalog.
// When CatalogPath is empty the embedded catalog is used.
type TemplatesConfig struct {
	CatalogPath string `toml:"catalog_path"`
}

// Config is the root configuration for the binder service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	API             APIConfig       `toml:"api"`
	Logging         LoggingConfig   `toml:"logging"`
	Autofill        AutofillConfig  `toml:"autofill"`
	Render          RenderConfig    `toml:"render"`
	Editor          EditorConfig    `toml:"editor"`
	Lease           lease.Config    `toml:"lease"`
	Templates       TemplatesConfig `toml:"templates"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the BINDER_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvBinderEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads .env (if present) into the process environment, then the base
// config (if present), applies any environment overlay, and finalizes all values.
// Variables already set in the environment take precedence over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Parse decodes TOML data into a Config without finalizing it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	if overlay.Templates.CatalogPath != "" {
		c.Templates.CatalogPath = overlay.Templates.CatalogPath
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Logging.Merge(&overlay.Logging)
	c.Autofill.Merge(&overlay.Autofill)
	c.Render.Merge(&overlay.Render)
	c.Editor.Merge(&overlay.Editor)
	c.Lease.Merge(&overlay.Lease)
}

// Finalize applies defaults, environment overrides, and validation to every section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(DatabaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"logging", c.Logging.Finalize},
		{"autofill", c.Autofill.Finalize},
		{"render", c.Render.Finalize},
		{"editor", c.Editor.Finalize},
		{"lease", func() error { return c.Lease.Finalize(leaseEnv) }},
	}

	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvBinderShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvBinderVersion); v != "" {
		c.Version = v
	}
	if v := os.Getenv(EnvTemplatesCatalog); v != "" {
		c.Templates.CatalogPath = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func overlayPath() string {
	if env := os.Getenv(EnvBinderEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
