package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvRenderBackend   = "BINDER_RENDER_BACKEND"
	EnvRenderRemoteURL = "BINDER_RENDER_REMOTE_URL"
	EnvRenderTimeout   = "BINDER_RENDER_TIMEOUT"
	EnvRenderTempDir   = "BINDER_RENDER_TEMP_DIR"
	EnvRenderHTML      = "BINDER_RENDER_HTML"
)

const (
	RenderBackendForm   = "form"
	RenderBackendRemote = "remote"
)

// RenderConfig selects the PDF renderer backend.
// HTML enables headless Chrome printing of SOP and reference documents
// that have no fillable template.
type RenderConfig struct {
	Backend   string `toml:"backend"`
	RemoteURL string `toml:"remote_url"`
	Timeout   string `toml:"timeout"`
	TempDir   string `toml:"temp_dir"`
	HTML      bool   `toml:"html"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *RenderConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *RenderConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *RenderConfig) Merge(overlay *RenderConfig) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.RemoteURL != "" {
		c.RemoteURL = overlay.RemoteURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.TempDir != "" {
		c.TempDir = overlay.TempDir
	}
	if overlay.HTML {
		c.HTML = true
	}
}

func (c *RenderConfig) loadDefaults() {
	if c.Backend == "" {
		c.Backend = RenderBackendForm
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
}

func (c *RenderConfig) loadEnv() {
	if v := os.Getenv(EnvRenderBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvRenderRemoteURL); v != "" {
		c.RemoteURL = v
	}
	if v := os.Getenv(EnvRenderTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvRenderTempDir); v != "" {
		c.TempDir = v
	}
	if v := os.Getenv(EnvRenderHTML); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.HTML = b
		}
	}
}

func (c *RenderConfig) validate() error {
	switch c.Backend {
	case RenderBackendForm:
	case RenderBackendRemote:
		if c.RemoteURL == "" {
			return fmt.Errorf("remote_url required for remote backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
