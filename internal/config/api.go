package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/binder/pkg/formatting"
	"github.com/JaimeStill/binder/pkg/middleware"
	"github.com/JaimeStill/binder/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "BINDER_CORS_ENABLED",
	Origins:          "BINDER_CORS_ORIGINS",
	AllowedMethods:   "BINDER_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "BINDER_CORS_ALLOWED_HEADERS",
	ExposedHeaders:   "BINDER_CORS_EXPOSED_HEADERS",
	AllowCredentials: "BINDER_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "BINDER_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "BINDER_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "BINDER_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, CORS, and pagination settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes. Finalize guarantees it parses.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxUploadSize)
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if size, err := formatting.ParseBytes(c.MaxUploadSize); err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	} else if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "25MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("BINDER_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("BINDER_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
}
