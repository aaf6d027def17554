// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/binder/internal/config"
	"github.com/JaimeStill/binder/internal/infrastructure"
	"github.com/JaimeStill/binder/pkg/middleware"
	"github.com/JaimeStill/binder/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware,
// and registers the domain's lifecycle hooks.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain, err := NewDomain(cfg, runtime)
	if err != nil {
		return nil, err
	}
	if err := domain.Start(runtime.Lifecycle); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, cfg)

	logger := runtime.Infrastructure.Logger
	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.RequestID())
	m.Use(middleware.Logger(logger))
	m.Use(middleware.Recover(logger))
	m.Use(middleware.CORS(&cfg.API.CORS))

	return m, nil
}
