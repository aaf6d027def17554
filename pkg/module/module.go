// Package module mounts self-contained HTTP modules under single-segment
// prefixes, each with its own middleware stack.
package module

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/JaimeStill/binder/pkg/middleware"
)

// Module serves an inner handler below a prefix such as "/api". The
// inner handler sees paths with the prefix removed.
type Module struct {
	prefix     string
	inner      http.Handler
	middleware middleware.System

	once    sync.Once
	handler http.Handler
}

// New creates a Module. It panics unless prefix is a single segment
// with a leading slash.
func New(prefix string, inner http.Handler) *Module {
	if prefix == "" || prefix[0] != '/' || strings.Count(prefix, "/") != 1 {
		panic(fmt.Sprintf("module prefix must be a single segment like /api: %q", prefix))
	}
	return &Module{
		prefix:     prefix,
		inner:      inner,
		middleware: middleware.New(),
	}
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Use appends mw to the module's stack. Calls after the first request
// has been served have no effect.
func (m *Module) Use(mw middleware.Func) {
	m.middleware.Use(mw)
}

// ServeHTTP strips the prefix and dispatches through the middleware stack.
func (m *Module) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.once.Do(func() { m.handler = m.middleware.Apply(m.inner) })

	path := strings.TrimPrefix(r.URL.Path, m.prefix)
	if path == "" {
		path = "/"
	}

	r2 := r.Clone(r.Context())
	r2.URL.Path = path
	r2.URL.RawPath = ""
	m.handler.ServeHTTP(w, r2)
}
