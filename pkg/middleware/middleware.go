// Package middleware holds the HTTP middleware shared by service modules:
// request IDs, access logging, panic recovery and CORS.
package middleware

import (
	"net/http"
	"slices"
)

// Func wraps a handler with cross-cutting behavior.
type Func = func(http.Handler) http.Handler

// System is an ordered middleware stack. The first Func added is the
// outermost wrapper, so it sees the request first.
type System interface {
	Use(mw Func)
	Apply(handler http.Handler) http.Handler
}

type chain struct {
	stack []Func
}

// New creates a System seeded with mws in order.
func New(mws ...Func) System {
	return &chain{stack: slices.Clone(mws)}
}

func (c *chain) Use(mw Func) {
	c.stack = append(c.stack, mw)
}

func (c *chain) Apply(handler http.Handler) http.Handler {
	for _, mw := range slices.Backward(c.stack) {
		handler = mw(handler)
	}
	return handler
}
