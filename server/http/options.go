package http

import (
	"context"
	"net/http"
	"slices"

	"github.com/w-h-a/triage/server"
)

type Middleware func(h http.Handler) http.Handler

type middlewareKey struct{}

// WithMiddleware wraps the triage router. The first middleware given sees the
// request first; request logging and tracing always sit outside all of them.
func WithMiddleware(ms ...Middleware) server.Option {
	return func(o *server.Options) {
		existing, _ := MiddlewareFrom(o.Context)
		o.Context = context.WithValue(o.Context, middlewareKey{}, slices.Concat(existing, ms))
	}
}

func MiddlewareFrom(ctx context.Context) ([]Middleware, bool) {
	ms, ok := ctx.Value(middlewareKey{}).([]Middleware)
	return ms, ok
}
