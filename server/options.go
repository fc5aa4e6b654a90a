package server

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type Option func(*Options)

type Options struct {
	Address  string
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	Context  context.Context
}

func WithAddress(addr string) Option {
	return func(o *Options) {
		o.Address = addr
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithGatherer picks the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *Options) {
		o.Gatherer = g
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Address:  ":8080",
		Gatherer: prometheus.DefaultGatherer,
		Context:  context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return options
}
