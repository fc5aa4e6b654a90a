package repository

import (
	"context"
	"log/slog"
)

const (
	DefaultTable = "MediFlow-Triages"
	TableEnv     = "DYNAMODB_TABLE"
	DefaultLimit = 10
)

type Option func(*Options)

type Options struct {
	Table    string
	Location string
	Region   string
	Logger   *slog.Logger
	Context  context.Context
}

func WithTable(table string) Option {
	return func(o *Options) {
		o.Table = table
	}
}

func WithLocation(loc string) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

func WithRegion(region string) Option {
	return func(o *Options) {
		o.Region = region
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Table:   DefaultTable,
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if len(options.Table) == 0 {
		options.Table = DefaultTable
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return options
}

type ListOption func(*ListOptions)

type ListOptions struct {
	Limit int
}

func WithLimit(limit int) ListOption {
	return func(o *ListOptions) {
		o.Limit = limit
	}
}

func NewListOptions(opts ...ListOption) ListOptions {
	options := ListOptions{
		Limit: DefaultLimit,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
