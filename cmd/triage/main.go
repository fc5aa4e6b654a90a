package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/w-h-a/triage/repository"
	"github.com/w-h-a/triage/repository/dynamodb"
	"github.com/w-h-a/triage/repository/memory"
	"github.com/w-h-a/triage/repository/metrics"
	"github.com/w-h-a/triage/repository/postgres"
	"github.com/w-h-a/triage/server"
	httpserver "github.com/w-h-a/triage/server/http"
)

type Globals struct {
	// Store config
	Backend  string `help:"Storage backend" enum:"dynamodb,postgres,memory" default:"dynamodb" env:"TRIAGE_BACKEND"`
	Table    string `help:"Table holding triage records" default:"${default_table}" env:"${table_env}"`
	Region   string `help:"AWS region for the dynamodb backend" default:"" env:"AWS_REGION"`
	Location string `help:"Endpoint override for dynamodb or DSN for postgres" default:"" env:"TRIAGE_LOCATION"`

	// Logging config
	LogFormat string `help:"Log output format" enum:"text,json" default:"text"`
}

// app carries what every command needs once flags are parsed.
type app struct {
	globals  *Globals
	logger   *slog.Logger
	out      io.Writer
	registry prometheus.Registerer
	repo     repository.Repository
}

type saveCmd struct {
	File string `arg:"" optional:"" help:"YAML or JSON record to save, - for stdin" default:"-"`
}

func (c *saveCmd) Run(g *app) error {
	ctx := context.Background()

	in, err := openInput(c.File)
	if err != nil {
		return err
	}
	defer in.Close()

	record, err := readRecord(in)
	if err != nil {
		return errors.Wrapf(err, "failed to read record from %s", c.File)
	}

	saved, err := g.repository().Save(ctx, record)
	if err != nil {
		return errors.Wrap(err, "failed to save triage")
	}

	return writeJSON(g.out, saved)
}

type listCmd struct {
	PatientId string `arg:"" help:"Patient whose triages are listed"`
	Limit     int    `help:"Maximum number of records, newest first" default:"10"`
}

func (c *listCmd) Run(g *app) error {
	ctx := context.Background()

	records, err := g.repository().ListByPatient(ctx, c.PatientId, repository.WithLimit(c.Limit))
	if err != nil {
		return errors.Wrapf(err, "failed to list triages for %s", c.PatientId)
	}

	return writeJSON(g.out, records)
}

type serveCmd struct {
	Address string `help:"Address the API listens on" default:":8080" env:"TRIAGE_ADDRESS"`
}

func (c *serveCmd) Run(g *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.NewServer(
		g.repository(),
		server.WithAddress(c.Address),
		server.WithLogger(g.logger),
		server.WithGatherer(prometheus.DefaultGatherer),
		httpserver.WithMiddleware(httpserver.Recover(g.logger)),
	)

	if err := srv.Run(ctx); err != nil {
		return errors.Wrap(err, "triage api stopped")
	}

	return nil
}

type CLI struct {
	Globals

	Save  saveCmd  `cmd:"" help:"Save one triage record"`
	List  listCmd  `cmd:"" help:"List the most recent triages of a patient"`
	Serve serveCmd `cmd:"" help:"Serve the triage HTTP API"`
}

func parserOptions() []kong.Option {
	return []kong.Option{
		kong.Name("triage"),
		kong.Description("Store and query patient triage records."),
		kong.Vars{
			"default_table": repository.DefaultTable,
			"table_env":     repository.TableEnv,
		},
	}
}

func main() {
	var cli CLI

	// Parse inputs
	kctx := kong.Parse(&cli, parserOptions()...)

	logger := newLogger(cli.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	a := &app{
		globals:  &cli.Globals,
		logger:   logger,
		out:      os.Stdout,
		registry: prometheus.DefaultRegisterer,
	}

	if err := kctx.Run(a); err != nil {
		logger.Error("triage command failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(format string, w io.Writer) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, nil))
	}
	return slog.New(slog.NewTextHandler(w, nil))
}

// repository builds the configured backend wrapped with metrics on first use.
func (g *app) repository() repository.Repository {
	if g.repo != nil {
		return g.repo
	}

	opts := []repository.Option{
		repository.WithTable(g.globals.Table),
		repository.WithLocation(g.globals.Location),
		repository.WithRegion(g.globals.Region),
		repository.WithLogger(g.logger),
	}

	var repo repository.Repository

	switch g.globals.Backend {
	case "postgres":
		repo = postgres.NewRepository(opts...)
	case "memory":
		repo = memory.NewRepository(opts...)
	default:
		repo = dynamodb.NewRepository(opts...)
	}

	g.repo = metrics.NewRepository(repo, g.registry)

	return g.repo
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open record file")
	}

	return f, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
