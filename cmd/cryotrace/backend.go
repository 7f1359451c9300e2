package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/cryotrace/internal/app"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/export"
	"github.com/joseph-ayodele/cryotrace/internal/ingest"
	"github.com/joseph-ayodele/cryotrace/internal/services/ask"
)

// backend is what the commands need from the wired application.
type backend interface {
	Ask(ctx context.Context, req ask.Request) (*ask.Answer, error)
	Shipments(ctx context.Context, req ask.Request) (*ask.Retrieval, error)
	Reindex(ctx context.Context) (int, error)
	LoadManifests(ctx context.Context, path string) (ingest.LoadStats, error)
	LoadEvents(ctx context.Context, path string) (ingest.LoadStats, error)
	Export(ctx context.Context, filter export.Filter) ([]byte, error)
	Health(ctx context.Context) error
	Close()
}

type opener func(c *cli.Context) (backend, error)

func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if c.Bool("json-logs") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(h)
}

// openBackend connects with the environment configuration. Events recorded
// by the CLI are published so a running daemon reindexes them.
func openBackend(c *cli.Context) (backend, error) {
	logger := newLogger(c)
	slog.SetDefault(logger)
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := app.New(c.Context, cfg, logger, app.Options{Publish: true})
	if err != nil {
		return nil, err
	}
	return &appBackend{a: a}, nil
}

type appBackend struct {
	a *app.App
}

func (b *appBackend) Ask(ctx context.Context, req ask.Request) (*ask.Answer, error) {
	return b.a.Ask.Ask(ctx, req)
}

func (b *appBackend) Shipments(ctx context.Context, req ask.Request) (*ask.Retrieval, error) {
	return b.a.Ask.Shipments(ctx, req)
}

func (b *appBackend) Reindex(ctx context.Context) (int, error) {
	return b.a.Indexer.Reindex(ctx)
}

func (b *appBackend) LoadManifests(ctx context.Context, path string) (ingest.LoadStats, error) {
	return loadFile(path, func(r io.Reader) (ingest.LoadStats, error) {
		return b.a.Importer.Manifests.Load(ctx, r)
	})
}

func (b *appBackend) LoadEvents(ctx context.Context, path string) (ingest.LoadStats, error) {
	loader := ingest.NewEventLoader(b.a.Events, filepath.Dir(path), b.a.Logger)
	return loadFile(path, func(r io.Reader) (ingest.LoadStats, error) {
		return loader.Load(ctx, r)
	})
}

func (b *appBackend) Export(ctx context.Context, filter export.Filter) ([]byte, error) {
	return b.a.Export.ExportShipmentsXLSX(ctx, filter)
}

func (b *appBackend) Health(ctx context.Context) error {
	return b.a.Health(ctx)
}

func (b *appBackend) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	b.a.Close(ctx)
}

func loadFile(path string, load func(io.Reader) (ingest.LoadStats, error)) (ingest.LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.LoadStats{}, err
	}
	defer f.Close()
	return load(f)
}
