package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/cryotrace/internal/app"
	"github.com/joseph-ayodele/cryotrace/internal/async"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/ingest"
	"github.com/joseph-ayodele/cryotrace/internal/server"
)

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup and returns the process exit code.
func run() int {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Options{Queue: true, Publish: true})
	if err != nil {
		logger.Error("failed to start", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		a.Close(shutdownCtx)
	}()

	if err := a.Health(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		return 1
	}

	// build the index on first start so /api/ask has something to search
	if n, err := a.Vectors.Count(ctx); err == nil && n == 0 {
		if err := a.Queue.Enqueue(ctx, async.Job{Reason: "startup", SubmittedAt: time.Now()}); err != nil {
			logger.Warn("initial index not scheduled", "error", err)
		}
	}

	if err := a.StartConsumer(ctx); err != nil {
		logger.Error("failed to start event consumer", "error", err)
		return 1
	}

	httpSrv := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: server.NewRouter(server.NewHandler(server.Deps{
			Asker:          a.Ask,
			Reindexer:      a.Indexer,
			Manifests:      a.Manifests,
			Directory:      a.Directory,
			Events:         a.Events,
			Exporter:       a.Export,
			Health:         a.Health,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		}, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	var lis net.Listener
	if cfg.Server.GRPCAddr != "" {
		lis, err = net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			return 1
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("cryotrace http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if lis != nil {
		g.Go(func() error {
			logger.Info("cryotrace grpc health listening", "addr", cfg.Server.GRPCAddr)
			return grpcServer.Serve(lis)
		})
	}

	if wc, ok := a.WatchConfig(); ok {
		g.Go(func() error {
			err := ingest.Watch(gctx, wc, a.Importer, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		return 1
	}
	return 0
}
