package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/knotwork-db/knotwork/internal/config"
	"github.com/knotwork-db/knotwork/internal/graph"
	"github.com/knotwork-db/knotwork/internal/logging"
	"github.com/knotwork-db/knotwork/internal/mirror"
	"github.com/knotwork-db/knotwork/internal/server"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// A local .env is optional; environment variables still win over it.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	store, err := graph.Open(graph.Options{
		Directed: cfg.Store.Directed,
		Path:     cfg.Store.Path,
	})
	if err != nil {
		logger.Error("failed to open graph store", "error", err, "path", cfg.Store.Path)
		os.Exit(1)
	}
	logger.Info("graph store opened",
		"path", cfg.Store.Path,
		"directed", cfg.Store.Directed,
		"nodes", store.NodeCount(),
		"relationships", store.RelationshipCount(),
	)

	mirrorClient := buildMirrorClient(context.Background(), logger, cfg)
	if mirrorClient != nil {
		defer func() {
			if err := mirrorClient.Close(context.Background()); err != nil {
				logger.Warn("closing mirror client failed", "error", err)
			}
		}()
		store.Subscribe(mirror.New(mirrorClient, logger))
	}

	var metrics *server.Metrics
	if cfg.HTTP.MetricsEnabled {
		metrics = server.NewMetrics(store)
	}

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.MirrorHealthService{Client: mirrorClient},
		API:              server.NewAPIHandlers(logger, store),
		Metrics:          metrics,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// buildMirrorClient returns nil when mirroring is not configured.
func buildMirrorClient(ctx context.Context, logger *slog.Logger, cfg config.Config) mirror.Client {
	if cfg.Mirror.URI == "" {
		return nil
	}

	client, err := mirror.NewBoltClient(ctx, mirror.Options{
		URI:            cfg.Mirror.URI,
		Database:       cfg.Mirror.Database,
		Username:       cfg.Mirror.Username,
		Password:       cfg.Mirror.Password,
		MaxConnections: cfg.Mirror.MaxConnections,
	})
	if err != nil {
		logger.Error("failed to create mirror client", "error", err, "uri", cfg.Mirror.URI)
		os.Exit(1)
	}
	return client
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
