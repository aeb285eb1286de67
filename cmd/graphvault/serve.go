// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/graphvault/graphvault/internal/api"
	"github.com/graphvault/graphvault/internal/authz"
	"github.com/graphvault/graphvault/internal/config"
	"github.com/graphvault/graphvault/internal/edm"
	"github.com/graphvault/graphvault/internal/graph"
	graphpg "github.com/graphvault/graphvault/internal/graph/postgres"
	"github.com/graphvault/graphvault/internal/index"
	"github.com/graphvault/graphvault/internal/logging"
	"github.com/graphvault/graphvault/internal/observability"
	"github.com/graphvault/graphvault/pkg/errutil"
)

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the graph store service",
		Long: `Start the graph store service: connects to PostgreSQL, loads the
schema seed, starts the async index worker and the observability endpoints,
and runs until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}
	cmd.Flags().String("api.addr", "", "HTTP API listen address")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log.format", "", "log format (json or text)")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")
	cmd.Flags().String("metrics.addr", "", "metrics/health HTTP address (empty = default)")
	cmd.Flags().String("seed.path", "", "schema seed YAML path")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}

	logging.SetDefault(logging.Options{
		Service: "graphvault",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
	logger := slog.Default()

	logger.Info("starting graph store service")

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	logger.Info("connected to database")

	registry := edm.NewMemoryRegistry()
	if cfg.Seed.Path != "" {
		if err := edm.LoadSeed(cfg.Seed.Path, registry); err != nil {
			return err
		}
		logger.Info("schema seed loaded", "path", cfg.Seed.Path)
	}

	store := graphpg.NewGraphStore(pool)
	authorizer := authz.NewAuthorizer(authz.NewPostgresAclStore(pool))

	indexer := index.NewIndexer(index.IndexerConfig{
		Source:    store,
		Logger:    logger,
		QueueSize: cfg.Index.QueueSize,
	})
	defer indexer.Close()

	mutator := graph.NewMutator(graph.MutatorConfig{
		Registry: registry,
		Store:    store,
		Access:   authorizer,
		Index:    indexer,
		Logger:   logger,
	})
	deleter := graph.NewDeleter(graph.DeleterConfig{
		Registry:   registry,
		Store:      store,
		Access:     authorizer,
		Index:      indexer,
		Transactor: graphpg.NewTransactor(pool),
		Logger:     logger,
	})
	reader := graph.NewReader(graph.ReaderConfig{
		Registry: registry,
		Store:    store,
		Access:   authorizer,
		Index:    indexer,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiServer := api.NewServer(api.ServerConfig{
		Addr:    cfg.API.Addr,
		Mutator: mutator,
		Deleter: deleter,
		Reader:  reader,
		Logger:  logger,
	})
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.Code("API_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, func() bool { return true })
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Graph store service started")
	logger.Info("graph store service ready",
		"api_addr", apiServer.Addr(),
		"metrics_addr", cfg.Metrics.Addr,
	)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping api server", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			errutil.LogError(logger, "error stopping observability server", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors watches a server's error channel and cancels the
// context on error so a failed server triggers graceful shutdown. Exits
// when an error arrives, the channel closes, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
