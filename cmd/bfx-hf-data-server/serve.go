package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/api"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/config"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/connection"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/database"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/gateway"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/handler"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/market"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/metrics"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/router"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/session"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway (default)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting bfx-hf-data-server",
		"version", version.String(),
		"config", cfgFile,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve wires every component and blocks until ctx is cancelled or a
// server fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	agent, err := cfg.Upstream.AgentURL()
	if err != nil {
		return fmt.Errorf("parse upstream agent: %w", err)
	}

	apiClient := api.NewClient(cfg.Upstream.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Upstream.Timeout),
		api.WithRetry(api.Retry{
			Attempts: cfg.Upstream.MaxRetries,
			Min:      time.Second,
			Max:      15 * time.Second,
		}),
		api.WithProxy(agent),
	)

	// Market list
	marketCfg := market.DefaultConfig()
	marketCfg.RefreshInterval = cfg.Markets.RefreshInterval
	marketCfg.InitialLoadTimeout = cfg.Markets.InitialLoadTimeout

	markets := market.NewRegistry(marketCfg, apiClient, logger)
	if err := markets.Start(ctx); err != nil {
		return fmt.Errorf("start market registry: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		markets.Stop(stopCtx)
	}()

	health := &healthHandler{markets: markets, logger: logger}

	// Backtest storage
	var backtests handler.Backtests
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		store := database.NewBacktestStore(pool, logger)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		backtests = store
		health.db = pool
	} else {
		logger.Info("backtest storage disabled")
	}

	// Sessions and upstream proxies
	sessions := session.NewRegistry()
	health.sessions = sessions

	var proxies connection.Manager
	if cfg.Upstream.Proxy {
		mcfg := connection.DefaultManagerConfig()
		mcfg.WSURL = cfg.Upstream.WSURL
		mcfg.APIKey = cfg.Upstream.APIKey
		mcfg.APISecret = cfg.Upstream.APISecret
		mcfg.Agent = agent

		proxies = connection.NewManager(mcfg, sessions, m, logger)
		health.proxies = proxies

		if !cfg.Upstream.HasCredentials() && (cfg.Upstream.APIKey != "" || cfg.Upstream.APISecret != "") {
			logger.Warn("only one of upstream.api_key and upstream.api_secret is set, proxies stay unauthenticated")
		}
		logger.Info("upstream proxy enabled",
			"ws_url", cfg.Upstream.WSURL,
			"authenticated", cfg.Upstream.HasCredentials(),
			"agent", cfg.Upstream.Agent != "",
		)
	}

	table := handler.Table(handler.Deps{
		Markets:   markets,
		History:   apiClient,
		Backtests: backtests,
		Proxies:   proxies,
		Transform: cfg.Upstream.Transform,
		Logger:    logger,
	})
	dispatcher := router.NewDispatcher(
		router.Config{HandlerTimeout: cfg.Server.HandlerTimeout},
		table, m, logger,
	)
	health.commands = dispatcher

	gw := gateway.NewServer(gateway.Config{
		Port:         cfg.Server.Port,
		WriteTimeout: cfg.Server.WriteTimeout,
		ReadLimit:    cfg.Server.ReadLimit,
	}, gateway.Deps{
		Sessions:   sessions,
		Proxies:    proxies,
		Dispatcher: dispatcher,
		Markets:    markets,
	}, m, logger)

	side := newSideServer(cfg.Metrics, reg, health, cfg.Log.Level == "debug")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gw.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return gw.Stop(stopCtx)
	})

	g.Go(func() error {
		logger.Info("metrics server started", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := side.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return side.Shutdown(stopCtx)
	})

	err = g.Wait()
	logger.Info("bfx-hf-data-server stopped")
	return err
}
