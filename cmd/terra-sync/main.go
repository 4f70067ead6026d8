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

	"github.com/emperorhan/terra-sync/internal/api"
	"github.com/emperorhan/terra-sync/internal/chain"
	"github.com/emperorhan/terra-sync/internal/chain/evm"
	"github.com/emperorhan/terra-sync/internal/chain/evm/rpc"
	"github.com/emperorhan/terra-sync/internal/chain/ratelimit"
	"github.com/emperorhan/terra-sync/internal/circuitbreaker"
	"github.com/emperorhan/terra-sync/internal/config"
	"github.com/emperorhan/terra-sync/internal/confirm"
	"github.com/emperorhan/terra-sync/internal/health"
	"github.com/emperorhan/terra-sync/internal/metrics"
	"github.com/emperorhan/terra-sync/internal/mirror"
	"github.com/emperorhan/terra-sync/internal/store"
	"github.com/emperorhan/terra-sync/internal/store/memory"
	"github.com/emperorhan/terra-sync/internal/store/postgres"
	redispkg "github.com/emperorhan/terra-sync/internal/store/redis"
	"github.com/emperorhan/terra-sync/internal/syncer"
	"github.com/emperorhan/terra-sync/internal/tracing"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// stores bundles the repositories of one backend with its lifecycle hooks.
type stores struct {
	terras  store.TerraRepository
	pending store.PendingTxRepository
	health  api.HealthChecker
	db      *postgres.DB
	close   func() error
}

var (
	openPostgres = func(cfg postgres.Config) (*postgres.DB, error) { return postgres.New(cfg) }

	newRedisNotifier = func(url, channel string, logger *slog.Logger) (*redispkg.Notifier, error) {
		return redispkg.NewNotifier(url, channel, logger)
	}
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		logger.Warn("using in-memory store; cache contents are lost on restart")
		return &stores{
			terras:  memory.NewTerraRepo(),
			pending: memory.NewPendingTxRepo(),
			close:   func() error { return nil },
		}, nil
	case config.StoreBackendPostgres:
		db, err := openPostgres(postgres.Config{
			URL:                cfg.DB.URL,
			MaxOpenConns:       cfg.DB.MaxOpenConns,
			MaxIdleConns:       cfg.DB.MaxIdleConns,
			ConnMaxLifetime:    cfg.DB.ConnMaxLifetime,
			StatementTimeoutMS: cfg.DB.StatementTimeoutMS,
		})
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.RunMigrations(ctx, cfg.DB.MigrationsDir); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("connected to database")
		return &stores{
			terras:  postgres.NewTerraRepo(db),
			pending: postgres.NewPendingTxRepo(db),
			health:  db,
			db:      db,
			close:   db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// openNotifier returns the change notifier and a close hook.
func openNotifier(cfg *config.Config, logger *slog.Logger) (store.Notifier, func() error, error) {
	if cfg.Notify.Backend != config.NotifyBackendRedis {
		return memory.NewNotifier(), func() error { return nil }, nil
	}
	n, err := newRedisNotifier(cfg.Redis.URL, cfg.Notify.Channel, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize redis notifier: %w", err)
	}
	logger.Info("redis change notifier enabled", "channel", cfg.Notify.Channel)
	return n, n.Close, nil
}

func newRPCClient(cfg config.ChainConfig, logger *slog.Logger) *rpc.Client {
	network := string(cfg.Network)
	client := rpc.NewClient(cfg.RPCURL, logger)
	client.SetLabel(network)
	client.SetRateLimiter(ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, network))
	client.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailures,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		OnStateChange: func(from, to circuitbreaker.State) {
			metrics.RPCCircuitTransitions.WithLabelValues(network, to.String()).Inc()
			logger.Warn("rpc circuit breaker state change", "from", from.String(), "to", to.String())
		},
	}))
	return client
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("terra-sync exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("terra-sync shut down gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting terra-sync",
		"network", cfg.Chain.Network,
		"rpc", cfg.Chain.RPCURL,
		"contract", cfg.Chain.ContractAddress,
		"store", cfg.Store.Backend,
		"notify", cfg.Notify.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, "terra-sync", cfg.Tracing.Endpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	notifier, closeNotifier, err := openNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	client := newRPCClient(cfg.Chain, logger)
	adapter := evm.NewAdapter(client, cfg.Chain.ContractAddress, cfg.Chain.Network, logger)
	logWatcher := evm.NewLogWatcher(client, cfg.Chain.ContractAddress, cfg.Chain.Network, logger,
		evm.WithPollInterval(cfg.Chain.LogPollInterval),
		evm.WithMaxBlockRange(cfg.Chain.MaxLogBlockRange),
		evm.WithStartBlock(cfg.Chain.LogStartBlock),
	)

	m := mirror.New(st.terras, st.pending, logger,
		mirror.WithNotifier(notifier),
		mirror.WithStaleAfter(cfg.Sync.PendingStaleAfter),
		mirror.WithDefaults(cfg.Metadata.Defaults),
	)
	syncHealth := health.NewTracker("syncer")
	terraSyncer := syncer.New(adapter, m, cfg.Chain.Network, logger,
		syncer.WithRefreshInterval(cfg.Sync.RefreshInterval),
		syncer.WithMaxParallel(cfg.Sync.MaxParallel),
		syncer.WithHealth(syncHealth),
	)
	watcher := confirm.New(adapter, terraSyncer, m, cfg.Chain.Network, logger,
		confirm.WithPollInterval(cfg.Confirm.PollInterval),
		confirm.WithTimeout(cfg.Confirm.Timeout),
		confirm.WithDedupCapacity(cfg.Confirm.DedupCapacity),
	)
	defer watcher.Stop()

	serverOpts := []api.ServerOption{
		api.WithRoleReader(adapter),
		api.WithSimulator(adapter),
		api.WithNotifier(notifier),
		api.WithComponentHealth(syncHealth),
		api.WithRateLimiter(api.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)),
	}
	if st.health != nil {
		serverOpts = append(serverOpts, api.WithHealthChecker(st.health))
	}
	server := api.NewServer(m, terraSyncer, watcher, logger, serverOpts...)

	g, gCtx := errgroup.WithContext(ctx)
	inbox := make(chan []chain.Event, cfg.Sync.InboxSize)

	g.Go(func() error {
		defer close(inbox)
		return logWatcher.Run(gCtx, inbox)
	})
	g.Go(func() error {
		return terraSyncer.Run(gCtx, inbox)
	})
	g.Go(func() error {
		return m.RunJanitor(gCtx, cfg.Sync.JanitorInterval)
	})
	if st.db != nil && cfg.DB.PoolStatsInterval > 0 {
		g.Go(func() error {
			postgres.RunPoolStatsPump(gCtx, st.db, cfg.DB.PoolStatsInterval)
			return nil
		})
	}
	g.Go(func() error {
		return serveHTTP(gCtx, cfg.Server.Port, server.Handler(), cfg.Server.ShutdownTimeout, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveHTTP(ctx context.Context, port int, handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http server shutdown error", "error", err)
		}
	}()

	logger.Info("http server started", "port", port)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
