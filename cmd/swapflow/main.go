// Command swapflow runs the cash-flow calculation and settlement engine.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quantfabric/swapflow/api/handlers"
	"github.com/quantfabric/swapflow/internal/accrual"
	"github.com/quantfabric/swapflow/internal/auditrepro"
	"github.com/quantfabric/swapflow/internal/config"
	"github.com/quantfabric/swapflow/internal/dividend"
	"github.com/quantfabric/swapflow/internal/eligibility"
	"github.com/quantfabric/swapflow/internal/engine"
	"github.com/quantfabric/swapflow/internal/lifecycle"
	"github.com/quantfabric/swapflow/internal/marketdata"
	"github.com/quantfabric/swapflow/internal/metrics"
	"github.com/quantfabric/swapflow/internal/pnl"
	"github.com/quantfabric/swapflow/internal/settlement"
	"github.com/quantfabric/swapflow/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("engine exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Persistence: Postgres when configured, in-memory otherwise.
	var (
		flowStore   store.CashFlowStore
		instrStore  store.InstructionStore
		taxStore    store.TaxRecordStore
		statusStore store.StatusStore
	)
	if cfg.Database.DSN != "" {
		gs, err := store.Open(cfg.Database.DSN, logger)
		if err != nil {
			return err
		}
		flowStore, instrStore, taxStore, statusStore = gs, gs, gs, gs
		logger.Info("postgres store opened")
	} else {
		ms := store.NewMemoryStore()
		flowStore, instrStore, taxStore, statusStore = ms, ms, ms, ms
		logger.Warn("no database configured, using in-memory store")
	}

	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis not reachable, market data cache is in-memory only", zap.Error(err))
			rdb = nil
		}
		cancel()
	}

	mdCache := marketdata.NewSnapshotCache(rdb, time.Now, logger)
	source := marketdata.NewHTTPSource(cfg.MarketData.BaseURL, cfg.MarketData.FetchTimeout)
	external := marketdata.NewExternalResolver(source, cfg.MarketData.Validity, time.Now, logger)
	selfContained := marketdata.NewSelfContainedResolver()
	hybrid := marketdata.NewHybridResolver(mdCache, external, selfContained, logger)
	resolvers := marketdata.NewRegistry(selfContained, external, hybrid)

	archive, err := auditrepro.OpenInputArchive(cfg.Audit.ArchiveDir, logger)
	if err != nil {
		return err
	}
	defer archive.Close()

	var publisher engine.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp := settlement.NewPublisher(
			settlement.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.SettlementTopic),
			cfg.Settlement.MaxPublishAttempts,
			cfg.Settlement.PublishBackoff,
			logger,
		)
		defer kp.Close()
		publisher = kp
	} else {
		logger.Warn("no kafka brokers configured, settlement publication disabled")
	}

	elig := eligibility.NewEngine()
	calendar := accrual.NewCalendar(nil)
	m := metrics.New(prometheus.DefaultRegisterer)

	eng := engine.New(engine.Deps{
		Router: engine.NewRouter(engine.RouterConfig{
			RealTimeMaxContracts: cfg.Router.RealTimeMaxContracts,
			IncrementalMaxDays:   cfg.Router.IncrementalMaxDays,
			HistoricalContracts:  cfg.Router.HistoricalContracts,
			ChunkDays:            cfg.Router.ChunkDays,
			Workers:              cfg.Router.Workers,
		}),
		Resolvers: resolvers,
		Accrual:   accrual.NewCalculator(elig, calendar, logger),
		Dividend:  dividend.NewCalculator(elig, nil, logger),
		PnL:       pnl.NewCalculator(elig, logger),
		Stages:    lifecycle.NewMachine(logger),
		Generator: settlement.NewGenerator(logger),
		Publisher: publisher,
		Cache:     auditrepro.NewResultCache(),
		Archive:   archive,
		Flows:     flowStore,
		Instr:     instrStore,
		Taxes:     taxStore,
		Status:    statusStore,
		Metrics:   m,
		Logger:    logger,
	})

	// Status retention sweep.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-cfg.Status.Retention)
				if n, err := statusStore.EvictOlderThan(ctx, cutoff); err != nil {
					logger.Warn("status eviction failed", zap.Error(err))
				} else if n > 0 {
					logger.Info("evicted finished calculation records", zap.Int("count", n))
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handlers.NewServer(eng, logger).Router(),
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("engine listening", zap.String("addr", cfg.HTTP.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
