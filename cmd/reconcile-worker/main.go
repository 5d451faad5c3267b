package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/battle-memecoin-club/internal/backend"
	"github.com/radieske/battle-memecoin-club/internal/chain/rpcpool"
	"github.com/radieske/battle-memecoin-club/internal/reconcile"
	"github.com/radieske/battle-memecoin-club/internal/reconcile/consumer"
	"github.com/radieske/battle-memecoin-club/internal/reconcile/producer"
	"github.com/radieske/battle-memecoin-club/internal/reconcile/repo"
	"github.com/radieske/battle-memecoin-club/internal/shared/config"
	"github.com/radieske/battle-memecoin-club/internal/shared/db"
	"github.com/radieske/battle-memecoin-club/internal/shared/kafka"
	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
)

func main() {
	_ = godotenv.Load()
	if os.Getenv("SERVICE_NAME") == "" {
		_ = os.Setenv("SERVICE_NAME", "reconcile-worker")
	}
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ReconcileServiceToken == "" {
		log.Warn("RECONCILE_SERVICE_TOKEN is empty, place-bet calls will be unauthenticated")
	}

	// Postgres: outbox de apostas não gravadas
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	outbox := repo.NewPostgres(pg)
	if err := outbox.EnsureSchema(ctx); err != nil {
		log.Fatal("ensure outbox schema", zap.Error(err))
	}

	// Kafka producer: bet_reconciled e DLQ
	reconciledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetReconciled)
	defer reconciledWriter.Close()

	var dlq kafka.MessageWriter
	if cfg.TopicBetReconcileDLQ != "" {
		dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetReconcileDLQ)
		defer dlqWriter.Close()
		dlq = dlqWriter
	}
	pub := producer.NewKafkaPublisher(nil, nil, reconciledWriter, dlq)

	m := metrics.New(prometheus.DefaultRegisterer)
	pool, err := rpcpool.New(rpcpool.BuildEndpoints(rpcpool.EndpointConfig{
		ProxyURL:     cfg.RPCProxyURL,
		CustomURL:    cfg.CustomRPCURL,
		HeliusAPIKey: cfg.HeliusAPIKey,
		Mainnet:      cfg.IsMainnet(),
	}), rpcpool.Options{
		MaxRetries: cfg.RPCMaxRetries,
		RetryDelay: cfg.RPCRetryDelay,
		Log:        log,
		Metrics:    m,
	})
	if err != nil {
		log.Fatal("rpc pool", zap.Error(err))
	}
	defer pool.Close()

	worker := reconcile.NewWorker(outbox, pool, backend.New(cfg.BackendURL, cfg.BackendTimeout, log), reconcile.Options{
		Interval:     cfg.ReconcileInterval,
		BatchSize:    cfg.ReconcileBatch,
		MaxAttempts:  cfg.ReconcileMaxTries,
		ServiceToken: cfg.ReconcileServiceToken,
		Publisher:    pub,
		Log:          log,
		Metrics:      m,
	})

	// Kafka consumer: bet_save_failed de clientes que não falam com o Postgres
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSaveFailed, "reconcile-worker")
	defer reader.Close()

	ingest := &consumer.SaveFailedConsumer{
		Log:        log,
		Reader:     reader,
		Outbox:     outbox,
		OnConsumed: func() { m.OutboxIngest.WithLabelValues("consumed").Inc() },
		OnInserted: func() { m.OutboxIngest.WithLabelValues("inserted").Inc() },
		OnError:    func(phase string) { m.OutboxIngest.WithLabelValues(phase).Inc() },
	}

	// healthz: banco acessível e contagem por status no log de debug
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		counts, err := outbox.CountByStatus(ctx)
		if err != nil {
			return err
		}
		log.Debug("outbox status", zap.Any("counts", counts))
		return nil
	})

	log.Info("reconcile-worker started",
		zap.String("consume", cfg.TopicBetSaveFailed),
		zap.String("publish", strings.Join([]string{cfg.TopicBetReconciled, cfg.TopicBetReconcileDLQ}, ",")),
		zap.Duration("interval", cfg.ReconcileInterval),
		zap.Int("maxAttempts", cfg.ReconcileMaxTries),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return ingest.Run(gctx) })
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("reconcile-worker stopped", zap.Error(err))
		return
	}
	log.Info("reconcile-worker stopped")
}
