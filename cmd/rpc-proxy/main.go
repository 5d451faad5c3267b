package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/battle-memecoin-club/internal/rpcproxy"
	"github.com/radieske/battle-memecoin-club/internal/shared/config"
	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
)

func main() {
	_ = godotenv.Load()
	if os.Getenv("SERVICE_NAME") == "" {
		_ = os.Setenv("SERVICE_NAME", "rpc-proxy")
	}
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.RPCUpstreamKey == "" {
		log.Warn("RPC_UPSTREAM_API_KEY is empty, forwarding without a key")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	proxy, err := rpcproxy.New(rpcproxy.Options{
		UpstreamURL: cfg.RPCUpstreamURL,
		APIKey:      cfg.RPCUpstreamKey,
		AllowOrigin: cfg.RPCProxyOrigins,
		Log:         log,
		Metrics:     m,
	})
	if err != nil {
		log.Fatal("rpc proxy", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Servidor público do proxy e servidor de métricas/healthz
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           proxy.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("rpc-proxy listening", zap.String("addr", srv.Addr))
		return serve(srv)
	})
	g.Go(func() error {
		log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))
		return serve(metricsSrv)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(srv.Shutdown(sctx), metricsSrv.Shutdown(sctx))
	})

	if err := g.Wait(); err != nil {
		log.Error("rpc-proxy stopped", zap.Error(err))
		return
	}
	log.Info("rpc-proxy stopped")
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
