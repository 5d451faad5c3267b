package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/shared/config"
	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
)

const usage = `usage: battle-client <command> [flags]

commands:
  signin               sign the backend challenge with the local keypair
  bet -fighter NAME -amount SOL [-match ID -account PDA]
                       place a bet on the active match
  status               show session, active match, pools and your bet
  balance [-watch]     show SOL and SPL token balances
  signout              forget the stored session token
`

func main() {
	// .env é opcional; variáveis já exportadas têm prioridade
	_ = godotenv.Load()
	if os.Getenv("SERVICE_NAME") == "" {
		_ = os.Setenv("SERVICE_NAME", "battle-client")
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string) error {
	cmd, ok := commands[command]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.MetricsPort != "" {
		srv := metrics.NewMetricsServer(cfg.MetricsPort, nil)
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.Debug("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	return cmd(ctx, cfg, log, m, args)
}
