package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/auth"
	"github.com/radieske/battle-memecoin-club/internal/backend"
	"github.com/radieske/battle-memecoin-club/internal/betting"
	"github.com/radieske/battle-memecoin-club/internal/chain/placebet"
	"github.com/radieske/battle-memecoin-club/internal/chain/rpcpool"
	"github.com/radieske/battle-memecoin-club/internal/reconcile"
	"github.com/radieske/battle-memecoin-club/internal/reconcile/producer"
	"github.com/radieske/battle-memecoin-club/internal/reconcile/repo"
	"github.com/radieske/battle-memecoin-club/internal/shared/cache"
	"github.com/radieske/battle-memecoin-club/internal/shared/config"
	"github.com/radieske/battle-memecoin-club/internal/shared/db"
	"github.com/radieske/battle-memecoin-club/internal/shared/kafka"
	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
	"github.com/radieske/battle-memecoin-club/internal/wallet"
	"github.com/radieske/battle-memecoin-club/pkg/contracts/events"
)

// app junta as peças do cliente de apostas para um comando do CLI
type app struct {
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics

	wallet       *wallet.Keypair
	pool         *rpcpool.Pool
	backend      *backend.Client
	auth         *auth.Manager
	placer       *placebet.Placer
	matches      *betting.MatchTracker
	positions    *betting.PositionTracker
	orchestrator *betting.Orchestrator

	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Metrics, approve wallet.ApproveFunc) (*app, error) {
	a := &app{cfg: cfg, log: log, metrics: m}

	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid BET_PROGRAM_ID: %w", err)
	}

	a.wallet, err = wallet.LoadKeypairFile(cfg.KeypairPath, approve)
	if err != nil {
		return nil, err
	}

	// RPC com failover: proxy do backend, custom, Helius, públicos
	endpoints := rpcpool.BuildEndpoints(rpcpool.EndpointConfig{
		ProxyURL:     cfg.RPCProxyURL,
		CustomURL:    cfg.CustomRPCURL,
		HeliusAPIKey: cfg.HeliusAPIKey,
		Mainnet:      cfg.IsMainnet(),
	})
	a.pool, err = rpcpool.New(endpoints, rpcpool.Options{
		MaxRetries: cfg.RPCMaxRetries,
		RetryDelay: cfg.RPCRetryDelay,
		Log:        log,
		Metrics:    m,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.pool.Close)

	a.backend = backend.New(cfg.BackendURL, cfg.BackendTimeout, log)

	store, err := a.tokenStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.auth = auth.NewManager(a.backend, store, auth.Options{Log: log, Metrics: m})

	confirmer := placebet.NewConfirmer(a.pool, placebet.ConfirmOptions{
		Log:     log,
		Metrics: m,
		OnResult: func(sig solana.Signature, res placebet.ConfirmResult) {
			fmt.Printf("confirmation check for %s: %s\n", sig, res)
		},
	})
	a.placer, err = placebet.NewPlacer(a.pool, programID, confirmer, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.matches = betting.NewMatchTracker(a.backend, programID, log)
	a.positions = betting.NewPositionTracker(a.backend, a.auth, a.matches)

	opts := betting.Options{Log: log, Metrics: m}
	if err := a.wireOutbox(ctx, &opts); err != nil {
		a.Close()
		return nil, err
	}
	a.orchestrator = betting.NewOrchestrator(a.auth, a.placer, a.backend, a.matches, opts)
	return a, nil
}

// tokenStore escolhe onde o token da sessão sobrevive entre execuções
func (a *app) tokenStore(ctx context.Context) (auth.TokenStore, error) {
	switch a.cfg.SessionStore {
	case "redis":
		rdb, err := cache.ConnectRedis(ctx, a.cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		key := auth.StorageKey + ":" + a.wallet.PublicKey().String()
		return auth.NewRedisStore(rdb, key, a.cfg.SessionTTL), nil
	case "memory", "":
		return auth.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown SESSION_STORE %q", a.cfg.SessionStore)
}

// wireOutbox liga o registro de apostas não gravadas conforme OUTBOX_STORE:
// "postgres" grava direto no outbox, "kafka" só publica bet_save_failed
// para o reconcile-worker consumir.
func (a *app) wireOutbox(ctx context.Context, opts *betting.Options) error {
	switch a.cfg.OutboxStore {
	case "none", "":
		return nil
	case "postgres", "kafka":
	default:
		return fmt.Errorf("unknown OUTBOX_STORE %q", a.cfg.OutboxStore)
	}

	submitted := kafka.NewWriter(a.cfg.KafkaBrokers, a.cfg.TopicBetSubmitted)
	saveFailed := kafka.NewWriter(a.cfg.KafkaBrokers, a.cfg.TopicBetSaveFailed)
	a.closers = append(a.closers, submitted.Close, saveFailed.Close)
	pub := producer.NewKafkaPublisher(submitted, saveFailed, nil, nil)
	opts.Events = pub

	if a.cfg.OutboxStore == "kafka" {
		opts.Unsaved = publishOnly{pub: pub}
		return nil
	}

	pg, err := db.ConnectPostgres(ctx, a.cfg.PostgresDSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pg.Close)

	outbox := repo.NewPostgres(pg)
	if err := outbox.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure outbox schema: %w", err)
	}
	opts.Unsaved = reconcile.NewRecorder(outbox, pub, a.log)
	return nil
}

// publishOnly entrega a aposta não gravada só pelo tópico bet_save_failed
type publishOnly struct {
	pub *producer.KafkaPublisher
}

func (p publishOnly) RecordUnsaved(ctx context.Context, b betting.UnsavedBet) error {
	return p.pub.PublishBetSaveFailed(ctx, events.BetSaveFailed{
		UserID:               b.UserID,
		WalletAddress:        b.WalletAddress,
		MatchID:              b.MatchID,
		FighterName:          b.FighterName,
		AmountSol:            b.AmountSol,
		TransactionSignature: b.Signature,
		Reason:               b.Reason,
	})
}

// session conecta a carteira e exige sessão ativa
func (a *app) session(ctx context.Context) (auth.Session, error) {
	if err := a.auth.Connect(ctx, a.wallet); err != nil {
		return auth.Session{}, err
	}
	sess, ok := a.auth.Session()
	if !ok {
		return auth.Session{}, errors.New("not signed in: run `battle-client signin` first")
	}
	return sess, nil
}

// activeMatch usa --match quando informado, senão pergunta ao backend
func (a *app) activeMatch(ctx context.Context, matchID, account string) (betting.Match, error) {
	if matchID != "" {
		m, err := a.matches.Resolve(matchID, account, nil)
		if err != nil {
			return betting.Match{}, err
		}
		a.matches.Set(m)
		return m, nil
	}
	m, ok, err := a.matches.Refresh(ctx)
	if err != nil {
		return betting.Match{}, err
	}
	if !ok {
		return betting.Match{}, errors.New("no active match")
	}
	return m, nil
}

// waitConfirmations segura o processo até as checagens de confirmação terminarem
func (a *app) waitConfirmations(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.placer.Confirmer().Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(time.Minute):
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Debug("close", zap.Error(err))
		}
	}
}
