package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/backend/dto"
	"github.com/radieske/battle-memecoin-club/internal/betting"
	"github.com/radieske/battle-memecoin-club/internal/chain/placebet"
	"github.com/radieske/battle-memecoin-club/internal/reconcile/repo"
	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
	"github.com/radieske/battle-memecoin-club/pkg/apperr"
	"github.com/radieske/battle-memecoin-club/pkg/contracts/events"
)

type Store interface {
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]repo.UnsavedBet, error)
	MarkSaved(ctx context.Context, id, betID string) error
	MarkFailedOnChain(ctx context.Context, id, reason string) error
	MarkRetry(ctx context.Context, id, lastErr string, next time.Time) error
	MarkDead(ctx context.Context, id, lastErr string) error
}

type Publisher interface {
	PublishBetReconciled(ctx context.Context, e events.BetReconciled) error
	PublishDeadLetter(ctx context.Context, e events.BetDeadLettered) error
}

type Result string

const (
	ResultSaved         Result = "saved"
	ResultFailedOnChain Result = "failed_on_chain"
	ResultRetry         Result = "retry"
	ResultDead          Result = "dead"
)

type Options struct {
	Interval      time.Duration // default 15s
	BatchSize     int           // default 20
	MaxAttempts   int           // default 10
	Lease         time.Duration // default 2m
	RetryBase     time.Duration // default 5s
	RetryMax      time.Duration // default 10m
	NotFoundAfter time.Duration // assinatura ainda desconhecida depois disso = nunca entrou; default 10m
	ServiceToken  string        // bearer usado no place-bet em nome do usuário
	Publisher     Publisher     // opcional
	Log           *zap.Logger
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// Worker varre o outbox: confere a assinatura na chain e regrava a aposta no backend.
type Worker struct {
	store Store
	chain placebet.StatusReader
	saver betting.BetSaver
	pub   Publisher

	interval      time.Duration
	batch         int
	maxAttempts   int
	lease         time.Duration
	retryBase     time.Duration
	retryMax      time.Duration
	notFoundAfter time.Duration
	token         string

	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewWorker(store Store, chain placebet.StatusReader, saver betting.BetSaver, opts Options) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.Lease <= 0 {
		opts.Lease = 2 * time.Minute
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 5 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 10 * time.Minute
	}
	if opts.NotFoundAfter <= 0 {
		opts.NotFoundAfter = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Worker{
		store:         store,
		chain:         chain,
		saver:         saver,
		pub:           opts.Publisher,
		interval:      opts.Interval,
		batch:         opts.BatchSize,
		maxAttempts:   opts.MaxAttempts,
		lease:         opts.Lease,
		retryBase:     opts.RetryBase,
		retryMax:      opts.RetryMax,
		notFoundAfter: opts.NotFoundAfter,
		token:         opts.ServiceToken,
		log:           logger.OrNop(opts.Log).Named("reconcile"),
		metrics:       metrics.OrDiscard(opts.Metrics),
		now:           opts.Now,
	}
}

// Run processa lotes a cada Interval até o contexto ser cancelado
func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		if n, err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Warn("reconcile batch", zap.Error(err))
		} else if n > 0 {
			w.log.Info("reconcile batch done", zap.Int("rows", n))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// RunOnce reivindica um lote e processa cada linha; devolve quantas processou
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	rows, err := w.store.ClaimDue(ctx, w.now(), w.batch, w.lease)
	if err != nil {
		return 0, fmt.Errorf("claim due rows: %w", err)
	}
	for _, b := range rows {
		res := w.Process(ctx, b)
		w.metrics.ReconcileResults.WithLabelValues(string(res)).Inc()
	}
	return len(rows), nil
}

// Process decide o destino de uma linha
func (w *Worker) Process(ctx context.Context, b repo.UnsavedBet) Result {
	sig, err := solana.SignatureFromBase58(b.Signature)
	if err != nil {
		return w.dead(ctx, b, "invalid signature: "+err.Error())
	}

	st, err := w.chain.GetSignatureStatus(ctx, sig, true)
	if err != nil {
		return w.retry(ctx, b, "signature status: "+err.Error())
	}
	switch placebet.ClassifyStatus(st) {
	case placebet.ConfirmFailed:
		return w.failedOnChain(ctx, b, fmt.Sprintf("transaction failed on chain: %v", st.Err))
	case placebet.ConfirmUnknown:
		if st == nil && w.now().Sub(b.CreatedAt) >= w.notFoundAfter {
			return w.failedOnChain(ctx, b, "transaction not found on chain")
		}
		return w.retry(ctx, b, "transaction not confirmed yet")
	}

	resp, err := w.saver.PlaceBet(ctx, w.token, dto.PlaceBetRequest{
		UserID:               dto.ID(b.UserID),
		WalletAddress:        b.WalletAddress,
		MatchID:              b.MatchID,
		FighterName:          b.FighterName,
		Amount:               b.AmountSol,
		TransactionSignature: b.Signature,
	})
	switch {
	case err == nil:
		return w.saved(ctx, b, string(resp.BetID), "")
	case apperr.HasCode(err, apperr.CodeAlreadyBet):
		// o backend já tem a aposta deste usuário na luta
		return w.saved(ctx, b, "", "already recorded")
	default:
		return w.retry(ctx, b, "place bet: "+err.Error())
	}
}

func (w *Worker) saved(ctx context.Context, b repo.UnsavedBet, betID, reason string) Result {
	if err := w.store.MarkSaved(ctx, b.ID, betID); err != nil {
		w.log.Error("mark saved", zap.String("id", b.ID), zap.Error(err))
	}
	w.log.Info("unsaved bet reconciled", zap.String("signature", b.Signature), zap.String("betId", betID))
	w.publishReconciled(ctx, b, "SAVED", betID, b.Attempts+1, reason)
	return ResultSaved
}

func (w *Worker) failedOnChain(ctx context.Context, b repo.UnsavedBet, reason string) Result {
	if err := w.store.MarkFailedOnChain(ctx, b.ID, reason); err != nil {
		w.log.Error("mark failed on chain", zap.String("id", b.ID), zap.Error(err))
	}
	w.log.Warn("unsaved bet not on chain", zap.String("signature", b.Signature), zap.String("reason", reason))
	w.publishReconciled(ctx, b, "FAILED_ON_CHAIN", "", b.Attempts+1, reason)
	return ResultFailedOnChain
}

func (w *Worker) retry(ctx context.Context, b repo.UnsavedBet, reason string) Result {
	attempt := b.Attempts + 1
	if attempt >= w.maxAttempts {
		return w.dead(ctx, b, reason)
	}
	next := w.now().Add(w.RetryDelay(attempt))
	if err := w.store.MarkRetry(ctx, b.ID, reason, next); err != nil {
		w.log.Error("mark retry", zap.String("id", b.ID), zap.Error(err))
	}
	w.log.Debug("unsaved bet rescheduled",
		zap.String("signature", b.Signature),
		zap.Int("attempt", attempt),
		zap.Time("next", next),
		zap.String("reason", reason),
	)
	return ResultRetry
}

func (w *Worker) dead(ctx context.Context, b repo.UnsavedBet, reason string) Result {
	attempts := b.Attempts + 1
	if err := w.store.MarkDead(ctx, b.ID, reason); err != nil {
		w.log.Error("mark dead", zap.String("id", b.ID), zap.Error(err))
	}
	w.log.Error("unsaved bet dead-lettered",
		zap.String("signature", b.Signature),
		zap.Int("attempts", attempts),
		zap.String("reason", reason),
	)
	if w.pub != nil {
		err := w.pub.PublishDeadLetter(ctx, events.BetDeadLettered{
			OutboxID:             b.ID,
			UserID:               b.UserID,
			WalletAddress:        b.WalletAddress,
			MatchID:              b.MatchID,
			FighterName:          b.FighterName,
			AmountSol:            b.AmountSol,
			TransactionSignature: b.Signature,
			Attempts:             attempts,
			LastError:            reason,
			Ts:                   w.now(),
		})
		if err != nil {
			w.log.Warn("publish dlq", zap.String("signature", b.Signature), zap.Error(err))
		}
	}
	w.publishReconciled(ctx, b, "DEAD", "", attempts, reason)
	return ResultDead
}

func (w *Worker) publishReconciled(ctx context.Context, b repo.UnsavedBet, status, betID string, attempts int, reason string) {
	if w.pub == nil {
		return
	}
	err := w.pub.PublishBetReconciled(ctx, events.BetReconciled{
		OutboxID:             b.ID,
		TransactionSignature: b.Signature,
		Status:               status,
		BetID:                betID,
		Attempts:             attempts,
		Reason:               reason,
		Ts:                   w.now(),
	})
	if err != nil {
		w.log.Warn("publish bet_reconciled", zap.String("signature", b.Signature), zap.Error(err))
	}
}

// RetryDelay é o atraso exponencial antes da tentativa seguinte, limitado a RetryMax
func (w *Worker) RetryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(w.retryBase),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(w.retryMax),
		backoff.WithMaxElapsedTime(0),
	)
	d := w.retryBase
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
