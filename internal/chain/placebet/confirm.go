package placebet

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
)

// StatusReader é a parte do pool usada na checagem de confirmação
type StatusReader interface {
	GetSignatureStatus(ctx context.Context, sig solana.Signature, searchHistory bool) (*rpc.SignatureStatusesResult, error)
}

type ConfirmResult string

const (
	ConfirmConfirmed ConfirmResult = "confirmed"
	ConfirmFailed    ConfirmResult = "failed"
	ConfirmUnknown   ConfirmResult = "unknown"
)

type ConfirmOptions struct {
	Polls    int           // default 5
	Interval time.Duration // default 2s
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	OnResult func(sig solana.Signature, res ConfirmResult)
}

// Confirmer faz a checagem leve de confirmação em segundo plano.
// O resultado só é registrado: a aposta já foi reportada ao usuário.
type Confirmer struct {
	status   StatusReader
	polls    int
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
	onResult func(solana.Signature, ConfirmResult)

	wg sync.WaitGroup
}

func NewConfirmer(status StatusReader, opts ConfirmOptions) *Confirmer {
	if opts.Polls <= 0 {
		opts.Polls = 5
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	return &Confirmer{
		status:   status,
		polls:    opts.Polls,
		interval: opts.Interval,
		log:      logger.OrNop(opts.Log).Named("confirmer"),
		metrics:  metrics.OrDiscard(opts.Metrics),
		onResult: opts.OnResult,
	}
}

// Watch dispara a checagem sem bloquear. O contexto do chamador só contribui
// com valores: cancelar a submissão não interrompe a checagem.
func (c *Confirmer) Watch(ctx context.Context, tx OnChainTransaction) {
	budget := time.Duration(c.polls)*c.interval + 30*time.Second
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		res := c.Poll(wctx, tx.Signature)
		c.metrics.Confirmations.WithLabelValues(string(res)).Inc()

		fields := []zap.Field{zap.String("signature", tx.Signature.String()), zap.String("result", string(res))}
		switch res {
		case ConfirmFailed:
			c.log.Warn("transaction failed on chain", fields...)
		case ConfirmUnknown:
			c.log.Info("transaction confirmation still pending", fields...)
		default:
			c.log.Info("transaction confirmed", fields...)
		}
		if c.onResult != nil {
			c.onResult(tx.Signature, res)
		}
	}()
}

// Poll consulta o status até confirmar, falhar ou esgotar as tentativas
func (c *Confirmer) Poll(ctx context.Context, sig solana.Signature) ConfirmResult {
	for i := 0; i < c.polls; i++ {
		res, err := c.Check(ctx, sig)
		if err != nil {
			c.log.Debug("signature status check failed", zap.String("signature", sig.String()), zap.Error(err))
		} else if res != ConfirmUnknown {
			return res
		}

		if i == c.polls-1 {
			break
		}
		t := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ConfirmUnknown
		case <-t.C:
		}
	}
	return ConfirmUnknown
}

// Check faz uma única consulta de status
func (c *Confirmer) Check(ctx context.Context, sig solana.Signature) (ConfirmResult, error) {
	st, err := c.status.GetSignatureStatus(ctx, sig, false)
	if err != nil {
		return ConfirmUnknown, err
	}
	return ClassifyStatus(st), nil
}

// ClassifyStatus traduz o status de uma assinatura; nil (desconhecida) é Unknown
func ClassifyStatus(st *rpc.SignatureStatusesResult) ConfirmResult {
	if st == nil {
		return ConfirmUnknown
	}
	if st.Err != nil {
		return ConfirmFailed
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return ConfirmConfirmed
	}
	return ConfirmUnknown
}

// Wait bloqueia até todas as checagens em andamento terminarem
func (c *Confirmer) Wait() {
	c.wg.Wait()
}
