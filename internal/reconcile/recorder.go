// Package reconcile grava apostas que entraram na chain sem registro no
// backend e tenta regravá-las depois.
package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/betting"
	"github.com/radieske/battle-memecoin-club/internal/reconcile/repo"
	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/pkg/contracts/events"
)

type Outbox interface {
	Insert(ctx context.Context, b repo.UnsavedBet) (id string, created bool, err error)
}

type SaveFailedPublisher interface {
	PublishBetSaveFailed(ctx context.Context, e events.BetSaveFailed) error
}

// Recorder é o betting.UnsavedBetRecorder apoiado no outbox Postgres
type Recorder struct {
	outbox Outbox
	events SaveFailedPublisher
	log    *zap.Logger
}

func NewRecorder(outbox Outbox, pub SaveFailedPublisher, log *zap.Logger) *Recorder {
	return &Recorder{outbox: outbox, events: pub, log: logger.OrNop(log).Named("outbox")}
}

// RecordUnsaved grava a aposta uma única vez por assinatura e avisa o tópico
// bet_save_failed. Falha de publicação só é logada: a linha já está no outbox.
func (r *Recorder) RecordUnsaved(ctx context.Context, b betting.UnsavedBet) error {
	id, created, err := r.outbox.Insert(ctx, repo.UnsavedBet{
		Signature:     b.Signature,
		UserID:        b.UserID,
		WalletAddress: b.WalletAddress,
		MatchID:       b.MatchID,
		FighterName:   b.FighterName,
		AmountSol:     b.AmountSol,
		LastError:     b.Reason,
	})
	if err != nil {
		return err
	}
	if !created {
		r.log.Debug("unsaved bet already recorded", zap.String("signature", b.Signature), zap.String("id", id))
		return nil
	}

	r.log.Info("unsaved bet recorded", zap.String("signature", b.Signature), zap.String("id", id))
	if r.events == nil {
		return nil
	}
	err = r.events.PublishBetSaveFailed(ctx, events.BetSaveFailed{
		OutboxID:             id,
		UserID:               b.UserID,
		WalletAddress:        b.WalletAddress,
		MatchID:              b.MatchID,
		FighterName:          b.FighterName,
		AmountSol:            b.AmountSol,
		TransactionSignature: b.Signature,
		Reason:               b.Reason,
		Ts:                   time.Now(),
	})
	if err != nil {
		r.log.Warn("publish bet_save_failed", zap.String("signature", b.Signature), zap.Error(err))
	}
	return nil
}
