package producer

import (
	"context"
	"time"

	"github.com/radieske/battle-memecoin-club/internal/shared/kafka"
	"github.com/radieske/battle-memecoin-club/pkg/contracts/events"
)

// KafkaPublisher publica o ciclo de vida das apostas; um writer por tópico.
// Writers nil desligam o tópico correspondente.
type KafkaPublisher struct {
	Submitted  kafka.MessageWriter
	SaveFailed kafka.MessageWriter
	Reconciled kafka.MessageWriter
	DLQ        kafka.MessageWriter

	now func() time.Time
}

func NewKafkaPublisher(submitted, saveFailed, reconciled, dlq kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{
		Submitted:  submitted,
		SaveFailed: saveFailed,
		Reconciled: reconciled,
		DLQ:        dlq,
		now:        time.Now,
	}
}

func (p *KafkaPublisher) PublishBetSubmitted(ctx context.Context, e events.BetSubmitted) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = p.clock().UnixMilli()
	}
	return publish(ctx, p.Submitted, e.TransactionSignature, e)
}

func (p *KafkaPublisher) PublishBetSaveFailed(ctx context.Context, e events.BetSaveFailed) error {
	if e.Ts.IsZero() {
		e.Ts = p.clock()
	}
	return publish(ctx, p.SaveFailed, e.TransactionSignature, e)
}

func (p *KafkaPublisher) PublishBetReconciled(ctx context.Context, e events.BetReconciled) error {
	if e.Ts.IsZero() {
		e.Ts = p.clock()
	}
	return publish(ctx, p.Reconciled, e.TransactionSignature, e)
}

func (p *KafkaPublisher) PublishDeadLetter(ctx context.Context, e events.BetDeadLettered) error {
	if e.Ts.IsZero() {
		e.Ts = p.clock()
	}
	return publish(ctx, p.DLQ, e.TransactionSignature, e)
}

func (p *KafkaPublisher) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// chave = assinatura, mantendo os eventos de uma aposta na mesma partição
func publish(ctx context.Context, w kafka.MessageWriter, key string, v any) error {
	if w == nil {
		return nil
	}
	return kafka.WriteJSON(ctx, w, key, v)
}
