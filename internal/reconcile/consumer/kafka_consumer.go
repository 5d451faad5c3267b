package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/reconcile/repo"
	"github.com/radieske/battle-memecoin-club/pkg/contracts/events"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Outbox interface {
	Insert(ctx context.Context, b repo.UnsavedBet) (id string, created bool, err error)
}

// SaveFailedConsumer consome bet_save_failed de clientes sem acesso ao Postgres
// e grava cada aposta no outbox. A inserção é idempotente por assinatura.
type SaveFailedConsumer struct {
	Log    *zap.Logger
	Reader MessageReader
	Outbox Outbox

	OnConsumed func()       // métricas (counter++)
	OnInserted func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run consome até o contexto ser cancelado
func (c *SaveFailedConsumer) Run(ctx context.Context) error {
	for {
		m, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Log.Warn("kafka read failed", zap.Error(err))
			c.fail("read")
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if c.OnConsumed != nil {
			c.OnConsumed()
		}

		var ev events.BetSaveFailed
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.TransactionSignature == "" {
			c.Log.Warn("invalid bet_save_failed message", zap.ByteString("key", m.Key), zap.Error(err))
			c.fail("decode")
			continue
		}

		id, created, err := c.Outbox.Insert(ctx, repo.UnsavedBet{
			Signature:     ev.TransactionSignature,
			UserID:        ev.UserID,
			WalletAddress: ev.WalletAddress,
			MatchID:       ev.MatchID,
			FighterName:   ev.FighterName,
			AmountSol:     ev.AmountSol,
			LastError:     ev.Reason,
		})
		if err != nil {
			c.Log.Warn("outbox insert failed", zap.String("signature", ev.TransactionSignature), zap.Error(err))
			c.fail("db_insert")
			continue
		}
		if created {
			c.Log.Info("unsaved bet ingested", zap.String("signature", ev.TransactionSignature), zap.String("id", id))
			if c.OnInserted != nil {
				c.OnInserted()
			}
		}
	}
}

func (c *SaveFailedConsumer) fail(phase string) {
	if c.OnError != nil {
		c.OnError(phase)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
