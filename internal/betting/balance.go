package betting

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/chain/placebet"
	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
)

type BalanceReader interface {
	GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
}

type Balance struct {
	Owner    solana.PublicKey
	Lamports uint64
	At       time.Time
}

func (b Balance) SOL() float64 { return placebet.LamportsToSol(b.Lamports) }

// BalancePoller atualiza o saldo SOL periodicamente. Cada consulta recebe um
// número de geração e só é aplicada se for mais nova que a última aplicada.
type BalancePoller struct {
	reader   BalanceReader
	interval time.Duration
	onUpdate func(Balance)
	log      *zap.Logger

	mu      sync.Mutex
	issued  uint64
	applied uint64
	last    Balance
	hasLast bool
}

func NewBalancePoller(reader BalanceReader, interval time.Duration, onUpdate func(Balance), log *zap.Logger) *BalancePoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &BalancePoller{
		reader:   reader,
		interval: interval,
		onUpdate: onUpdate,
		log:      logger.OrNop(log).Named("balance"),
	}
}

func (p *BalancePoller) Last() (Balance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.hasLast
}

// Refresh consulta o saldo agora. Resultado de consulta superada é descartado.
func (p *BalancePoller) Refresh(ctx context.Context, owner solana.PublicKey) (Balance, error) {
	p.mu.Lock()
	p.issued++
	gen := p.issued
	p.mu.Unlock()

	lamports, err := p.reader.GetBalance(ctx, owner)
	if err != nil {
		return Balance{}, err
	}
	b := Balance{Owner: owner, Lamports: lamports, At: time.Now()}

	p.mu.Lock()
	if gen <= p.applied {
		cur := p.last
		p.mu.Unlock()
		return cur, nil
	}
	p.applied = gen
	p.last = b
	p.hasLast = true
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(b)
	}
	return b, nil
}

// Run consulta na hora e depois a cada intervalo até ctx acabar.
// owner devolve false quando não há carteira conectada.
func (p *BalancePoller) Run(ctx context.Context, owner func() (solana.PublicKey, bool)) {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		if pk, ok := owner(); ok {
			if _, err := p.Refresh(ctx, pk); err != nil && ctx.Err() == nil {
				p.log.Warn("balance refresh failed", zap.String("owner", pk.String()), zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
