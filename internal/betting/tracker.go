package betting

import (
	"context"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/backend/dto"
	"github.com/radieske/battle-memecoin-club/internal/chain/placebet"
	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/pkg/apperr"
)

// Match é a partida ativa com a conta on-chain já resolvida
type Match struct {
	ID       string
	Fighters []string
	Account  solana.PublicKey
	Status   string
}

// Fighter devolve o nome do lutador como o match o grafa; sem lista de
// lutadores do backend o nome informado vale como está
func (m Match) Fighter(name string) (string, bool) {
	if len(m.Fighters) == 0 {
		return name, true
	}
	for _, f := range m.Fighters {
		if strings.EqualFold(f, name) {
			return f, true
		}
	}
	return "", false
}

type MatchAPI interface {
	ActiveMatch(ctx context.Context) (*dto.Match, error)
	ActiveBets(ctx context.Context, matchID string) (dto.MatchBettingSummary, error)
}

// MatchTracker mantém a partida ativa
type MatchTracker struct {
	api       MatchAPI
	programID solana.PublicKey
	log       *zap.Logger

	mu      sync.Mutex
	current *Match
}

func NewMatchTracker(api MatchAPI, programID solana.PublicKey, log *zap.Logger) *MatchTracker {
	return &MatchTracker{api: api, programID: programID, log: logger.OrNop(log).Named("matches")}
}

func (t *MatchTracker) Current() (Match, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Match{}, false
	}
	return *t.current, true
}

// Set fixa a partida manualmente (CLI com --match)
func (t *MatchTracker) Set(m Match) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = &m
}

// Refresh busca a partida ativa; sem partida, limpa o estado
func (t *MatchTracker) Refresh(ctx context.Context) (Match, bool, error) {
	remote, err := t.api.ActiveMatch(ctx)
	if err != nil {
		return Match{}, false, err
	}
	if remote == nil || remote.MatchID == "" {
		t.mu.Lock()
		t.current = nil
		t.mu.Unlock()
		return Match{}, false, nil
	}

	m, err := t.resolve(*remote)
	if err != nil {
		return Match{}, false, err
	}
	t.Set(m)
	return m, true, nil
}

// Resolve converte a partida do backend, derivando a conta quando ausente
func (t *MatchTracker) Resolve(matchID, account string, fighters []string) (Match, error) {
	return t.resolve(dto.Match{MatchID: matchID, MatchAccount: account, Fighters: fighters})
}

func (t *MatchTracker) resolve(remote dto.Match) (Match, error) {
	m := Match{ID: remote.MatchID, Fighters: remote.Fighters, Status: remote.Status}
	if remote.MatchAccount != "" {
		pk, err := solana.PublicKeyFromBase58(remote.MatchAccount)
		if err != nil {
			return Match{}, apperr.ErrBackend("invalid match account from backend", err)
		}
		m.Account = pk
		return m, nil
	}
	pk, err := placebet.MatchAccountAddress(t.programID, remote.MatchID)
	if err != nil {
		return Match{}, apperr.Internal("derive match account", err)
	}
	t.log.Debug("match account derived", zap.String("match_id", m.ID), zap.String("account", pk.String()))
	m.Account = pk
	return m, nil
}

// Summary devolve o resumo de apostas da partida ativa
func (t *MatchTracker) Summary(ctx context.Context) (dto.MatchBettingSummary, error) {
	m, ok := t.Current()
	if !ok {
		return dto.MatchBettingSummary{}, apperr.FailedPrecondition("no active match")
	}
	return t.api.ActiveBets(ctx, m.ID)
}

type PositionAPI interface {
	CurrentBet(ctx context.Context, token string, userID dto.ID, matchID string) (*dto.Bet, error)
}

// PositionTracker guarda a aposta atual do usuário na partida ativa.
// Só uma consulta por vez; chamadas concorrentes devolvem o valor em cache.
type PositionTracker struct {
	api     PositionAPI
	session SessionSource
	matches MatchSource

	mu       sync.Mutex
	inFlight bool
	bet      *dto.Bet
}

func NewPositionTracker(api PositionAPI, session SessionSource, matches MatchSource) *PositionTracker {
	return &PositionTracker{api: api, session: session, matches: matches}
}

func (p *PositionTracker) Current() *dto.Bet {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bet == nil {
		return nil
	}
	b := *p.bet
	return &b
}

func (p *PositionTracker) Refresh(ctx context.Context) (*dto.Bet, error) {
	sess, ok := p.session.Session()
	if !ok {
		return nil, apperr.FailedPrecondition("sign in to load your bet")
	}
	match, ok := p.matches.Current()
	if !ok {
		return nil, apperr.FailedPrecondition("no active match")
	}

	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return p.Current(), nil
	}
	p.inFlight = true
	p.mu.Unlock()

	bet, err := p.api.CurrentBet(ctx, sess.Token, sess.User.ID, match.ID)

	p.mu.Lock()
	p.inFlight = false
	if err == nil {
		p.bet = bet
	}
	p.mu.Unlock()

	if err != nil {
		p.session.HandleUnauthorized(ctx, err)
		return nil, err
	}
	return p.Current(), nil
}
