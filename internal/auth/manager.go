package auth

import (
	"context"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/backend/dto"
	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
	"github.com/radieske/battle-memecoin-club/internal/wallet"
	"github.com/radieske/battle-memecoin-club/pkg/apperr"
)

type State string

const (
	StateDisconnected     State = "disconnected"
	StateChallengePending State = "challenge-pending"
	StateChallengeReady   State = "challenge-ready"
	StateSigning          State = "signing"
	StateVerifying        State = "verifying"
	StateAuthenticated    State = "authenticated"
)

// Challenge é de uso único e vive só em memória
type Challenge struct {
	Value     string
	ExpiresAt time.Time
}

func (c Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type Session struct {
	WalletAddress string
	Token         string
	User          dto.User
}

// Backend é o subconjunto da API REST usado pela autenticação
type Backend interface {
	RequestChallenge(ctx context.Context, walletAddress string) (dto.ChallengeResponse, error)
	Verify(ctx context.Context, req dto.VerifyRequest) (dto.VerifyResponse, error)
	CurrentUser(ctx context.Context, token string) (dto.User, error)
}

type Options struct {
	DisconnectGrace time.Duration // default 1s
	Log             *zap.Logger
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

// Manager é o dono do challenge e da sessão. epoch muda a cada desconexão,
// troca de carteira ou sign-out e invalida respostas que chegam atrasadas.
type Manager struct {
	backend Backend
	store   TokenStore
	grace   time.Duration
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics

	mu                 sync.Mutex
	state              State
	epoch              uint64
	wallet             wallet.Wallet
	lastAddress        string
	challenge          *Challenge
	session            *Session
	challengeInFlight  bool
	signInFlight       bool
	disconnectingUntil time.Time

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

func NewManager(backend Backend, store TokenStore, opts Options) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if opts.DisconnectGrace <= 0 {
		opts.DisconnectGrace = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		backend: backend,
		store:   store,
		grace:   opts.DisconnectGrace,
		now:     opts.Now,
		log:     logger.OrNop(opts.Log).Named("auth"),
		metrics: metrics.OrDiscard(opts.Metrics),
		state:   StateDisconnected,
		subs:    make(map[int]func(State)),
	}
}

// Subscribe registra fn para cada mudança de estado; devolve a função de cancelamento
func (m *Manager) Subscribe(fn func(State)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// Session devolve uma cópia da sessão ativa
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.state != StateAuthenticated {
		return Session{}, false
	}
	return *m.session, true
}

func (m *Manager) Challenge() (Challenge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.challenge == nil {
		return Challenge{}, false
	}
	return *m.challenge, true
}

func (m *Manager) Wallet() wallet.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallet
}

// setLocked troca o estado; o chamador publica depois de soltar o lock
func (m *Manager) setLocked(s State) bool {
	if m.state == s {
		return false
	}
	m.state = s
	return true
}

func (m *Manager) publish(s State) {
	m.metrics.AuthTransitions.WithLabelValues(string(s)).Inc()
	m.log.Debug("auth state changed", zap.String("state", string(s)))

	m.subMu.Lock()
	fns := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// transition muda o estado se epoch ainda for o mesmo
func (m *Manager) transition(epoch uint64, s State) bool {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return false
	}
	changed := m.setLocked(s)
	m.mu.Unlock()
	if changed {
		m.publish(s)
	}
	return true
}

// Connect associa a carteira. Troca de endereço descarta challenge e sessão.
// Sem sessão, tenta reidratar o token salvo e só então pede um challenge.
func (m *Manager) Connect(ctx context.Context, w wallet.Wallet) error {
	if !wallet.Connected(w) {
		return apperr.ErrWalletNotConnected
	}
	addr := w.PublicKey().String()

	m.mu.Lock()
	switched := m.lastAddress != "" && m.lastAddress != addr
	if switched {
		m.epoch++
		m.challenge = nil
		m.session = nil
		m.challengeInFlight = false
	}
	m.wallet = w
	m.lastAddress = addr
	changed := switched && m.setLocked(StateDisconnected)
	authenticated := m.state == StateAuthenticated && m.session != nil && m.session.WalletAddress == addr
	m.mu.Unlock()

	if changed {
		m.publish(StateDisconnected)
	}
	if switched {
		m.log.Info("wallet switched, session discarded", zap.String("wallet", addr))
		if err := m.store.Delete(ctx); err != nil {
			m.log.Warn("failed to remove persisted token", zap.Error(err))
		}
	}
	if authenticated {
		return nil
	}

	ok, err := m.Rehydrate(ctx)
	if ok {
		return nil
	}
	// token recusado pelo backend já foi removido: segue para um challenge novo
	if err != nil && !apperr.HasCode(err, apperr.CodeSessionExpired) {
		return err
	}
	return m.RequestChallenge(ctx)
}

// RequestChallenge busca um challenge novo. Vira no-op com outro pedido em voo,
// challenge ainda válido, sessão ativa ou durante a janela de desconexão.
func (m *Manager) RequestChallenge(ctx context.Context) error {
	m.mu.Lock()
	if m.wallet == nil {
		m.mu.Unlock()
		return apperr.ErrWalletNotConnected
	}
	now := m.now()
	if now.Before(m.disconnectingUntil) || m.challengeInFlight || m.state == StateAuthenticated ||
		(m.challenge != nil && !m.challenge.Expired(now)) {
		m.mu.Unlock()
		return nil
	}
	m.challenge = nil
	m.challengeInFlight = true
	epoch := m.epoch
	addr := m.lastAddress
	changed := m.setLocked(StateChallengePending)
	m.mu.Unlock()
	if changed {
		m.publish(StateChallengePending)
	}

	resp, err := m.backend.RequestChallenge(ctx, addr)

	m.mu.Lock()
	if m.epoch != epoch {
		// desconectou ou trocou de carteira no meio do pedido
		m.mu.Unlock()
		return nil
	}
	m.challengeInFlight = false
	next := StateChallengeReady
	if err != nil {
		next = StateDisconnected
	} else {
		m.challenge = &Challenge{Value: resp.Challenge, ExpiresAt: resp.ExpiresAt}
	}
	changed = m.setLocked(next)
	m.mu.Unlock()
	if changed {
		m.publish(next)
	}

	if err != nil {
		m.log.Warn("challenge request failed", zap.String("wallet", addr), zap.Error(err))
		return apperr.ErrChallengeRequestFailed(err)
	}
	return nil
}

// SignIn assina o challenge pronto e troca a assinatura por um token.
// Devolve nil, nil quando outro sign-in já está em andamento.
func (m *Manager) SignIn(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.wallet == nil {
		m.mu.Unlock()
		return nil, apperr.ErrWalletNotConnected
	}
	if m.signInFlight {
		m.mu.Unlock()
		return nil, nil
	}
	if m.state == StateAuthenticated && m.session != nil {
		s := *m.session
		m.mu.Unlock()
		return &s, nil
	}
	if m.challenge == nil || m.state != StateChallengeReady {
		m.mu.Unlock()
		return nil, apperr.FailedPrecondition("no sign-in challenge available, request a new one")
	}
	if m.challenge.Expired(m.now()) {
		m.challenge = nil
		changed := m.setLocked(StateDisconnected)
		m.mu.Unlock()
		if changed {
			m.publish(StateDisconnected)
		}
		return nil, apperr.FailedPrecondition("sign-in challenge expired, request a new one")
	}
	m.signInFlight = true
	ch := *m.challenge
	w := m.wallet
	addr := m.lastAddress
	epoch := m.epoch
	m.setLocked(StateSigning)
	m.mu.Unlock()
	m.publish(StateSigning)

	defer func() {
		m.mu.Lock()
		m.signInFlight = false
		m.mu.Unlock()
	}()

	sig, err := w.SignMessage(ctx, []byte(ch.Value))
	if err != nil {
		// challenge continua válido: pode tentar de novo sem novo pedido
		m.transition(epoch, StateChallengeReady)
		if wallet.IsUserRejection(err) {
			m.log.Info("sign-in signature cancelled by user", zap.String("wallet", addr))
			return nil, apperr.Wrap(apperr.CodeSignatureRejected, "signature request rejected by user", err)
		}
		return nil, apperr.Internal("sign challenge", err)
	}
	if len(sig) != 64 {
		m.transition(epoch, StateChallengeReady)
		return nil, apperr.Internal("wallet returned a malformed signature", nil)
	}

	if !m.transition(epoch, StateVerifying) {
		return nil, apperr.FailedPrecondition("wallet changed during sign-in")
	}

	resp, err := m.backend.Verify(ctx, dto.VerifyRequest{
		WalletAddress: addr,
		Signature:     base58.Encode(sig),
		Challenge:     ch.Value,
	})
	if err != nil {
		m.mu.Lock()
		if m.epoch == epoch {
			m.challenge = nil
		}
		m.mu.Unlock()
		m.transition(epoch, StateDisconnected)
		m.log.Warn("signature verification failed", zap.String("wallet", addr), zap.Error(err))
		return nil, apperr.ErrVerificationFailed(err)
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return nil, apperr.FailedPrecondition("wallet changed during sign-in")
	}
	session := &Session{WalletAddress: addr, Token: resp.Token, User: resp.User}
	m.session = session
	m.challenge = nil
	m.setLocked(StateAuthenticated)
	m.mu.Unlock()

	if err := m.store.Save(ctx, resp.Token); err != nil {
		m.log.Warn("failed to persist session token", zap.Error(err))
	}
	m.publish(StateAuthenticated)
	m.log.Info("wallet authenticated", zap.String("wallet", addr), zap.String("user_id", resp.User.ID.String()))

	out := *session
	return &out, nil
}

// Rehydrate autentica com o token salvo, sem challenge. JWT expirado é descartado.
func (m *Manager) Rehydrate(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.wallet == nil {
		m.mu.Unlock()
		return false, apperr.ErrWalletNotConnected
	}
	if m.state == StateAuthenticated {
		m.mu.Unlock()
		return true, nil
	}
	epoch := m.epoch
	addr := m.lastAddress
	m.mu.Unlock()

	token, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn("failed to load persisted token", zap.Error(err))
		return false, nil
	}
	if token == "" {
		return false, nil
	}
	if tokenExpired(token, m.now()) {
		m.log.Info("persisted session expired, discarding")
		if err := m.store.Delete(ctx); err != nil {
			m.log.Warn("failed to remove persisted token", zap.Error(err))
		}
		return false, nil
	}

	user := userFromToken(token)
	if user.WalletAddress != "" && user.WalletAddress != addr {
		m.log.Info("persisted session belongs to another wallet, discarding")
		_ = m.store.Delete(ctx)
		return false, nil
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return false, nil
	}
	m.session = &Session{WalletAddress: addr, Token: token, User: user}
	m.challenge = nil
	m.setLocked(StateAuthenticated)
	m.mu.Unlock()
	m.publish(StateAuthenticated)

	if err := m.RefreshUser(ctx); err != nil {
		if apperr.HasCode(err, apperr.CodeSessionExpired) {
			return false, err
		}
		m.log.Warn("could not refresh user for rehydrated session", zap.Error(err))
	}
	return true, nil
}

// RefreshUser busca o usuário da sessão no backend; 401 encerra a sessão
func (m *Manager) RefreshUser(ctx context.Context) error {
	s, ok := m.Session()
	if !ok {
		return apperr.ErrSessionExpired
	}
	user, err := m.backend.CurrentUser(ctx, s.Token)
	if err != nil {
		m.HandleUnauthorized(ctx, err)
		return err
	}
	if user.WalletAddress != "" && user.WalletAddress != s.WalletAddress {
		_ = m.SignOut(ctx)
		return apperr.ErrSessionExpired
	}

	m.mu.Lock()
	if m.session != nil && m.session.Token == s.Token {
		m.session.User = user
	}
	m.mu.Unlock()
	return nil
}

// HandleUnauthorized encerra a sessão quando err é um 401 de chamada autenticada
func (m *Manager) HandleUnauthorized(ctx context.Context, err error) bool {
	if !apperr.HasCode(err, apperr.CodeSessionExpired) {
		return false
	}
	m.log.Info("backend rejected session token, signing out")
	if serr := m.SignOut(ctx); serr != nil {
		m.log.Warn("sign-out after 401 failed", zap.Error(serr))
	}
	return true
}

// SignOut remove o token salvo e volta para disconnected; a carteira continua conectada
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.epoch++
	m.session = nil
	m.challenge = nil
	m.challengeInFlight = false
	changed := m.setLocked(StateDisconnected)
	m.mu.Unlock()
	if changed {
		m.publish(StateDisconnected)
	}
	return m.store.Delete(ctx)
}

// Disconnect limpa challenge e sessão em memória e segura novos pedidos de
// challenge pela janela de graça. O token salvo fica para a próxima conexão.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.epoch++
	m.wallet = nil
	m.session = nil
	m.challenge = nil
	m.challengeInFlight = false
	m.disconnectingUntil = m.now().Add(m.grace)
	changed := m.setLocked(StateDisconnected)
	m.mu.Unlock()
	if changed {
		m.publish(StateDisconnected)
	}
}
