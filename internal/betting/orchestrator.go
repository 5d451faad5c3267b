package betting

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/auth"
	"github.com/radieske/battle-memecoin-club/internal/backend/dto"
	"github.com/radieske/battle-memecoin-club/internal/chain/placebet"
	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
	"github.com/radieske/battle-memecoin-club/internal/wallet"
	"github.com/radieske/battle-memecoin-club/pkg/apperr"
	"github.com/radieske/battle-memecoin-club/pkg/contracts/events"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusCancelled  Status = "cancelled"
	StatusAlreadyBet Status = "already-bet"
	StatusFailed     Status = "failed"
)

// Update é o que a UI recebe durante uma submissão
type Update struct {
	Status    Status
	Signature string // preenchida quando a transação foi enviada
	BetID     string
	Reason    string // texto para o usuário em Failed
	Err       error
}

func (u Update) Terminal() bool { return u.Status != StatusProcessing }

// SessionSource é o lado da autenticação que o orquestrador consulta
type SessionSource interface {
	Session() (auth.Session, bool)
	Wallet() wallet.Wallet
	HandleUnauthorized(ctx context.Context, err error) bool
}

type ChainPlacer interface {
	PlaceBetOnChain(ctx context.Context, w wallet.Wallet, intent placebet.BetIntent) (placebet.OnChainTransaction, error)
}

type BetSaver interface {
	PlaceBet(ctx context.Context, token string, req dto.PlaceBetRequest) (dto.PlaceBetResponse, error)
}

type MatchSource interface {
	Current() (Match, bool)
}

// UnsavedBet é uma aposta que entrou na chain mas não foi gravada no backend
type UnsavedBet struct {
	UserID        string
	WalletAddress string
	MatchID       string
	FighterName   string
	AmountSol     float64
	Signature     string
	Reason        string
}

// UnsavedBetRecorder recebe apostas para reconciliação posterior
type UnsavedBetRecorder interface {
	RecordUnsaved(ctx context.Context, bet UnsavedBet) error
}

type EventPublisher interface {
	PublishBetSubmitted(ctx context.Context, ev events.BetSubmitted) error
}

type Options struct {
	Unsaved UnsavedBetRecorder // opcional
	Events  EventPublisher     // opcional
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Orchestrator coordena envio on-chain e gravação no backend.
// Uma submissão por vez.
type Orchestrator struct {
	session SessionSource
	placer  ChainPlacer
	saver   BetSaver
	matches MatchSource
	unsaved UnsavedBetRecorder
	events  EventPublisher
	log     *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	inFlight bool
}

func NewOrchestrator(session SessionSource, placer ChainPlacer, saver BetSaver, matches MatchSource, opts Options) *Orchestrator {
	return &Orchestrator{
		session: session,
		placer:  placer,
		saver:   saver,
		matches: matches,
		unsaved: opts.Unsaved,
		events:  opts.Events,
		log:     logger.OrNop(opts.Log).Named("orchestrator"),
		metrics: metrics.OrDiscard(opts.Metrics),
	}
}

type submission struct {
	session auth.Session
	wallet  wallet.Wallet
	intent  placebet.BetIntent
}

// InFlight indica se há uma submissão em andamento
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// begin valida as pré-condições sem rede e reserva o slot de submissão
func (o *Orchestrator) begin(fighterName string, amountSol float64) (*submission, error) {
	w := o.session.Wallet()
	if !wallet.Connected(w) {
		return nil, apperr.ErrWalletNotConnected
	}
	sess, ok := o.session.Session()
	if !ok || sess.User.ID == "" {
		return nil, apperr.FailedPrecondition("sign in before placing a bet")
	}
	match, ok := o.matches.Current()
	if !ok || match.ID == "" {
		return nil, apperr.FailedPrecondition("no active match")
	}
	if match.Account.IsZero() {
		return nil, apperr.FailedPrecondition("match account not resolved")
	}
	fighterName = strings.TrimSpace(fighterName)
	if fighterName == "" {
		return nil, apperr.InvalidArg("fighter name is required")
	}
	canonical, ok := match.Fighter(fighterName)
	if !ok {
		return nil, apperr.InvalidArg("fighter " + fighterName + " is not in this match")
	}
	fighterName = canonical
	if _, err := placebet.SolToLamports(amountSol); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight {
		return nil, apperr.ErrBetInFlight
	}
	o.inFlight = true

	return &submission{
		session: sess,
		wallet:  w,
		intent: placebet.BetIntent{
			MatchID:      match.ID,
			FighterName:  fighterName,
			AmountSol:    amountSol,
			MatchAccount: match.Account,
		},
	}, nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.inFlight = false
	o.mu.Unlock()
}

// SubmitBet envia a aposta e reporta por onUpdate: um Processing imediato e
// depois exatamente um status terminal, que também é devolvido.
// O erro só é não-nil quando uma pré-condição falha; nesse caso nada é emitido.
func (o *Orchestrator) SubmitBet(ctx context.Context, fighterName string, amountSol float64, onUpdate func(Update)) (Update, error) {
	sub, err := o.begin(fighterName, amountSol)
	if err != nil {
		return Update{}, err
	}
	defer o.end()
	return o.run(ctx, sub, onUpdate), nil
}

// SubmitBetAsync é a versão com canal: recebe Processing e o terminal, depois é fechado
func (o *Orchestrator) SubmitBetAsync(ctx context.Context, fighterName string, amountSol float64) (<-chan Update, error) {
	sub, err := o.begin(fighterName, amountSol)
	if err != nil {
		return nil, err
	}
	ch := make(chan Update, 2)
	go func() {
		defer close(ch)
		defer o.end()
		o.run(ctx, sub, func(u Update) { ch <- u })
	}()
	return ch, nil
}

func (o *Orchestrator) run(ctx context.Context, sub *submission, onUpdate func(Update)) Update {
	emit := func(u Update) {
		if onUpdate != nil {
			onUpdate(u)
		}
	}
	emit(Update{Status: StatusProcessing})

	final := o.execute(ctx, sub)
	o.metrics.BetOutcomes.WithLabelValues(string(final.Status)).Inc()
	fields := []zap.Field{
		zap.String("status", string(final.Status)),
		zap.String("match_id", sub.intent.MatchID),
		zap.String("fighter", sub.intent.FighterName),
		zap.Float64("amount_sol", sub.intent.AmountSol),
		zap.String("signature", final.Signature),
	}
	if final.Status == StatusFailed {
		o.log.Warn("bet submission failed", append(fields, zap.Error(final.Err))...)
	} else {
		o.log.Info("bet submission finished", fields...)
	}

	emit(final)
	return final
}

func (o *Orchestrator) execute(ctx context.Context, sub *submission) Update {
	tx, err := o.placer.PlaceBetOnChain(ctx, sub.wallet, sub.intent)
	if err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeSignatureRejected:
			return Update{Status: StatusCancelled, Err: err}
		case apperr.CodeAlreadyBet:
			return Update{Status: StatusAlreadyBet, Reason: reasonOf(err), Err: err}
		}
		return Update{Status: StatusFailed, Reason: reasonOf(err), Err: err}
	}
	sig := tx.Signature.String()

	resp, err := o.saver.PlaceBet(ctx, sub.session.Token, dto.PlaceBetRequest{
		UserID:               sub.session.User.ID,
		WalletAddress:        sub.session.WalletAddress,
		MatchID:              sub.intent.MatchID,
		FighterName:          sub.intent.FighterName,
		Amount:               sub.intent.AmountSol,
		TransactionSignature: sig,
	})
	if err != nil {
		if apperr.HasCode(err, apperr.CodeAlreadyBet) {
			return Update{Status: StatusAlreadyBet, Signature: sig, Reason: reasonOf(err), Err: err}
		}
		o.session.HandleUnauthorized(ctx, err)
		o.recordUnsaved(ctx, sub, sig, err)
		return Update{
			Status:    StatusFailed,
			Signature: sig,
			Reason:    "bet was sent on chain but could not be saved: " + reasonOf(err),
			Err:       err,
		}
	}

	betID := resp.BetID.String()
	o.publishSubmitted(ctx, sub, sig, betID)
	return Update{Status: StatusConfirmed, Signature: sig, BetID: betID}
}

// recordUnsaved entrega a aposta à reconciliação; usa contexto próprio para
// não perder o registro quando o chamador já cancelou
func (o *Orchestrator) recordUnsaved(ctx context.Context, sub *submission, sig string, cause error) {
	if o.unsaved == nil {
		o.log.Error("on-chain bet not saved and no reconciliation configured",
			zap.String("signature", sig), zap.Error(cause))
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err := o.unsaved.RecordUnsaved(rctx, UnsavedBet{
		UserID:        sub.session.User.ID.String(),
		WalletAddress: sub.session.WalletAddress,
		MatchID:       sub.intent.MatchID,
		FighterName:   sub.intent.FighterName,
		AmountSol:     sub.intent.AmountSol,
		Signature:     sig,
		Reason:        cause.Error(),
	})
	if err != nil {
		o.log.Error("failed to record unsaved bet", zap.String("signature", sig), zap.Error(err))
	}
}

func (o *Orchestrator) publishSubmitted(ctx context.Context, sub *submission, sig, betID string) {
	if o.events == nil {
		return
	}
	err := o.events.PublishBetSubmitted(ctx, events.BetSubmitted{
		BetID:                betID,
		UserID:               sub.session.User.ID.String(),
		WalletAddress:        sub.session.WalletAddress,
		MatchID:              sub.intent.MatchID,
		FighterName:          sub.intent.FighterName,
		AmountSol:            sub.intent.AmountSol,
		TransactionSignature: sig,
		TsUnixMs:             time.Now().UnixMilli(),
	})
	if err != nil {
		o.log.Warn("publish bet_submitted failed", zap.String("signature", sig), zap.Error(err))
	}
}

// reasonOf devolve a mensagem de negócio do erro, sem a cadeia técnica
func reasonOf(err error) string {
	var ae *apperr.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}
