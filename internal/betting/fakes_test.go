package betting

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/radieske/battle-memecoin-club/internal/auth"
	"github.com/radieske/battle-memecoin-club/internal/backend/dto"
	"github.com/radieske/battle-memecoin-club/internal/chain/placebet"
	"github.com/radieske/battle-memecoin-club/internal/wallet"
	"github.com/radieske/battle-memecoin-club/pkg/apperr"
	"github.com/radieske/battle-memecoin-club/pkg/contracts/events"
)

var testMatchAccount = solana.MustPublicKeyFromBase58("7ML3DCVsqRDEJugs5dCs7NWQfjj82JRQcXKsSgemv4D3")

type fakeSession struct {
	mu           sync.Mutex
	wallet       wallet.Wallet
	session      *auth.Session
	unauthorized int
}

func (f *fakeSession) Session() (auth.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return auth.Session{}, false
	}
	return *f.session, true
}

func (f *fakeSession) Wallet() wallet.Wallet { return f.wallet }

func (f *fakeSession) HandleUnauthorized(_ context.Context, err error) bool {
	if !apperr.HasCode(err, apperr.CodeSessionExpired) {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unauthorized++
	f.session = nil
	return true
}

type fakePlacer struct {
	mu     sync.Mutex
	calls  []placebet.BetIntent
	err    error
	sig    solana.Signature
	block  chan struct{}
	called chan struct{}
}

func (f *fakePlacer) PlaceBetOnChain(ctx context.Context, _ wallet.Wallet, in placebet.BetIntent) (placebet.OnChainTransaction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	f.mu.Unlock()
	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return placebet.OnChainTransaction{}, f.err
	}
	return placebet.OnChainTransaction{Signature: f.sig}, nil
}

type fakeSaver struct {
	mu   sync.Mutex
	reqs []dto.PlaceBetRequest
	err  error
}

func (f *fakeSaver) PlaceBet(_ context.Context, _ string, req dto.PlaceBetRequest) (dto.PlaceBetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return dto.PlaceBetResponse{}, f.err
	}
	return dto.PlaceBetResponse{BetID: "bet-1", Status: "active"}, nil
}

type fixedMatch struct {
	m  Match
	ok bool
}

func (f fixedMatch) Current() (Match, bool) { return f.m, f.ok }

type recorder struct {
	mu      sync.Mutex
	unsaved []UnsavedBet
	events  []events.BetSubmitted
}

func (r *recorder) RecordUnsaved(_ context.Context, b UnsavedBet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsaved = append(r.unsaved, b)
	return nil
}

func (r *recorder) PublishBetSubmitted(_ context.Context, ev events.BetSubmitted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}
