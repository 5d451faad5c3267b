package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/radieske/battle-memecoin-club/internal/backend/dto"
	"github.com/radieske/battle-memecoin-club/internal/reconcile/repo"
	"github.com/radieske/battle-memecoin-club/pkg/contracts/events"
)

func testSignature(b byte) string {
	raw := make([]byte, 64)
	for i := range raw {
		raw[i] = b
	}
	return solana.SignatureFromBytes(raw).String()
}

type memStore struct {
	mu      sync.Mutex
	rows    map[string]*repo.UnsavedBet
	bySig   map[string]string
	claims  int
	claimed []string
}

func newMemStore(rows ...repo.UnsavedBet) *memStore {
	s := &memStore{rows: make(map[string]*repo.UnsavedBet), bySig: make(map[string]string)}
	for i := range rows {
		r := rows[i]
		if r.Status == "" {
			r.Status = repo.StatusPending
		}
		s.rows[r.ID] = &r
		s.bySig[r.Signature] = r.ID
	}
	return s
}

func (s *memStore) Insert(_ context.Context, b repo.UnsavedBet) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.bySig[b.Signature]; ok {
		return id, false, nil
	}
	b.ID = "row-" + b.Signature[:6]
	b.Status = repo.StatusPending
	s.rows[b.ID] = &b
	s.bySig[b.Signature] = b.ID
	return b.ID, true, nil
}

func (s *memStore) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]repo.UnsavedBet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims++
	var out []repo.UnsavedBet
	for _, r := range s.rows {
		if len(out) == limit {
			break
		}
		if r.Status == repo.StatusPending && !r.NextAttemptAt.After(now) {
			r.NextAttemptAt = now.Add(lease)
			out = append(out, *r)
			s.claimed = append(s.claimed, r.ID)
		}
	}
	return out, nil
}

func (s *memStore) MarkSaved(_ context.Context, id, betID string) error {
	return s.update(id, func(r *repo.UnsavedBet) { r.Status = repo.StatusSaved; r.BetID = betID })
}

func (s *memStore) MarkFailedOnChain(_ context.Context, id, reason string) error {
	return s.update(id, func(r *repo.UnsavedBet) { r.Status = repo.StatusFailedOnChain; r.LastError = reason })
}

func (s *memStore) MarkRetry(_ context.Context, id, lastErr string, next time.Time) error {
	return s.update(id, func(r *repo.UnsavedBet) { r.Attempts++; r.LastError = lastErr; r.NextAttemptAt = next })
}

func (s *memStore) MarkDead(_ context.Context, id, lastErr string) error {
	return s.update(id, func(r *repo.UnsavedBet) { r.Status = repo.StatusDead; r.Attempts++; r.LastError = lastErr })
}

func (s *memStore) update(id string, fn func(*repo.UnsavedBet)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return repo.ErrNotFound
	}
	fn(r)
	return nil
}

func (s *memStore) get(id string) repo.UnsavedBet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rows[id]
}

type fakeChain struct {
	mu       sync.Mutex
	statuses map[string]*rpc.SignatureStatusesResult
	err      error
	calls    int
}

func (f *fakeChain) GetSignatureStatus(_ context.Context, sig solana.Signature, _ bool) (*rpc.SignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.statuses[sig.String()], nil
}

func confirmedStatus() *rpc.SignatureStatusesResult {
	return &rpc.SignatureStatusesResult{Slot: 10, ConfirmationStatus: rpc.ConfirmationStatusFinalized}
}

type fakeSaver struct {
	mu    sync.Mutex
	reqs  []dto.PlaceBetRequest
	token string
	resp  dto.PlaceBetResponse
	err   error
}

func (f *fakeSaver) PlaceBet(_ context.Context, token string, req dto.PlaceBetRequest) (dto.PlaceBetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

type fakePublisher struct {
	mu         sync.Mutex
	saveFailed []events.BetSaveFailed
	reconciled []events.BetReconciled
	dead       []events.BetDeadLettered
	err        error
}

func (f *fakePublisher) PublishBetSaveFailed(_ context.Context, e events.BetSaveFailed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveFailed = append(f.saveFailed, e)
	return f.err
}

func (f *fakePublisher) PublishBetReconciled(_ context.Context, e events.BetReconciled) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciled = append(f.reconciled, e)
	return f.err
}

func (f *fakePublisher) PublishDeadLetter(_ context.Context, e events.BetDeadLettered) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead = append(f.dead, e)
	return f.err
}
