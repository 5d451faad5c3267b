package betting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/battle-memecoin-club/internal/backend/dto"
	"github.com/radieske/battle-memecoin-club/internal/chain/placebet"
	"github.com/radieske/battle-memecoin-club/pkg/apperr"
)

type fakeMatchAPI struct {
	match   *dto.Match
	err     error
	summary dto.MatchBettingSummary
}

func (f *fakeMatchAPI) ActiveMatch(context.Context) (*dto.Match, error) { return f.match, f.err }

func (f *fakeMatchAPI) ActiveBets(_ context.Context, matchID string) (dto.MatchBettingSummary, error) {
	s := f.summary
	s.MatchID = matchID
	return s, nil
}

func TestMatchTrackerDerivesAccount(t *testing.T) {
	api := &fakeMatchAPI{match: &dto.Match{MatchID: "match-1", Fighters: []string{"pepe", "doge"}}}
	tr := NewMatchTracker(api, programID, nil)

	m, ok, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	want, err := placebet.MatchAccountAddress(programID, "match-1")
	require.NoError(t, err)
	assert.Equal(t, want, m.Account)
	name, ok := m.Fighter("PEPE")
	assert.True(t, ok)
	assert.Equal(t, "pepe", name)
	_, ok = m.Fighter("shiba")
	assert.False(t, ok)

	cur, ok := tr.Current()
	assert.True(t, ok)
	assert.Equal(t, m, cur)
}

func TestMatchTrackerUsesBackendAccount(t *testing.T) {
	api := &fakeMatchAPI{match: &dto.Match{MatchID: "match-1", MatchAccount: testMatchAccount.String()}}
	tr := NewMatchTracker(api, programID, nil)

	m, _, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testMatchAccount, m.Account)

	api.match = &dto.Match{MatchID: "match-2", MatchAccount: "not-base58!"}
	_, _, err = tr.Refresh(context.Background())
	assert.True(t, apperr.HasCode(err, apperr.CodeBackend))
}

func TestMatchTrackerClearsWhenNoMatch(t *testing.T) {
	api := &fakeMatchAPI{match: &dto.Match{MatchID: "match-1"}}
	tr := NewMatchTracker(api, programID, nil)
	_, _, err := tr.Refresh(context.Background())
	require.NoError(t, err)

	api.match = nil
	_, ok, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok = tr.Current()
	assert.False(t, ok)

	_, err = tr.Summary(context.Background())
	assert.True(t, apperr.HasCode(err, apperr.CodeFailedPrecondition))
}

func TestMatchTrackerSummary(t *testing.T) {
	api := &fakeMatchAPI{summary: dto.MatchBettingSummary{TotalPool: 4}}
	tr := NewMatchTracker(api, programID, nil)
	tr.Set(Match{ID: "match-9", Account: testMatchAccount})

	s, err := tr.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "match-9", s.MatchID)
	assert.Equal(t, 4.0, s.TotalPool)
}

type blockingPositions struct {
	calls   int
	mu      sync.Mutex
	entered chan struct{}
	release chan struct{}
	err     error
}

func (b *blockingPositions) CurrentBet(_ context.Context, token string, userID dto.ID, matchID string) (*dto.Bet, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	if b.err != nil {
		return nil, b.err
	}
	return &dto.Bet{BetID: "b-1", MatchID: matchID, FighterName: "pepe", Amount: 0.1, Status: "active"}, nil
}

func TestPositionTrackerInFlightGuard(t *testing.T) {
	api := &blockingPositions{entered: make(chan struct{}), release: make(chan struct{})}
	p := NewPositionTracker(api, signedIn(newWallet(t)), activeMatch())

	done := make(chan *dto.Bet, 1)
	go func() {
		b, _ := p.Refresh(context.Background())
		done <- b
	}()
	<-api.entered

	b, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, b, "no cached bet yet")

	close(api.release)
	got := <-done
	require.NotNil(t, got)
	assert.Equal(t, "match-1", got.MatchID)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, got, p.Current())
}

func TestPositionTrackerSignsOutOn401(t *testing.T) {
	sess := signedIn(newWallet(t))
	p := NewPositionTracker(&blockingPositions{err: apperr.ErrSessionExpired}, sess, activeMatch())

	_, err := p.Refresh(context.Background())
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	assert.Equal(t, 1, sess.unauthorized)

	_, err = p.Refresh(context.Background())
	assert.True(t, apperr.HasCode(err, apperr.CodeFailedPrecondition))
}

type scriptedBalance struct {
	mu    sync.Mutex
	calls int
	gates map[int]chan struct{} // chamada n espera no canal
	vals  map[int]uint64
	err   error
}

func (s *scriptedBalance) GetBalance(ctx context.Context, _ solana.PublicKey) (uint64, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	gate := s.gates[n]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if s.err != nil {
		return 0, s.err
	}
	return s.vals[n], nil
}

func TestBalancePollerDropsSupersededResult(t *testing.T) {
	gate := make(chan struct{})
	reader := &scriptedBalance{gates: map[int]chan struct{}{1: gate}, vals: map[int]uint64{1: 111, 2: 222}}
	var updates []uint64
	var mu sync.Mutex
	p := NewBalancePoller(reader, time.Minute, func(b Balance) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, b.Lamports)
	}, nil)
	owner := solana.PublicKey{1}

	slow := make(chan Balance, 1)
	go func() {
		b, _ := p.Refresh(context.Background(), owner)
		slow <- b
	}()
	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return reader.calls == 1
	}, time.Second, time.Millisecond)

	fast, err := p.Refresh(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(222), fast.Lamports)

	close(gate)
	assert.Equal(t, uint64(222), (<-slow).Lamports)

	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(222), last.Lamports)
	assert.Equal(t, 0.000000222, last.SOL())
	mu.Lock()
	assert.Equal(t, []uint64{222}, updates)
	mu.Unlock()
}

func TestBalancePollerRun(t *testing.T) {
	reader := &scriptedBalance{vals: map[int]uint64{1: 5, 2: 6, 3: 7}}
	got := make(chan uint64, 8)
	p := NewBalancePoller(reader, 5*time.Millisecond, func(b Balance) { got <- b.Lamports }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		p.Run(ctx, func() (solana.PublicKey, bool) { return solana.PublicKey{1}, true })
		close(stopped)
	}()

	assert.Equal(t, uint64(5), <-got, "first poll is immediate")
	assert.Equal(t, uint64(6), <-got)
	cancel()
	<-stopped
}

func TestBalancePollerSkipsWithoutWallet(t *testing.T) {
	reader := &scriptedBalance{err: errors.New("should not be called")}
	p := NewBalancePoller(reader, time.Millisecond, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p.Run(ctx, func() (solana.PublicKey, bool) { return solana.PublicKey{}, false })

	assert.Equal(t, 0, reader.calls)
}
