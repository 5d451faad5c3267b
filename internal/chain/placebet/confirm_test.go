package placebet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
)

type scriptedStatus struct {
	mu      sync.Mutex
	replies []*rpc.SignatureStatusesResult
	errs    []error
	calls   int
}

func (s *scriptedStatus) GetSignatureStatus(_ context.Context, _ solana.Signature, _ bool) (*rpc.SignatureStatusesResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], err
	}
	return nil, err
}

func TestConfirmerPollUntilConfirmed(t *testing.T) {
	st := &scriptedStatus{
		replies: []*rpc.SignatureStatusesResult{nil, {ConfirmationStatus: rpc.ConfirmationStatusProcessed}, {ConfirmationStatus: rpc.ConfirmationStatusConfirmed}},
		errs:    []error{errors.New("node down")},
	}
	c := NewConfirmer(st, ConfirmOptions{Polls: 5, Interval: time.Millisecond})

	assert.Equal(t, ConfirmConfirmed, c.Poll(context.Background(), solana.Signature{1}))
	assert.Equal(t, 3, st.calls)
}

func TestConfirmerReportsOnChainFailure(t *testing.T) {
	st := &scriptedStatus{replies: []*rpc.SignatureStatusesResult{
		{ConfirmationStatus: rpc.ConfirmationStatusConfirmed, Err: map[string]any{"InstructionError": []any{0, "Custom"}}},
	}}
	c := NewConfirmer(st, ConfirmOptions{Polls: 5, Interval: time.Millisecond})

	assert.Equal(t, ConfirmFailed, c.Poll(context.Background(), solana.Signature{1}))
}

func TestConfirmerGivesUpAsUnknown(t *testing.T) {
	st := &scriptedStatus{}
	m := metrics.New(nil)
	var got ConfirmResult
	c := NewConfirmer(st, ConfirmOptions{
		Polls:    4,
		Interval: time.Millisecond,
		Metrics:  m,
		OnResult: func(_ solana.Signature, r ConfirmResult) { got = r },
	})

	c.Watch(context.Background(), OnChainTransaction{Signature: solana.Signature{9}})
	c.Wait()

	assert.Equal(t, ConfirmUnknown, got)
	assert.Equal(t, 4, st.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Confirmations.WithLabelValues("unknown")))
}

func TestConfirmerStopsWhenContextDone(t *testing.T) {
	c := NewConfirmer(&scriptedStatus{}, ConfirmOptions{Polls: 100, Interval: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Equal(t, ConfirmUnknown, c.Poll(ctx, solana.Signature{1}))
}
