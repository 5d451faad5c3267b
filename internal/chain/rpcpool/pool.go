package rpcpool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
	"github.com/radieske/battle-memecoin-club/pkg/apperr"
)

// Operation é uma chamada contra uma única conexão. Precisa ser idempotente:
// o pool pode repeti-la no mesmo endpoint antes de trocar de nó.
type Operation[T any] func(ctx context.Context, cl *rpc.Client) (T, error)

type Options struct {
	MaxRetries     int           // tentativas extras por endpoint (total = MaxRetries+1)
	RetryDelay     time.Duration // base do backoff: RetryDelay * 2^(tentativa-1)
	AttemptTimeout time.Duration // limite de cada tentativa; 0 usa o default
	Log            *zap.Logger
	Metrics        *metrics.Metrics
}

const (
	defaultAttemptTimeout = 15 * time.Second
	maxBackoffInterval    = 30 * time.Second
)

// Pool executa operações RPC com retry e failover entre endpoints.
// current guarda o último endpoint saudável e é o único estado mutável.
type Pool struct {
	endpoints []Endpoint
	clients   []*rpc.Client

	maxRetries     int
	retryDelay     time.Duration
	attemptTimeout time.Duration

	log     *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	current int
}

func New(endpoints []Endpoint, opts Options) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, apperr.InvalidArg("rpc pool requires at least one endpoint")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = defaultAttemptTimeout
	}

	p := &Pool{
		endpoints:      append([]Endpoint(nil), endpoints...),
		clients:        make([]*rpc.Client, len(endpoints)),
		maxRetries:     opts.MaxRetries,
		retryDelay:     opts.RetryDelay,
		attemptTimeout: opts.AttemptTimeout,
		log:            logger.OrNop(opts.Log).Named("rpc-pool"),
		metrics:        metrics.OrDiscard(opts.Metrics),
	}
	for i, ep := range p.endpoints {
		p.clients[i] = rpc.New(ep.URL)
	}
	return p, nil
}

// Endpoints devolve uma cópia da lista em ordem de prioridade
func (p *Pool) Endpoints() []Endpoint {
	return append([]Endpoint(nil), p.endpoints...)
}

// Current devolve o endpoint preferido para a próxima chamada
func (p *Pool) Current() Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoints[p.current]
}

func (p *Pool) currentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Pool) markHealthy(idx int) {
	p.mu.Lock()
	prev := p.current
	p.current = idx
	p.mu.Unlock()

	if prev != idx {
		p.metrics.RPCFailovers.Inc()
		p.log.Info("rpc endpoint switched",
			zap.String("from", p.endpoints[prev].Label),
			zap.String("to", p.endpoints[idx].Label),
		)
	}
}

// Close libera as conexões HTTP de todos os endpoints
func (p *Pool) Close() error {
	var errs []error
	for _, cl := range p.clients {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}

// Call executa op começando pelo endpoint corrente e seguindo a ordem de
// prioridade (com volta ao início). Cada endpoint recebe até MaxRetries+1
// tentativas com backoff exponencial. Erros determinísticos do validador
// voltam direto, sem retry nem failover.
func Call[T any](ctx context.Context, p *Pool, op Operation[T]) (T, error) {
	var zero T
	n := len(p.endpoints)
	start := p.currentIndex()

	labels := make([]string, 0, n)
	var last error
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		labels = append(labels, p.endpoints[idx].Label)

		res, err := callEndpoint(ctx, p, idx, op)
		if err == nil {
			p.markHealthy(idx)
			return res, nil
		}
		if IsDeterministic(err) {
			return zero, err
		}
		if cerr := ctx.Err(); cerr != nil {
			return zero, cerr
		}

		last = err
		p.log.Warn("rpc endpoint exhausted, moving on",
			zap.String("endpoint", p.endpoints[idx].Label),
			zap.Int("attempts", p.maxRetries+1),
			zap.Error(err),
		)
	}

	agg := &AggregateConnectionError{Endpoints: labels, Last: last}
	return zero, apperr.Wrap(apperr.CodeAllEndpointsFailed, "rpc unavailable on all endpoints: "+strings.Join(labels, ", "), agg)
}

// Do é a versão de Call para operações sem retorno
func (p *Pool) Do(ctx context.Context, op func(ctx context.Context, cl *rpc.Client) error) error {
	_, err := Call(ctx, p, func(ctx context.Context, cl *rpc.Client) (struct{}, error) {
		return struct{}{}, op(ctx, cl)
	})
	return err
}

func callEndpoint[T any](ctx context.Context, p *Pool, idx int, op Operation[T]) (T, error) {
	ep := p.endpoints[idx]
	cl := p.clients[idx]

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.retryDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(maxBackoffInterval),
		backoff.WithMaxElapsedTime(0),
	)
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.maxRetries)), ctx)

	attempt := func() (T, error) {
		actx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
		defer cancel()

		res, err := op(actx, cl)
		if err != nil {
			p.metrics.RPCAttempts.WithLabelValues(ep.Label, "error").Inc()
			if IsDeterministic(err) {
				return res, backoff.Permanent(err)
			}
			return res, err
		}
		p.metrics.RPCAttempts.WithLabelValues(ep.Label, "ok").Inc()
		return res, nil
	}

	notify := func(err error, next time.Duration) {
		p.log.Debug("rpc attempt failed, retrying",
			zap.String("endpoint", ep.Label),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	}

	return backoff.RetryNotifyWithData(attempt, policy, notify)
}
