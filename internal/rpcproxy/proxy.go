// Package rpcproxy encaminha JSON-RPC do cliente para o provedor com chave,
// mantendo a chave só no servidor.
package rpcproxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
)

// DefaultMethods são os métodos que o cliente de apostas usa
var DefaultMethods = []string{
	"getBalance",
	"getLatestBlockhash",
	"sendTransaction",
	"getSignatureStatuses",
	"getTokenAccountsByOwner",
	"getAccountInfo",
	"getBlockHeight",
	"getHealth",
	"simulateTransaction",
}

const (
	defaultMaxBody  = 1 << 20
	defaultMaxBatch = 20
	requestIDHeader = "X-Request-Id"
)

// códigos JSON-RPC padrão
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodBlocked  = -32601
	codeUpstream       = -32603
)

type Options struct {
	UpstreamURL  string
	APIKey       string // anexado como ?api-key=
	AllowOrigin  string // default "*"
	Methods      []string
	MaxBodyBytes int64
	MaxBatch     int
	Timeout      time.Duration // default 30s
	HTTP         *http.Client
	Log          *zap.Logger
	Metrics      *metrics.Metrics
}

type Proxy struct {
	upstream    string
	allowOrigin string
	methods     map[string]struct{}
	maxBody     int64
	maxBatch    int
	http        *http.Client
	log         *zap.Logger
	metrics     *metrics.Metrics
}

func New(opts Options) (*Proxy, error) {
	u, err := url.Parse(opts.UpstreamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", opts.UpstreamURL)
	}
	if opts.APIKey != "" {
		q := u.Query()
		q.Set("api-key", opts.APIKey)
		u.RawQuery = q.Encode()
	}
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	if len(opts.Methods) == 0 {
		opts.Methods = DefaultMethods
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = defaultMaxBatch
	}
	if opts.HTTP == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		opts.HTTP = &http.Client{Timeout: timeout}
	}

	methods := make(map[string]struct{}, len(opts.Methods))
	for _, m := range opts.Methods {
		methods[m] = struct{}{}
	}
	return &Proxy{
		upstream:    u.String(),
		allowOrigin: opts.AllowOrigin,
		methods:     methods,
		maxBody:     opts.MaxBodyBytes,
		maxBatch:    opts.MaxBatch,
		http:        opts.HTTP,
		log:         logger.OrNop(opts.Log).Named("rpc-proxy"),
		metrics:     metrics.OrDiscard(opts.Metrics),
	}, nil
}

// Router expõe POST /api/rpc
func (p *Proxy) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(p.withRequestID, p.withCORS)
	r.Post("/api/rpc", p.forward)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcErrorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   rpcError        `json:"error"`
}

func (p *Proxy) forward(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := w.Header().Get(requestIDHeader)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, p.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			p.reject(w, "", nil, http.StatusRequestEntityTooLarge, codeInvalidRequest, "request body too large")
			return
		}
		p.reject(w, "", nil, http.StatusBadRequest, codeInvalidRequest, "read body")
		return
	}

	reqs, batch, err := parseRequests(body)
	if err != nil {
		p.reject(w, "", nil, http.StatusBadRequest, codeParseError, "parse error")
		return
	}
	if len(reqs) == 0 || len(reqs) > p.maxBatch {
		p.reject(w, "", nil, http.StatusBadRequest, codeInvalidRequest, "invalid batch size")
		return
	}

	label := "batch"
	if !batch {
		label = reqs[0].Method
	}
	for _, rq := range reqs {
		if _, ok := p.methods[rq.Method]; !ok {
			p.log.Warn("rpc method blocked", zap.String("requestId", reqID), zap.String("method", rq.Method))
			p.reject(w, "blocked", rq.ID, http.StatusForbidden, codeMethodBlocked, "method not allowed: "+rq.Method)
			return
		}
	}

	up, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.upstream, bytes.NewReader(body))
	if err != nil {
		p.reject(w, label, reqs[0].ID, http.StatusInternalServerError, codeUpstream, "build upstream request")
		return
	}
	up.Header.Set("Content-Type", "application/json")
	up.Header.Set(requestIDHeader, reqID)

	res, err := p.http.Do(up)
	if err != nil {
		p.log.Warn("rpc upstream failed", zap.String("requestId", reqID), zap.String("method", label), zap.Error(err))
		p.reject(w, label, reqs[0].ID, http.StatusBadGateway, codeUpstream, "upstream unavailable")
		return
	}
	defer res.Body.Close()

	if ct := res.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(res.StatusCode)
	_, _ = io.Copy(w, res.Body)

	p.metrics.ProxyRequests.WithLabelValues(label, strconv.Itoa(res.StatusCode)).Inc()
	p.log.Debug("rpc proxied",
		zap.String("requestId", reqID),
		zap.String("method", label),
		zap.Int("status", res.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
}

// parseRequests aceita um objeto ou um lote (array)
func parseRequests(body []byte) ([]rpcRequest, bool, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var reqs []rpcRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			return nil, true, err
		}
		return reqs, true, nil
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, false, err
	}
	return []rpcRequest{req}, false, nil
}

func (p *Proxy) reject(w http.ResponseWriter, label string, id json.RawMessage, status, code int, msg string) {
	if label == "" {
		label = "invalid"
	}
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	p.metrics.ProxyRequests.WithLabelValues(label, strconv.Itoa(status)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcErrorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   rpcError{Code: code, Message: msg},
	})
}

func (p *Proxy) withRequestID(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		h.ServeHTTP(w, r)
	})
}

func (p *Proxy) withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", p.allowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
