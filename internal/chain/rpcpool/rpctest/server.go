// Package rpctest sobe um nó JSON-RPC falso para testes do pool e do placer.
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
)

// Error é um erro JSON-RPC devolvido pelo handler
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// HandlerFunc recebe os params crus e devolve result ou erro
type HandlerFunc func(params json.RawMessage) (any, *Error)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type Server struct {
	*httptest.Server

	mu         sync.Mutex
	handlers   map[string]HandlerFunc
	calls      map[string]int
	failStatus int
}

// NewServer sobe o servidor e registra o Close no cleanup do teste
func NewServer(t testing.TB) *Server {
	s := &Server{
		handlers: make(map[string]HandlerFunc),
		calls:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Handle(method string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Result registra uma resposta fixa para method
func (s *Server) Result(method string, v any) {
	s.Handle(method, func(json.RawMessage) (any, *Error) { return v, nil })
}

// FailWith faz todas as chamadas responderem status HTTP sem corpo JSON; 0 desliga
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Server) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	status := s.failStatus
	h := s.handlers[req.Method]
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, "upstream unavailable", status)
		return
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if h == nil {
		resp["error"] = &Error{Code: -32601, Message: "Method not found"}
	} else if res, rpcErr := h(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = res
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func withContext(value any) map[string]any {
	return map[string]any{"context": map[string]any{"slot": 1}, "value": value}
}

// BalanceResult é o corpo de getBalance
func BalanceResult(lamports uint64) any {
	return withContext(lamports)
}

// BlockhashResult é o corpo de getLatestBlockhash
func BlockhashResult(hash solana.Hash, lastValidBlockHeight uint64) any {
	return withContext(map[string]any{
		"blockhash":            hash.String(),
		"lastValidBlockHeight": lastValidBlockHeight,
	})
}

// SignatureStatusResult é o corpo de getSignatureStatuses para uma assinatura;
// status vazio devolve [null] (assinatura desconhecida).
func SignatureStatusResult(status string, txErr any) any {
	if status == "" {
		return withContext([]any{nil})
	}
	return withContext([]any{map[string]any{
		"slot":               1,
		"confirmations":      nil,
		"err":                txErr,
		"confirmationStatus": status,
	}})
}

// EchoSignature responde sendTransaction com a primeira assinatura da transação enviada
func EchoSignature() HandlerFunc {
	return func(params json.RawMessage) (any, *Error) {
		tx, err := DecodeSentTransaction(params)
		if err != nil || len(tx.Signatures) == 0 {
			return nil, &Error{Code: -32602, Message: "invalid transaction"}
		}
		return tx.Signatures[0].String(), nil
	}
}

// DecodeSentTransaction lê a transação base64 dos params de sendTransaction
func DecodeSentTransaction(params json.RawMessage) (*solana.Transaction, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(params, &args); err != nil || len(args) == 0 {
		return nil, err
	}
	var encoded string
	if err := json.Unmarshal(args[0], &encoded); err != nil {
		return nil, err
	}
	return solana.TransactionFromBase64(encoded)
}

// SimulationError imita a recusa de preflight com erro customizado do programa
func SimulationError(customCode int, logs ...string) *Error {
	return &Error{
		Code:    -32002,
		Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x" + strconv.FormatInt(int64(customCode), 16),
		Data: map[string]any{
			"err":  map[string]any{"InstructionError": []any{0, map[string]any{"Custom": customCode}}},
			"logs": logs,
		},
	}
}
