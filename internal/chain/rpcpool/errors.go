package rpcpool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// AggregateConnectionError indica que todos os endpoints esgotaram as tentativas
type AggregateConnectionError struct {
	Endpoints []string // rótulos, na ordem tentada
	Last      error
}

func (e *AggregateConnectionError) Error() string {
	return fmt.Sprintf("all %d RPC endpoints failed [%s]: %v",
		len(e.Endpoints), strings.Join(e.Endpoints, ", "), e.Last)
}

func (e *AggregateConnectionError) Unwrap() error { return e.Last }

// Códigos JSON-RPC do validador que não mudam trocando de nó
const (
	codeInvalidParams         = -32602
	codeSimulationFailed      = -32002
	codeSignatureVerification = -32003
)

// IsDeterministic diz se err vem do programa/validação e não do transporte:
// repetir no mesmo nó ou em outro não muda o resultado.
func IsDeterministic(err error) bool {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	switch rpcErr.Code {
	case codeSimulationFailed, codeSignatureVerification, codeInvalidParams:
		// blockhash desconhecido depende do nó, vale tentar outro
		return !strings.Contains(strings.ToLower(rpcErr.Message), "blockhash not found")
	}
	return false
}
