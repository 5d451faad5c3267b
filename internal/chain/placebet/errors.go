package placebet

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/radieske/battle-memecoin-club/internal/wallet"
	"github.com/radieske/battle-memecoin-club/pkg/apperr"
)

// Código de erro do programa para aposta duplicada (AlreadyBet = 6001 = 0x1771)
const AlreadyBetErrorCode = 6001

var alreadyBetMarkers = []string{
	"custom program error: 0x1771",
	`"custom":6001`,
	"alreadybet",
	"already placed a bet",
}

var insufficientFundsMarkers = []string{
	"insufficient lamports",
	"insufficient funds",
	"no record of a prior credit",
}

var timeoutMarkers = []string{
	"block height exceeded",
	"blockhash not found",
	"transaction was not confirmed",
}

// TranslateError mapeia erros da carteira, do RPC e do programa para a taxonomia
// do núcleo. Erros já classificados passam direto.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if wallet.IsUserRejection(err) {
		return apperr.Wrap(apperr.CodeSignatureRejected, "signature request rejected by user", err)
	}

	// pool esgotado vence os marcadores do último erro dentro do agregado
	if apperr.HasCode(err, apperr.CodeAllEndpointsFailed) {
		return err
	}

	text := errorText(err)
	switch {
	case containsAny(text, alreadyBetMarkers):
		return apperr.Wrap(apperr.CodeAlreadyBet, "you have already placed a bet on this match", err)
	case containsAny(text, insufficientFundsMarkers):
		return apperr.Wrap(apperr.CodeInsufficientFunds, "insufficient SOL balance for this bet", err)
	case containsAny(text, timeoutMarkers):
		return apperr.ErrTransactionTimeout(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.ErrTransactionTimeout(err)
	}

	var ae *apperr.AppError
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal("place bet failed", err)
}

// errorText junta mensagem e data dos erros JSON-RPC (logs da simulação vêm em data)
func errorText(err error) string {
	var b strings.Builder
	b.WriteString(err.Error())

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		b.WriteByte(' ')
		b.WriteString(rpcErr.Message)
		if rpcErr.Data != nil {
			if raw, mErr := json.Marshal(rpcErr.Data); mErr == nil {
				b.WriteByte(' ')
				b.Write(raw)
			}
		}
	}
	return strings.ToLower(b.String())
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
