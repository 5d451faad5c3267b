package apperr

type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeInternal           Code = "INTERNAL"
	CodeBackend            Code = "BACKEND_ERROR"

	// Carteira e autenticação
	CodeWalletNotConnected     Code = "WALLET_NOT_CONNECTED"
	CodeChallengeRequestFailed Code = "CHALLENGE_REQUEST_FAILED"
	CodeSignatureRejected      Code = "SIGNATURE_REJECTED"
	CodeVerificationFailed     Code = "VERIFICATION_FAILED"
	CodeSessionExpired         Code = "SESSION_EXPIRED"

	// Aposta on-chain
	CodeAlreadyBet         Code = "ALREADY_BET"
	CodeInsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	CodeTransactionTimeout Code = "TRANSACTION_TIMEOUT"
	CodeBetInFlight        Code = "BET_IN_FLIGHT"

	// Camada RPC
	CodeAllEndpointsFailed Code = "ALL_ENDPOINTS_FAILED"
)

// Retryable indica se o usuário pode repetir a operação sem trocar de estado.
func (c Code) Retryable() bool {
	switch c {
	case CodeChallengeRequestFailed, CodeSignatureRejected, CodeTransactionTimeout, CodeAllEndpointsFailed:
		return true
	}
	return false
}
