package apperr

var (
	ErrWalletNotConnected = New(CodeWalletNotConnected, "wallet not connected")
	ErrSignatureRejected  = New(CodeSignatureRejected, "signature request rejected by user")
	ErrAlreadyBet         = New(CodeAlreadyBet, "you have already placed a bet on this match")
	ErrInsufficientFunds  = New(CodeInsufficientFunds, "insufficient SOL balance for this bet")
	ErrSessionExpired     = New(CodeSessionExpired, "session expired, please sign in again")
	ErrBetInFlight        = New(CodeBetInFlight, "a bet submission is already in progress")
)

func ErrChallengeRequestFailed(cause error) error {
	return Wrap(CodeChallengeRequestFailed, "failed to request sign-in challenge", cause)
}

func ErrVerificationFailed(cause error) error {
	return Wrap(CodeVerificationFailed, "signature verification failed", cause)
}

func ErrTransactionTimeout(cause error) error {
	return Wrap(CodeTransactionTimeout, "transaction not confirmed in time, it may still land", cause)
}

func ErrBackend(message string, cause error) error {
	return Wrap(CodeBackend, message, cause)
}
