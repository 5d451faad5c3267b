package events

// Evento emitido quando a transação de aposta foi aceita pelo RPC
// (assinatura conhecida) e o backend confirmou o registro.
type BetSubmitted struct {
	BetID                string  `json:"bet_id,omitempty"`
	UserID               string  `json:"user_id"`
	WalletAddress        string  `json:"wallet_address"`
	MatchID              string  `json:"match_id"`
	FighterName          string  `json:"fighter_name"`
	AmountSol            float64 `json:"amount_sol"`
	TransactionSignature string  `json:"transaction_signature"`
	TsUnixMs             int64   `json:"ts_unix_ms"`
}
