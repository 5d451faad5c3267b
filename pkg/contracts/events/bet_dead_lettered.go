package events

import "time"

// Enviado para a DLQ quando a reconciliação esgota as tentativas.
type BetDeadLettered struct {
	OutboxID             string    `json:"outbox_id"`
	UserID               string    `json:"user_id"`
	WalletAddress        string    `json:"wallet_address"`
	MatchID              string    `json:"match_id"`
	FighterName          string    `json:"fighter_name"`
	AmountSol            float64   `json:"amount_sol"`
	TransactionSignature string    `json:"transaction_signature"`
	Attempts             int       `json:"attempts"`
	LastError            string    `json:"last_error,omitempty"`
	Ts                   time.Time `json:"ts"`
}
