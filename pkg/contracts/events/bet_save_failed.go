package events

import "time"

// Evento publicado quando a transação entrou na chain mas o backend
// não gravou a aposta. Consumido pela reconciliação.
type BetSaveFailed struct {
	OutboxID             string    `json:"outbox_id"`
	UserID               string    `json:"user_id"`
	WalletAddress        string    `json:"wallet_address"`
	MatchID              string    `json:"match_id"`
	FighterName          string    `json:"fighter_name"`
	AmountSol            float64   `json:"amount_sol"`
	TransactionSignature string    `json:"transaction_signature"`
	Reason               string    `json:"reason,omitempty"`
	Ts                   time.Time `json:"ts"`
}
