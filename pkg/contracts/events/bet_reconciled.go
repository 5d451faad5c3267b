package events

import "time"

// Evento emitido pelo reconcile-worker após resolver uma aposta pendente.
type BetReconciled struct {
	OutboxID             string    `json:"outbox_id"`
	TransactionSignature string    `json:"transaction_signature"`
	Status               string    `json:"status"` // "SAVED" | "FAILED_ON_CHAIN" | "DEAD"
	BetID                string    `json:"bet_id,omitempty"`
	Attempts             int       `json:"attempts"`
	Reason               string    `json:"reason,omitempty"`
	Ts                   time.Time `json:"ts"`
}
