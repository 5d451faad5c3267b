package repo

import "time"

type Status string

const (
	StatusPending       Status = "pending"
	StatusSaved         Status = "saved"
	StatusFailedOnChain Status = "failed_on_chain"
	StatusDead          Status = "dead"
)

// UnsavedBet é a linha do outbox: aposta confirmada na chain que o backend não gravou.
type UnsavedBet struct {
	ID            string
	Signature     string
	UserID        string
	WalletAddress string
	MatchID       string
	FighterName   string
	AmountSol     float64
	Attempts      int
	Status        Status
	LastError     string
	BetID         string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
