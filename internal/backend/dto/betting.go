package dto

import "time"

type PlaceBetRequest struct {
	UserID               ID      `json:"userId"`
	WalletAddress        string  `json:"walletAddress"`
	MatchID              string  `json:"matchId"`
	FighterName          string  `json:"fighterName"`
	Amount               float64 `json:"amount"` // SOL
	TransactionSignature string  `json:"transactionSignature"`
}

type PlaceBetResponse struct {
	BetID  ID     `json:"betId"`
	Status string `json:"status"`
}

// Bet é a aposta persistida pelo backend
type Bet struct {
	BetID                ID      `json:"betId"`
	MatchID              string  `json:"matchId"`
	FighterName          string  `json:"fighterName"`
	Amount               float64 `json:"amount"`
	Status               string  `json:"status"`
	TransactionSignature string  `json:"transactionSignature"`
	Claimed              bool    `json:"claimed"`
}

type CurrentBetResponse struct {
	Bet *Bet `json:"bet"`
}

type FighterPool struct {
	FighterName string  `json:"fighterName"`
	TotalAmount float64 `json:"totalAmount"`
	BetCount    int     `json:"betCount"`
}

// MatchBettingSummary é o resumo das apostas ativas de uma partida
type MatchBettingSummary struct {
	MatchID   string        `json:"matchId"`
	TotalPool float64       `json:"totalPool"`
	TotalBets int           `json:"totalBets"`
	Fighters  []FighterPool `json:"fighters"`
}

type Match struct {
	MatchID      string     `json:"matchId"`
	Fighters     []string   `json:"fighters"`
	MatchAccount string     `json:"matchAccount,omitempty"` // base58; vazio = derivar PDA
	Status       string     `json:"status"`
	StartsAt     *time.Time `json:"startsAt,omitempty"`
}

type ActiveMatchResponse struct {
	Match *Match `json:"match"`
}
