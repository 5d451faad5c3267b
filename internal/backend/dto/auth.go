package dto

import (
	"bytes"
	"encoding/json"
	"time"
)

// ID aceita id numérico ou string no JSON do backend
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type User struct {
	ID            ID     `json:"id"`
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

type ChallengeRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type ChallengeResponse struct {
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VerifyRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"` // base58
	Challenge     string `json:"challenge"`
}

type VerifyResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type UserResponse struct {
	User User `json:"user"`
}

type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
