package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/backend/dto"
	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/pkg/apperr"
)

const maxErrorBody = 64 << 10

// HTTPError guarda status e mensagem de uma resposta não-2xx
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: http %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// StatusOf devolve o status HTTP de err, ou 0 se não veio do backend
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// Client fala com a API REST do backend
type Client struct {
	BaseURL string
	HTTP    *http.Client
	log     *zap.Logger
}

func New(base string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		log:     logger.OrNop(log).Named("backend"),
	}
}

func (c *Client) RequestChallenge(ctx context.Context, walletAddress string) (dto.ChallengeResponse, error) {
	var out dto.ChallengeResponse
	err := c.do(ctx, http.MethodPost, "/auth/challenge", "", dto.ChallengeRequest{WalletAddress: walletAddress}, &out)
	if err == nil && out.Challenge == "" {
		err = apperr.ErrBackend("empty challenge in response", nil)
	}
	return out, err
}

func (c *Client) Verify(ctx context.Context, req dto.VerifyRequest) (dto.VerifyResponse, error) {
	var out dto.VerifyResponse
	err := c.do(ctx, http.MethodPost, "/auth/verify", "", req, &out)
	if err == nil && out.Token == "" {
		err = apperr.ErrBackend("empty token in verify response", nil)
	}
	return out, err
}

// CurrentUser valida o token; 401 vira ErrSessionExpired
func (c *Client) CurrentUser(ctx context.Context, token string) (dto.User, error) {
	var out dto.UserResponse
	err := c.do(ctx, http.MethodGet, "/auth/user", token, nil, &out)
	return out.User, err
}

// PlaceBet grava a aposta já enviada on-chain
func (c *Client) PlaceBet(ctx context.Context, token string, req dto.PlaceBetRequest) (dto.PlaceBetResponse, error) {
	var out dto.PlaceBetResponse
	err := c.do(ctx, http.MethodPost, "/betting/place-bet", token, req, &out)
	return out, err
}

func (c *Client) ActiveBets(ctx context.Context, matchID string) (dto.MatchBettingSummary, error) {
	var out dto.MatchBettingSummary
	err := c.do(ctx, http.MethodGet, "/betting/matches/"+url.PathEscape(matchID)+"/active-bets", "", nil, &out)
	return out, err
}

// CurrentBet devolve nil quando o usuário ainda não apostou na partida
func (c *Client) CurrentBet(ctx context.Context, token string, userID dto.ID, matchID string) (*dto.Bet, error) {
	var out dto.CurrentBetResponse
	path := "/betting/users/" + url.PathEscape(userID.String()) + "/matches/" + url.PathEscape(matchID) + "/current-bet"
	err := c.do(ctx, http.MethodGet, path, token, nil, &out)
	if StatusOf(err) == http.StatusNotFound {
		return nil, nil
	}
	return out.Bet, err
}

// ActiveMatch devolve nil quando não há partida aberta
func (c *Client) ActiveMatch(ctx context.Context) (*dto.Match, error) {
	var out dto.ActiveMatchResponse
	err := c.do(ctx, http.MethodGet, "/betting/matches/active", "", nil, &out)
	if StatusOf(err) == http.StatusNotFound {
		return nil, nil
	}
	return out.Match, err
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperr.Internal("encode request", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return apperr.Internal("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return apperr.ErrBackend("backend unreachable", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return c.classify(method, path, token != "", res)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return apperr.ErrBackend("decode response", fmt.Errorf("%s %s: %w", method, path, err))
	}
	return nil
}

func (c *Client) classify(method, path string, authenticated bool, res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	var er dto.ErrorResponse
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &er) == nil {
		switch {
		case er.Message != "":
			msg = er.Message
		case er.Error != "":
			msg = er.Error
		}
	}
	he := &HTTPError{Method: method, Path: path, Status: res.StatusCode, Message: msg}

	c.log.Debug("backend request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
		zap.String("message", msg),
	)

	switch {
	case res.StatusCode == http.StatusUnauthorized && authenticated:
		return apperr.Wrap(apperr.CodeSessionExpired, "session expired, please sign in again", he)
	case IsAlreadyBetMessage(msg):
		return apperr.Wrap(apperr.CodeAlreadyBet, "you have already placed a bet on this match", he)
	}
	return apperr.ErrBackend("backend request failed", he)
}

// IsAlreadyBetMessage reconhece a recusa do backend para aposta duplicada
func IsAlreadyBetMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "already placed a bet")
}
