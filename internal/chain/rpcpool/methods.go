package rpcpool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// GetBalance devolve o saldo em lamports
func (p *Pool) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return Call(ctx, p, func(ctx context.Context, cl *rpc.Client) (uint64, error) {
		out, err := cl.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
		if err != nil {
			return 0, err
		}
		return out.Value, nil
	})
}

// GetLatestBlockhash busca um blockhash recente (commitment finalized)
func (p *Pool) GetLatestBlockhash(ctx context.Context) (*rpc.LatestBlockhashResult, error) {
	return Call(ctx, p, func(ctx context.Context, cl *rpc.Client) (*rpc.LatestBlockhashResult, error) {
		out, err := cl.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return nil, err
		}
		if out == nil || out.Value == nil {
			return nil, fmt.Errorf("getLatestBlockhash: empty result")
		}
		return out.Value, nil
	})
}

// SendRawTransaction envia uma transação já assinada. Reenviar os mesmos
// bytes é idempotente: a assinatura identifica a transação.
func (p *Pool) SendRawTransaction(ctx context.Context, raw []byte, opts rpc.TransactionOpts) (solana.Signature, error) {
	return Call(ctx, p, func(ctx context.Context, cl *rpc.Client) (solana.Signature, error) {
		return cl.SendRawTransactionWithOpts(ctx, raw, opts)
	})
}

// GetSignatureStatus devolve o status da assinatura ou nil se o nó ainda não a conhece
func (p *Pool) GetSignatureStatus(ctx context.Context, sig solana.Signature, searchHistory bool) (*rpc.SignatureStatusesResult, error) {
	return Call(ctx, p, func(ctx context.Context, cl *rpc.Client) (*rpc.SignatureStatusesResult, error) {
		out, err := cl.GetSignatureStatuses(ctx, searchHistory, sig)
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if len(out.Value) == 0 {
			return nil, nil
		}
		return out.Value[0], nil
	})
}

// TokenBalance é o saldo de uma conta SPL do dono
type TokenBalance struct {
	Account  solana.PublicKey
	Mint     string
	Amount   string // unidades mínimas, como o validador devolve
	Decimals uint8
	UIAmount string
}

// formato jsonParsed de uma conta spl-token
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount         string `json:"amount"`
				Decimals       uint8  `json:"decimals"`
				UIAmountString string `json:"uiAmountString"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// GetTokenBalances lista os saldos SPL do dono; com mint nil usa o programa Token
func (p *Pool) GetTokenBalances(ctx context.Context, owner solana.PublicKey, mint *solana.PublicKey) ([]TokenBalance, error) {
	conf := &rpc.GetTokenAccountsConfig{Mint: mint}
	if mint == nil {
		programID := solana.TokenProgramID
		conf.ProgramId = &programID
	}
	opts := &rpc.GetTokenAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingJSONParsed,
	}

	accounts, err := Call(ctx, p, func(ctx context.Context, cl *rpc.Client) ([]*rpc.TokenAccount, error) {
		out, err := cl.GetTokenAccountsByOwner(ctx, owner, conf, opts)
		if err != nil {
			return nil, err
		}
		return out.Value, nil
	})
	if err != nil {
		return nil, err
	}

	balances := make([]TokenBalance, 0, len(accounts))
	for _, acc := range accounts {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		var parsed parsedTokenAccount
		if err := json.Unmarshal(acc.Account.Data.GetRawJSON(), &parsed); err != nil {
			return nil, fmt.Errorf("decode token account %s: %w", acc.Pubkey, err)
		}
		info := parsed.Parsed.Info
		balances = append(balances, TokenBalance{
			Account:  acc.Pubkey,
			Mint:     info.Mint,
			Amount:   info.TokenAmount.Amount,
			Decimals: info.TokenAmount.Decimals,
			UIAmount: info.TokenAmount.UIAmountString,
		})
	}
	return balances, nil
}
