package placebet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/shared/logger"
	"github.com/radieske/battle-memecoin-club/internal/wallet"
	"github.com/radieske/battle-memecoin-club/pkg/apperr"
)

// Chain é o subconjunto do pool RPC que o placer usa; *rpcpool.Pool satisfaz
type Chain interface {
	StatusReader
	GetLatestBlockhash(ctx context.Context) (*rpc.LatestBlockhashResult, error)
	SendRawTransaction(ctx context.Context, raw []byte, opts rpc.TransactionOpts) (solana.Signature, error)
}

// BetIntent é a aposta que o usuário quer colocar
type BetIntent struct {
	MatchID      string
	FighterName  string
	AmountSol    float64
	MatchAccount solana.PublicKey
}

// OnChainTransaction identifica a transação enviada; Signature é o id durável
type OnChainTransaction struct {
	Signature            solana.Signature
	RecentBlockhash      solana.Hash
	LastValidBlockHeight uint64
	Lamports             uint64
}

type Placer struct {
	chain       Chain
	programID   solana.PublicKey
	houseWallet solana.PublicKey
	confirmer   *Confirmer
	log         *zap.Logger
}

func NewPlacer(chain Chain, programID solana.PublicKey, confirmer *Confirmer, log *zap.Logger) (*Placer, error) {
	if programID.IsZero() {
		return nil, apperr.InvalidArg("program id is required")
	}
	house, err := HouseWalletAddress(programID)
	if err != nil {
		return nil, err
	}
	if confirmer == nil {
		confirmer = NewConfirmer(chain, ConfirmOptions{Log: log})
	}
	return &Placer{
		chain:       chain,
		programID:   programID,
		houseWallet: house,
		confirmer:   confirmer,
		log:         logger.OrNop(log).Named("placer"),
	}, nil
}

func (p *Placer) ProgramID() solana.PublicKey   { return p.programID }
func (p *Placer) HouseWallet() solana.PublicKey { return p.houseWallet }
func (p *Placer) Confirmer() *Confirmer         { return p.confirmer }

// BuildTransaction monta a transação não assinada com o pagador como fee payer
func (p *Placer) BuildTransaction(payer solana.PublicKey, intent BetIntent, lamports uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	ix, err := NewPlaceBetInstruction(p.programID, intent.MatchAccount, p.houseWallet, payer, PlaceBetArgs{
		MatchID:     intent.MatchID,
		FighterName: intent.FighterName,
		Lamports:    lamports,
	})
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, apperr.Internal("build transaction", err)
	}
	return tx, nil
}

// PlaceBetOnChain monta, pede assinatura e envia a transação place_bet.
// Volta assim que o nó aceita a transação; a confirmação segue em segundo plano.
func (p *Placer) PlaceBetOnChain(ctx context.Context, w wallet.Wallet, intent BetIntent) (OnChainTransaction, error) {
	var out OnChainTransaction
	if !wallet.Connected(w) {
		return out, apperr.ErrWalletNotConnected
	}
	if intent.MatchAccount.IsZero() {
		return out, apperr.InvalidArg("match account is required")
	}
	lamports, err := SolToLamports(intent.AmountSol)
	if err != nil {
		return out, err
	}
	payer := w.PublicKey()

	bh, err := p.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return out, TranslateError(err)
	}

	tx, err := p.BuildTransaction(payer, intent, lamports, bh.Blockhash)
	if err != nil {
		return out, err
	}

	signed, err := w.SignTransaction(ctx, tx)
	if err != nil {
		return out, TranslateError(err)
	}
	if signed == nil || len(signed.Signatures) == 0 || signed.Signatures[0].IsZero() {
		return out, apperr.Internal("wallet returned an unsigned transaction", nil)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return out, apperr.Internal("serialize transaction", err)
	}

	sig := signed.Signatures[0]
	sent, err := p.chain.SendRawTransaction(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return out, TranslateError(err)
	}
	if !sent.Equals(sig) {
		p.log.Warn("node returned unexpected signature",
			zap.String("expected", sig.String()),
			zap.String("got", sent.String()),
		)
	}

	out = OnChainTransaction{
		Signature:            sig,
		RecentBlockhash:      bh.Blockhash,
		LastValidBlockHeight: bh.LastValidBlockHeight,
		Lamports:             lamports,
	}
	p.log.Info("place_bet transaction sent",
		zap.String("signature", sig.String()),
		zap.String("match_id", intent.MatchID),
		zap.String("fighter", intent.FighterName),
		zap.Uint64("lamports", lamports),
		zap.String("payer", payer.String()),
	)

	p.confirmer.Watch(ctx, out)
	return out, nil
}

func (t OnChainTransaction) String() string {
	return fmt.Sprintf("%s (blockhash %s, valid until %d)", t.Signature, t.RecentBlockhash, t.LastValidBlockHeight)
}
