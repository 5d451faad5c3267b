package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ApproveFunc simula o prompt da extensão; false equivale a usuário recusar.
// kind é "message" ou "transaction".
type ApproveFunc func(ctx context.Context, kind string) bool

// Keypair é uma carteira local baseada em chave privada (CLI, bots, testes)
type Keypair struct {
	key     solana.PrivateKey
	approve ApproveFunc
}

func NewKeypair(key solana.PrivateKey, approve ApproveFunc) *Keypair {
	return &Keypair{key: key, approve: approve}
}

// LoadKeypairFile lê um arquivo no formato do solana-keygen (array JSON de bytes)
func LoadKeypairFile(path string, approve ApproveFunc) (*Keypair, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return NewKeypair(key, approve), nil
}

func (k *Keypair) PublicKey() solana.PublicKey {
	if k == nil || len(k.key) == 0 {
		return solana.PublicKey{}
	}
	return k.key.PublicKey()
}

func (k *Keypair) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if err := k.ask(ctx, "message"); err != nil {
		return nil, err
	}
	sig, err := k.key.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return sig[:], nil
}

func (k *Keypair) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if err := k.ask(ctx, "transaction"); err != nil {
		return nil, err
	}
	pub := k.key.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &k.key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

func (k *Keypair) ask(ctx context.Context, kind string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if k.approve != nil && !k.approve(ctx, kind) {
		return ErrUserRejected
	}
	return nil
}
