package wallet

import (
	"context"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ErrUserRejected é devolvido quando o usuário fecha/recusa o prompt de assinatura.
var ErrUserRejected = errors.New("user rejected the request")

// Wallet é a capacidade mínima que o núcleo exige de uma extensão de carteira.
// Cada variante (keypair local, ponte com extensão, hardware) implementa a interface.
type Wallet interface {
	PublicKey() solana.PublicKey
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}

// Connected informa se w existe e expõe uma chave pública válida
func Connected(w Wallet) bool {
	return w != nil && !w.PublicKey().IsZero()
}

// rejectionMarkers cobre as mensagens que adaptadores de carteira costumam usar
var rejectionMarkers = []string{
	"user rejected",
	"rejected the request",
	"user denied",
	"user cancel",
	"user canceled",
	"user cancelled",
	"request cancelled",
}

// IsUserRejection detecta cancelamento do usuário, tipado ou por mensagem
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range rejectionMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
