package placebet

import (
	"github.com/gagliardetto/solana-go"
)

// NewPlaceBetInstruction monta a instrução com as contas na ordem do programa:
// match (W), house wallet (W), payer (W+S), system program.
func NewPlaceBetInstruction(programID, matchAccount, houseWallet, payer solana.PublicKey, args PlaceBetArgs) (solana.Instruction, error) {
	data, err := EncodePlaceBet(args)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(matchAccount).WRITE(),
		solana.Meta(houseWallet).WRITE(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}
