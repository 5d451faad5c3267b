package placebet

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	houseWalletSeed = "house_wallet"
	matchSeed       = "match"
)

// HouseWalletAddress deriva a PDA que recebe as apostas
func HouseWalletAddress(programID solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(houseWalletSeed)}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive house wallet pda: %w", err)
	}
	return addr, nil
}

// MatchAccountAddress deriva a conta da partida quando o backend não a informa.
// Seeds acima de 32 bytes não são aceitas pelo runtime.
func MatchAccountAddress(programID solana.PublicKey, matchID string) (solana.PublicKey, error) {
	if len(matchID) > solana.MaxSeedLength {
		return solana.PublicKey{}, fmt.Errorf("match id %q exceeds %d bytes seed limit", matchID, solana.MaxSeedLength)
	}
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(matchSeed), []byte(matchID)}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive match pda: %w", err)
	}
	return addr, nil
}
