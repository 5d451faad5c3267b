package placebet

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgram = solana.MustPublicKeyFromBase58("96nNmzBd41ptehrcFCjTjpgWZCGePY3ntHac7cogN5Lg")

func TestHouseWalletAddressIsDeterministic(t *testing.T) {
	a, err := HouseWalletAddress(testProgram)
	require.NoError(t, err)
	b, err := HouseWalletAddress(testProgram)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.False(t, a.IsOnCurve())

	want, _, err := solana.FindProgramAddress([][]byte{[]byte("house_wallet")}, testProgram)
	require.NoError(t, err)
	assert.Equal(t, want, a)
}

func TestMatchAccountAddressDependsOnMatch(t *testing.T) {
	a, err := MatchAccountAddress(testProgram, "match-1")
	require.NoError(t, err)
	b, err := MatchAccountAddress(testProgram, "match-2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMatchAccountAddressSeedLimit(t *testing.T) {
	_, err := MatchAccountAddress(testProgram, strings.Repeat("x", 33))
	assert.Error(t, err)
}

func TestPlaceBetInstructionAccounts(t *testing.T) {
	payer := solana.MustPublicKeyFromBase58("AWxggjuZRmWULwxwPeM6ZZxRtdDdekVq22mFRx2QbW7U")
	match := solana.MustPublicKeyFromBase58("7ML3DCVsqRDEJugs5dCs7NWQfjj82JRQcXKsSgemv4D3")
	house, err := HouseWalletAddress(testProgram)
	require.NoError(t, err)

	ix, err := NewPlaceBetInstruction(testProgram, match, house, payer, PlaceBetArgs{MatchID: "match-42", FighterName: "pepe", Lamports: 1})
	require.NoError(t, err)
	assert.Equal(t, testProgram, ix.ProgramID())

	accs := ix.Accounts()
	require.Len(t, accs, 4)
	assert.Equal(t, match, accs[0].PublicKey)
	assert.True(t, accs[0].IsWritable)
	assert.False(t, accs[0].IsSigner)
	assert.Equal(t, house, accs[1].PublicKey)
	assert.True(t, accs[1].IsWritable)
	assert.Equal(t, payer, accs[2].PublicKey)
	assert.True(t, accs[2].IsWritable)
	assert.True(t, accs[2].IsSigner)
	assert.Equal(t, solana.SystemProgramID, accs[3].PublicKey)
	assert.False(t, accs[3].IsWritable)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, PlaceBetDiscriminator[:], data[:8])
}
