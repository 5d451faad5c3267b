package placebet

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/battle-memecoin-club/pkg/apperr"
)

func TestDiscriminatorMatchesAnchorHash(t *testing.T) {
	sum := sha256.Sum256([]byte("global:place_bet"))
	assert.Equal(t, sum[:8], PlaceBetDiscriminator[:])
}

func TestEncodePlaceBetGolden(t *testing.T) {
	data, err := EncodePlaceBet(PlaceBetArgs{MatchID: "match-42", FighterName: "pepe", Lamports: 100_000_000})
	require.NoError(t, err)

	const golden = "de3e43dc3fa67e21" + // discriminator
		"08000000" + "6d617463682d3432" + // "match-42"
		"04000000" + "70657065" + // "pepe"
		"00e1f50500000000" // 0.1 SOL
	assert.Equal(t, golden, hex.EncodeToString(data))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []PlaceBetArgs{
		{MatchID: "m", FighterName: "f", Lamports: 1},
		{MatchID: "match-2024-final", FighterName: "dogwifhat", Lamports: 25 * LamportsPerSol},
		{MatchID: "ação", FighterName: "🐸 pepe", Lamports: math.MaxUint64},
	}
	for _, want := range cases {
		data, err := EncodePlaceBet(want)
		require.NoError(t, err)
		assert.Len(t, data, 8+4+len(want.MatchID)+4+len(want.FighterName)+8)
		assert.Equal(t, want.Size(), len(data))

		got, err := DecodePlaceBet(data)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEncodePlaceBetRejectsInvalidArgs(t *testing.T) {
	cases := map[string]PlaceBetArgs{
		"empty match":   {FighterName: "pepe", Lamports: 1},
		"empty fighter": {MatchID: "m", Lamports: 1},
		"zero amount":   {MatchID: "m", FighterName: "pepe"},
		"invalid utf8":  {MatchID: "m", FighterName: string([]byte{0xff, 0xfe}), Lamports: 1},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := EncodePlaceBet(args)
			assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
		})
	}
}

func TestDecodePlaceBetRejectsMalformed(t *testing.T) {
	valid, err := EncodePlaceBet(PlaceBetArgs{MatchID: "match-42", FighterName: "pepe", Lamports: 5})
	require.NoError(t, err)

	wrongDisc := append([]byte(nil), valid...)
	wrongDisc[0] ^= 0xff

	cases := map[string][]byte{
		"too short":           valid[:4],
		"wrong discriminator": wrongDisc,
		"truncated string":    valid[:14],
		"missing amount":      valid[:len(valid)-1],
		"trailing bytes":      append(append([]byte(nil), valid...), 0),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePlaceBet(data)
			assert.Error(t, err)
		})
	}
}

func TestSolToLamports(t *testing.T) {
	cases := []struct {
		sol  float64
		want uint64
	}{
		{0.1, 100_000_000},
		{0.3, 300_000_000},
		{1, 1_000_000_000},
		{2.5, 2_500_000_000},
		{0.000000001, 1},
		{1.23456789012, 1_234_567_890}, // além de 9 casas trunca
		{18.446744073, 18_446_744_073},
		{18446744073.5, 18_446_744_073_500_000_000}, // perto do teto de u64
	}
	for _, c := range cases {
		got, err := SolToLamports(c.sol)
		require.NoError(t, err, "%v", c.sol)
		assert.Equal(t, c.want, got, "%v", c.sol)
	}
}

func TestSolToLamportsRejects(t *testing.T) {
	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1), 1e-10, 2e10, 18446744073.75, 18446744074} {
		_, err := SolToLamports(v)
		assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument), "%v", v)
	}
}

func TestLamportsToSol(t *testing.T) {
	assert.Equal(t, 0.1, LamportsToSol(100_000_000))
	assert.Equal(t, 0.0, LamportsToSol(0))
}
