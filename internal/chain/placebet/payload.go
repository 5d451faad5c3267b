package placebet

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/radieske/battle-memecoin-club/pkg/apperr"
)

// Discriminator da instrução place_bet: sha256("global:place_bet")[:8].
// Layout fixo esperado pelo programa; mudar ordem ou largura quebra apostas pendentes.
var PlaceBetDiscriminator = [8]byte{0xde, 0x3e, 0x43, 0xdc, 0x3f, 0xa6, 0x7e, 0x21}

const (
	LamportsPerSol = 1_000_000_000
	solDecimals    = 9
)

// PlaceBetArgs são os argumentos serializados da instrução
type PlaceBetArgs struct {
	MatchID     string
	FighterName string
	Lamports    uint64
}

// Size é o tamanho exato do payload: 8 + 4 + len(match) + 4 + len(fighter) + 8
func (a PlaceBetArgs) Size() int {
	return len(PlaceBetDiscriminator) + 4 + len(a.MatchID) + 4 + len(a.FighterName) + 8
}

func (a PlaceBetArgs) validate() error {
	if a.MatchID == "" {
		return apperr.InvalidArg("match id is required")
	}
	if a.FighterName == "" {
		return apperr.InvalidArg("fighter name is required")
	}
	if !utf8.ValidString(a.MatchID) || !utf8.ValidString(a.FighterName) {
		return apperr.InvalidArg("match id and fighter name must be valid UTF-8")
	}
	if uint64(len(a.MatchID)) > math.MaxUint32 || uint64(len(a.FighterName)) > math.MaxUint32 {
		return apperr.InvalidArg("string argument too long")
	}
	if a.Lamports == 0 {
		return apperr.InvalidArg("bet amount must be positive")
	}
	return nil
}

// EncodePlaceBet serializa discriminator | u32 LE + match | u32 LE + fighter | u64 LE lamports
func EncodePlaceBet(a PlaceBetArgs) ([]byte, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, a.Size())
	buf = append(buf, PlaceBetDiscriminator[:]...)
	buf = appendString(buf, a.MatchID)
	buf = appendString(buf, a.FighterName)
	buf = binary.LittleEndian.AppendUint64(buf, a.Lamports)
	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// DecodePlaceBet é o inverso de EncodePlaceBet; rejeita bytes sobrando
func DecodePlaceBet(data []byte) (PlaceBetArgs, error) {
	var out PlaceBetArgs
	if len(data) < len(PlaceBetDiscriminator) {
		return out, fmt.Errorf("place_bet payload too short: %d bytes", len(data))
	}
	if [8]byte(data[:8]) != PlaceBetDiscriminator {
		return out, fmt.Errorf("unexpected instruction discriminator %x", data[:8])
	}
	rest := data[8:]

	var err error
	if out.MatchID, rest, err = readString(rest); err != nil {
		return out, fmt.Errorf("decode match id: %w", err)
	}
	if out.FighterName, rest, err = readString(rest); err != nil {
		return out, fmt.Errorf("decode fighter name: %w", err)
	}
	if len(rest) != 8 {
		return out, fmt.Errorf("decode amount: want 8 bytes, have %d", len(rest))
	}
	out.Lamports = binary.LittleEndian.Uint64(rest)
	return out, nil
}

func readString(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, fmt.Errorf("missing length prefix")
	}
	n := binary.LittleEndian.Uint32(b)
	b = b[4:]
	if uint64(n) > uint64(len(b)) {
		return "", nil, fmt.Errorf("length %d exceeds remaining %d bytes", n, len(b))
	}
	return string(b[:n]), b[n:], nil
}

// SolToLamports converte SOL para lamports sem erro de ponto flutuante:
// usa a representação decimal mais curta do float e trunca além de 9 casas.
func SolToLamports(amountSol float64) (uint64, error) {
	if math.IsNaN(amountSol) || math.IsInf(amountSol, 0) || amountSol <= 0 {
		return 0, apperr.InvalidArg("bet amount must be a positive number")
	}

	s := strconv.FormatFloat(amountSol, 'f', -1, 64)
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > solDecimals {
		frac = frac[:solDecimals]
	}
	frac += strings.Repeat("0", solDecimals-len(frac))

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil || w > math.MaxUint64/LamportsPerSol {
		return 0, apperr.InvalidArg("bet amount too large")
	}
	f, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, apperr.InvalidArg("invalid bet amount")
	}

	lamports := w*LamportsPerSol + f
	if lamports < w*LamportsPerSol {
		return 0, apperr.InvalidArg("bet amount too large")
	}
	if lamports == 0 {
		return 0, apperr.InvalidArg("bet amount is below one lamport")
	}
	return lamports, nil
}

// LamportsToSol é só para exibição
func LamportsToSol(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSol
}
