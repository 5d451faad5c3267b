package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/radieske/battle-memecoin-club/internal/backend/dto"
)

// tokenClaims lê o token sem validar assinatura; a validação é do backend.
// Tokens opacos (não-JWT) voltam ok=false.
func tokenClaims(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// tokenExpired só é true para JWT com exp no passado
func tokenExpired(token string, now time.Time) bool {
	claims, ok := tokenClaims(token)
	if !ok {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// userFromToken extrai o usuário das claims quando o backend as inclui
func userFromToken(token string) dto.User {
	claims, ok := tokenClaims(token)
	if !ok {
		return dto.User{}
	}
	var u dto.User
	for _, k := range []string{"userId", "id", "sub"} {
		switch v := claims[k].(type) {
		case string:
			u.ID = dto.ID(v)
		case float64:
			u.ID = dto.ID(strconv.FormatFloat(v, 'f', -1, 64))
		}
		if u.ID != "" {
			break
		}
	}
	if name, ok := claims["username"].(string); ok {
		u.Username = name
	}
	if addr, ok := claims["walletAddress"].(string); ok {
		u.WalletAddress = addr
	}
	return u
}
