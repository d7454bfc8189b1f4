package infra

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"admission-gateway/middleware/admission/domain"
)

// LocalVerifier valida credenciais auto-contidas (JWT HS256) com segredo
// compartilhado, sem chamar serviço externo.
//
// Claims esperadas: sub (userId), email, username, roles, jti. A expiração é
// validada pelo parser; o jti alimenta a checagem de revogação do pipeline.
type LocalVerifier struct {
	secret []byte
}

func NewLocalVerifier(secret string) *LocalVerifier {
	return &LocalVerifier{secret: []byte(secret)}
}

// Verify implementa domain.TokenVerifier.
func (v *LocalVerifier) Verify(_ context.Context, credential string) (domain.Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(credential, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.Identity{}, domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return domain.Identity{}, domain.ErrTokenMalformed
		default:
			// assinatura inválida, método errado, claims fora de validade etc.
			return domain.Identity{}, domain.ErrTokenInvalid
		}
	}

	return domain.Identity{
		UserID:   strClaim(claims, "sub"),
		Email:    strClaim(claims, "email"),
		Username: strClaim(claims, "username"),
		Roles:    strSliceClaim(claims, "roles"),
		TokenID:  strClaim(claims, "jti"),
	}, nil
}

func strClaim(c jwt.MapClaims, key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func strSliceClaim(c jwt.MapClaims, key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
