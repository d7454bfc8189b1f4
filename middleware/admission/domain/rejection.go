package domain

import "net/http"

// Códigos de rejeição expostos no corpo JSON {code, message, timestamp}.
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeTokenMalformed     = "TOKEN_MALFORMED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeAuthUnavailable    = "AUTH_SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeOrderUnavailable   = "ORDER_SERVICE_UNAVAILABLE"
	CodeTradingUnavailable = "TRADING_SERVICE_UNAVAILABLE"
)

// Rejection é a moeda única de falha entre estágios do pipeline.
//
// Cada estágio converte seus erros internos em uma Rejection antes de devolver
// o controle; nenhum erro cru atravessa a fronteira de um estágio.
type Rejection struct {
	Code    string
	Status  int
	Message string
}

func RejectMissingCredential() *Rejection {
	return &Rejection{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: "missing credentials"}
}

func RejectMalformedCredential() *Rejection {
	return &Rejection{Code: CodeTokenMalformed, Status: http.StatusUnauthorized, Message: "malformed token"}
}

func RejectExpiredCredential() *Rejection {
	return &Rejection{Code: CodeTokenExpired, Status: http.StatusUnauthorized, Message: "token expired"}
}

func RejectInvalidCredential() *Rejection {
	return &Rejection{Code: CodeTokenInvalid, Status: http.StatusUnauthorized, Message: "token invalid or expired"}
}

func RejectRevokedCredential() *Rejection {
	return &Rejection{Code: CodeTokenRevoked, Status: http.StatusUnauthorized, Message: "token has been revoked"}
}

func RejectAuthUnavailable() *Rejection {
	return &Rejection{Code: CodeAuthUnavailable, Status: http.StatusServiceUnavailable, Message: "authentication service temporarily unavailable"}
}

// RejectRateLimited carrega o escopo (ip/user/api) na mensagem; o código é único
// para não vazar detalhe de implementação no contrato externo.
func RejectRateLimited(scope string) *Rejection {
	return &Rejection{Code: CodeRateLimitExceeded, Status: http.StatusTooManyRequests, Message: "rate limit exceeded for " + scope}
}
