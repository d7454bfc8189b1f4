package domain

import (
	"context"
	"errors"
	"time"
)

// Erros sentinela devolvidos pelas implementações de TokenVerifier.
// O pipeline mapeia cada um para a Rejection correspondente via errors.Is.
var (
	ErrTokenMalformed  = errors.New("token malformed")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrAuthUnavailable = errors.New("auth service unavailable")
)

// TokenVerifier valida uma credencial e resolve a identidade do chamador.
//
// Existem duas estratégias intercambiáveis (local/JWT e authority remota);
// um deployment escolhe exatamente uma. Implementações devem devolver um dos
// erros sentinela acima — qualquer outro erro é tratado como credencial inválida.
type TokenVerifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// BucketStore é o contrato do token bucket distribuído.
//
// TryAcquire precisa ser atômico por chave (um round trip, sem lost update
// entre instâncias concorrentes do gateway). Erro de infraestrutura é devolvido
// para que o chamador aplique sua política de fail-open/fail-closed.
type BucketStore interface {
	TryAcquire(ctx context.Context, key string, capacity, refillRate int) (bool, error)
}

// RevocationStore responde se um token (por jti) foi revogado.
//
// A escrita acontece fora deste core (logout / encerramento forçado de sessão);
// aqui só existe a consulta.
type RevocationStore interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// DecisionEvent registra o desfecho de uma requisição no pipeline de admissão.
//
// Agnóstico de HTTP de propósito; cuidado com cardinalidade de Path ao
// persistir em bases como Redis.
type DecisionEvent struct {
	Method   string
	Path     string
	Code     string
	Admitted bool

	At time.Time
}

// StatsStore é a estratégia de persistência de estatísticas de admissão.
//
// O adapter trata erro como best-effort (não derruba a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev DecisionEvent) error
}
