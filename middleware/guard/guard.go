package guard

import (
	"context"
	"net/http"
	"time"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/domain"
)

type Options struct {
	// RPS/Burst do limiter local por chave. RPS <= 0 desliga o rate limit.
	RPS   float64
	Burst int

	// MaxConcurrent é o teto de requisições simultâneas. <= 0 desliga.
	MaxConcurrent int
	// AcquireTimeout limita a espera por uma vaga; 0 espera até o ctx encerrar.
	AcquireTimeout time.Duration

	// KeyFn extrai a chave do limiter. Padrão: IP do cliente.
	KeyFn func(r *http.Request) string
}

// Middleware aplica o guard da instância (rate local + concorrência) antes do
// próximo handler. As rejeições usam o mesmo corpo JSON da admissão.
func Middleware(ctx context.Context, opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = admission.ClientIP
	}

	var store *limiterStore
	if opts.RPS > 0 && opts.Burst > 0 {
		store = newLimiterStore(opts.RPS, opts.Burst)
		store.startJanitor(ctx)
	}

	var sem chan struct{}
	if opts.MaxConcurrent > 0 {
		sem = make(chan struct{}, opts.MaxConcurrent)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store != nil && !store.allow(opts.KeyFn(r)) {
				w.Header().Set("Retry-After", "1")
				admission.WriteError(w, http.StatusTooManyRequests,
					domain.CodeRateLimitExceeded, "instance rate limit exceeded")
				return
			}

			if sem != nil {
				release, ok := acquire(r.Context(), sem, opts.AcquireTimeout)
				if !ok {
					admission.WriteError(w, http.StatusServiceUnavailable,
						domain.CodeServiceUnavailable, "gateway at capacity")
					return
				}
				defer release()
			}

			next.ServeHTTP(w, r)
		})
	}
}

func acquire(ctx context.Context, sem chan struct{}, timeout time.Duration) (func(), bool) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, true
	case <-ctx.Done():
		return nil, false
	}
}
