package admission

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
)

// Headers de identidade injetados na requisição admitida e repassados ao
// engine de roteamento. Campos ausentes viram string vazia, nunca são omitidos.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUsername  = "X-Username"
	HeaderUserRoles = "X-User-Roles"
)

var identityHeaders = []string{HeaderUserID, HeaderUserEmail, HeaderUsername, HeaderUserRoles}

const bearerPrefix = "Bearer "

type Options struct {
	Pipeline *application.Pipeline

	// Stats persiste contadores de decisão (best-effort; erro é ignorado).
	Stats domain.StatsStore

	// Logger emite o registro de acesso estruturado. Use zerolog.Nop() para
	// silenciar em testes.
	Logger zerolog.Logger
}

// Middleware aplica o pipeline de admissão a cada requisição.
//
// Toda requisição completada — admitida ou rejeitada — gera exatamente um
// registro de acesso com método, path, status final, duração, IP resolvido e
// user id (ou "anonymous").
func Middleware(opts Options) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()
			ip := ClientIP(r)

			dec := opts.Pipeline.Process(r.Context(), domain.Request{
				Method:     r.Method,
				Path:       r.URL.Path,
				ClientIP:   ip,
				Credential: bearerToken(r),
			})

			// headers de identidade nunca vêm do cliente
			for _, h := range identityHeaders {
				r.Header.Del(h)
			}

			userID := "anonymous"
			code := "OK"
			var status int

			if dec.Admitted {
				if id := dec.Identity; id != nil {
					r.Header.Set(HeaderUserID, id.UserID)
					r.Header.Set(HeaderUserEmail, id.Email)
					r.Header.Set(HeaderUsername, id.Username)
					r.Header.Set(HeaderUserRoles, strings.Join(id.Roles, ","))
					if id.UserID != "" {
						userID = id.UserID
					}
				}
				rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
				next.ServeHTTP(rec, r)
				status = rec.status
			} else {
				code = dec.Reject.Code
				status = dec.Reject.Status
				writeRejection(w, dec.Reject)
			}

			opts.Logger.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Str("ip", ip).
				Str("user_id", userID).
				Msg("access")

			outcome := "rejected"
			if dec.Admitted {
				outcome = "admitted"
			}
			decisionsTotal.WithLabelValues(outcome, code).Inc()

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.DecisionEvent{
					Method:   r.Method,
					Path:     r.URL.Path,
					Code:     code,
					Admitted: dec.Admitted,
					At:       start,
				})
			}
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(h[len(bearerPrefix):])
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
