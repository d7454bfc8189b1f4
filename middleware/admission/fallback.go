package admission

import (
	"net/http"

	"admission-gateway/middleware/admission/domain"
)

// FallbackHandler devolve a resposta de indisponibilidade (503) de uma
// categoria de upstream protegida. Usado pelo engine de roteamento quando o
// breaker de uma rota dispara.
func FallbackHandler(category string) http.Handler {
	code := domain.CodeServiceUnavailable
	message := "service temporarily unavailable"
	switch category {
	case "order":
		code = domain.CodeOrderUnavailable
		message = "order service temporarily unavailable"
	case "trading":
		code = domain.CodeTradingUnavailable
		message = "trading service temporarily unavailable"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusServiceUnavailable, code, message)
	})
}

// RegisterFallbacks monta os handlers de fallback no mux do gateway.
func RegisterFallbacks(mux *http.ServeMux) {
	mux.Handle("/fallback/order", FallbackHandler("order"))
	mux.Handle("/fallback/trading", FallbackHandler("trading"))
	mux.Handle("/fallback/default", FallbackHandler("default"))
}
