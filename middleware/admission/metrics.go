package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gateway",
	Subsystem: "admission",
	Name:      "decisions_total",
	Help:      "Decisões terminais do pipeline de admissão por desfecho e código.",
}, []string{"outcome", "code"})

var authBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "gateway",
	Name:      "auth_breaker_state",
	Help:      "Estado do breaker da authority de autenticação (0=closed, 1=open, 2=half-open).",
})

// SetAuthBreakerState publica o estado corrente do breaker da authority.
// Ligado via infra.WithOnStateChange no wiring do gateway.
func SetAuthBreakerState(v float64) { authBreakerState.Set(v) }
