package infra

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen é devolvido por Execute quando o breaker está aberto e a
// chamada é rejeitada sem contatar a dependência.
var ErrBreakerOpen = errors.New("circuit breaker open")

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig parametriza um breaker. Taxas em fração (0.30 = 30%).
type BreakerConfig struct {
	// Window é o tamanho da janela deslizante (por contagem de chamadas).
	Window int
	// MinCalls é o mínimo de amostras antes de calcular taxas.
	MinCalls int
	// FailureRate abre o breaker quando atingida dentro da janela.
	FailureRate float64
	// SlowRate idem, para chamadas lentas.
	SlowRate float64
	// SlowCall é o limiar de latência acima do qual a chamada conta como lenta.
	SlowCall time.Duration
	// OpenWait é quanto tempo o breaker fica aberto antes de ir a half-open.
	OpenWait time.Duration
	// HalfOpenProbes é o número de chamadas de sondagem permitidas em half-open.
	HalfOpenProbes int
}

// AuthServiceBreakerConfig é o preset do breaker da authority de autenticação.
//
// Limiares mais apertados que o padrão: autenticação é ponto único de falha
// para todo o tráfego, então abre com 30% de falha e janela maior.
func AuthServiceBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Window:         100,
		MinCalls:       10,
		FailureRate:    0.30,
		SlowRate:       0.50,
		SlowCall:       200 * time.Millisecond,
		OpenWait:       10 * time.Second,
		HalfOpenProbes: 3,
	}
}

// DefaultBreakerConfig é o preset para dependências não críticas.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Window:         10,
		MinCalls:       5,
		FailureRate:    0.50,
		SlowRate:       0.50,
		SlowCall:       2 * time.Second,
		OpenWait:       30 * time.Second,
		HalfOpenProbes: 3,
	}
}

type callOutcome struct {
	failure bool
	slow    bool
}

// Breaker é um circuit breaker por dependência, local ao processo (estado não
// é compartilhado entre instâncias do gateway — cada uma aprende sozinha).
//
// Estado e janela são mutados sob um único mutex; leituras observam um
// snapshot consistente.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	// onStateChange é chamado fora do lock, na ordem das transições.
	onStateChange func(from, to BreakerState)

	mu       sync.Mutex
	state    BreakerState
	window   []callOutcome
	pos      int
	count    int
	failures int
	slows    int
	openedAt time.Time

	probesIssued int
	probeSuccess int
}

type BreakerOption func(*Breaker)

// WithBreakerNow injeta a fonte de tempo (testes determinísticos).
func WithBreakerNow(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

// WithOnStateChange registra um observador de transições (log/métrica).
func WithOnStateChange(fn func(from, to BreakerState)) BreakerOption {
	return func(b *Breaker) { b.onStateChange = fn }
}

func NewBreaker(cfg BreakerConfig, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		cfg:    cfg,
		now:    time.Now,
		window: make([]callOutcome, cfg.Window),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State devolve o estado corrente (já considerando a expiração do open-wait).
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.OpenWait {
		return StateHalfOpen
	}
	return b.state
}

// Execute roda fn sob a proteção do breaker.
//
// Se o breaker estiver aberto, devolve ErrBreakerOpen sem chamar fn. Caso
// contrário chama fn e registra o desfecho (sucesso / falha / lenta) na janela.
// O deadline de fn é responsabilidade do chamador, independente do breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	start := b.now()
	err := fn(ctx)
	elapsed := b.now().Sub(start)

	b.record(err != nil, elapsed > b.cfg.SlowCall)
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()

	var transition *[2]BreakerState
	switch b.state {
	case StateClosed:
		// passa direto
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenWait {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		transition = &[2]BreakerState{StateOpen, StateHalfOpen}
		b.state = StateHalfOpen
		b.probesIssued = 0
		b.probeSuccess = 0
		b.probesIssued++
	case StateHalfOpen:
		if b.probesIssued >= b.cfg.HalfOpenProbes {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.probesIssued++
	}
	b.mu.Unlock()

	if transition != nil {
		b.notify(transition[0], transition[1])
	}
	return nil
}

func (b *Breaker) record(failure, slow bool) {
	b.mu.Lock()

	var transition *[2]BreakerState
	switch b.state {
	case StateHalfOpen:
		if failure {
			// qualquer sonda falhando volta a abrir e reinicia o timer
			transition = &[2]BreakerState{StateHalfOpen, StateOpen}
			b.toOpen()
		} else {
			b.probeSuccess++
			if b.probeSuccess >= b.cfg.HalfOpenProbes {
				transition = &[2]BreakerState{StateHalfOpen, StateClosed}
				b.toClosed()
			}
		}
	case StateClosed:
		b.push(callOutcome{failure: failure, slow: slow})
		if b.count >= b.cfg.MinCalls && b.tripped() {
			transition = &[2]BreakerState{StateClosed, StateOpen}
			b.toOpen()
		}
	case StateOpen:
		// chamada que ainda estava em voo quando o breaker abriu; descarta
	}
	b.mu.Unlock()

	if transition != nil {
		b.notify(transition[0], transition[1])
	}
}

func (b *Breaker) push(o callOutcome) {
	old := b.window[b.pos]
	if b.count == b.cfg.Window {
		if old.failure {
			b.failures--
		}
		if old.slow {
			b.slows--
		}
	} else {
		b.count++
	}
	b.window[b.pos] = o
	b.pos = (b.pos + 1) % b.cfg.Window
	if o.failure {
		b.failures++
	}
	if o.slow {
		b.slows++
	}
}

func (b *Breaker) tripped() bool {
	n := float64(b.count)
	return float64(b.failures)/n >= b.cfg.FailureRate || float64(b.slows)/n >= b.cfg.SlowRate
}

func (b *Breaker) toOpen() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.resetWindow()
}

func (b *Breaker) toClosed() {
	b.state = StateClosed
	b.resetWindow()
}

func (b *Breaker) resetWindow() {
	for i := range b.window {
		b.window[i] = callOutcome{}
	}
	b.pos = 0
	b.count = 0
	b.failures = 0
	b.slows = 0
	b.probesIssued = 0
	b.probeSuccess = 0
}

func (b *Breaker) notify(from, to BreakerState) {
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
