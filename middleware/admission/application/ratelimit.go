package application

import (
	"context"
	"strings"

	"admission-gateway/middleware/admission/domain"
)

// ScopeConfig é a configuração de um bucket: capacidade e reposição por segundo.
type ScopeConfig struct {
	Capacity   int
	RefillRate int
}

// TierPolicy resolve a capacidade do bucket de usuário para uma identidade.
//
// Ponto de extensão para cotas por nível de conta (ex: contas privilegiadas com
// cota elevada) sem mudar o algoritmo do bucket.
type TierPolicy interface {
	Capacity(id domain.Identity) int
}

// FlatTier devolve a mesma capacidade para qualquer identidade.
type FlatTier struct {
	Value int
}

func (f FlatTier) Capacity(domain.Identity) int { return f.Value }

// APIClass é a classe de sensibilidade de um endpoint para fins de rate limit.
type APIClass int

const (
	ClassDefault APIClass = iota
	ClassTrading
	ClassMarket
)

// Classifier decide a classe de um path por prefixo.
// Endpoints de trading/mutação recebem limite mais apertado; market data, mais frouxo.
type Classifier struct {
	TradingPrefixes []string
	MarketPrefixes  []string
}

func (c Classifier) Classify(path string) APIClass {
	for _, p := range c.TradingPrefixes {
		if strings.HasPrefix(path, p) {
			return ClassTrading
		}
	}
	for _, p := range c.MarketPrefixes {
		if strings.HasPrefix(path, p) {
			return ClassMarket
		}
	}
	return ClassDefault
}

// RateLimitService concentra as três checagens de rate limit por requisição.
//
// Política de falha: se o store estiver indisponível ou a operação atômica
// errar, o limiter ADMITE a requisição (fail open) — disponibilidade acima de
// enforcement estrito para este estágio. É o inverso da checagem de revogação
// (fail closed); essa assimetria é intencional.
type RateLimitService struct {
	Store domain.BucketStore

	IP         ScopeConfig
	User       ScopeConfig
	APIDefault ScopeConfig
	APITrading ScopeConfig
	APIMarket  ScopeConfig

	Tier       TierPolicy
	Classifier Classifier

	// OnStoreError é chamado (se não-nil) quando uma aquisição falha por erro
	// de infraestrutura e a requisição segue por fail-open. Best-effort.
	OnStoreError func(scope, key string, err error)
}

const keyPrefix = "ratelimit:"

// CheckIP avalia o bucket ip:<clientIp>. Primeiro escopo, proteção grossa de abuso.
func (s *RateLimitService) CheckIP(ctx context.Context, clientIP string) *domain.Rejection {
	if s == nil {
		return nil
	}
	return s.check(ctx, "ip", keyPrefix+"ip:"+clientIP, s.IP.Capacity, s.IP.RefillRate)
}

// CheckUser avalia o bucket user:<userId>, com capacidade vinda da TierPolicy.
func (s *RateLimitService) CheckUser(ctx context.Context, id domain.Identity) *domain.Rejection {
	if s == nil {
		return nil
	}
	capacity := s.User.Capacity
	if s.Tier != nil {
		capacity = s.Tier.Capacity(id)
	}
	return s.check(ctx, "user", keyPrefix+"user:"+id.UserID, capacity, s.User.RefillRate)
}

// CheckAPI avalia o bucket api:<path>:<userId>, com capacidade pela classe do endpoint.
func (s *RateLimitService) CheckAPI(ctx context.Context, path string, id domain.Identity) *domain.Rejection {
	if s == nil {
		return nil
	}
	cfg := s.APIDefault
	switch s.Classifier.Classify(path) {
	case ClassTrading:
		cfg = s.APITrading
	case ClassMarket:
		cfg = s.APIMarket
	}
	return s.check(ctx, "api", keyPrefix+"api:"+path+":"+id.UserID, cfg.Capacity, cfg.RefillRate)
}

func (s *RateLimitService) check(ctx context.Context, scope, key string, capacity, refill int) *domain.Rejection {
	if s == nil || s.Store == nil {
		return nil
	}

	allowed, err := s.Store.TryAcquire(ctx, key, capacity, refill)
	if err != nil {
		// fail open: store fora do ar não derruba o tráfego
		if s.OnStoreError != nil {
			s.OnStoreError(scope, key, err)
		}
		return nil
	}
	if allowed {
		return nil
	}
	return domain.RejectRateLimited(scope)
}
