package infra

import (
	"context"
	"sync"

	"admission-gateway/middleware/admission/domain"
)

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento; não faz expiração.
type MemoryStatsStore struct {
	mu      sync.Mutex
	byField map[string]int64
	byRoute map[string]int64
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{
		byField: make(map[string]int64),
		byRoute: make(map[string]int64),
	}
}

// Record implementa domain.StatsStore.
func (s *MemoryStatsStore) Record(_ context.Context, ev domain.DecisionEvent) error {
	field := ev.Code
	if ev.Admitted {
		field = "admitted"
	}
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byField[field]++
	s.byRoute[route+":"+field]++
	return nil
}

func (s *MemoryStatsStore) ByField() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.byField))
	for k, v := range s.byField {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByRoute() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}
