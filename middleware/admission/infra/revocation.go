package infra

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocationStore consulta a blacklist de tokens no shared store.
//
// As entradas são escritas por quem encerra sessões (logout / bloqueio
// forçado), fora deste core; aqui só existe a consulta de presença. A política
// de falha (fail closed) é do pipeline, não daqui: erro de store sobe cru.
type RedisRevocationStore struct {
	rdb       *redis.Client
	prefix    string
	opTimeout time.Duration
}

type RedisRevocationOption func(*RedisRevocationStore)

func WithRevocationPrefix(prefix string) RedisRevocationOption {
	return func(s *RedisRevocationStore) { s.prefix = prefix }
}

func WithRevocationOpTimeout(d time.Duration) RedisRevocationOption {
	return func(s *RedisRevocationStore) { s.opTimeout = d }
}

func NewRedisRevocationStore(rdb *redis.Client, opts ...RedisRevocationOption) *RedisRevocationStore {
	s := &RedisRevocationStore{
		rdb:       rdb,
		prefix:    "auth:revoked:",
		opTimeout: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsRevoked implementa domain.RevocationStore.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}

	n, err := s.rdb.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevocationStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento; não compartilha estado entre instâncias.
type MemoryRevocationStore struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{set: make(map[string]struct{})}
}

func (s *MemoryRevocationStore) Revoke(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set[tokenID] = struct{}{}
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[tokenID]
	return ok, nil
}
