package infra

import (
	"context"
	"math"
	"sync"
	"time"
)

// MemoryBucketStore reproduz a semântica do bucket distribuído em memória.
//
// Útil para desenvolvimento sem Redis e para testes determinísticos (a fonte
// de tempo é injetável). Não compartilha estado entre instâncias — em produção
// use o RedisBucketStore.
type MemoryBucketStore struct {
	mu           sync.Mutex
	buckets      map[string]*memBucket
	now          func() time.Time
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type memBucket struct {
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

type MemoryBucketOption func(*MemoryBucketStore)

func WithMemoryBucketNow(now func() time.Time) MemoryBucketOption {
	return func(s *MemoryBucketStore) { s.now = now }
}

func WithMemoryBucketIdleTTL(d time.Duration) MemoryBucketOption {
	return func(s *MemoryBucketStore) { s.idleTTL = d }
}

func WithMemoryBucketCleanupEvery(d time.Duration) MemoryBucketOption {
	return func(s *MemoryBucketStore) { s.cleanupEvery = d }
}

func NewMemoryBucketStore(opts ...MemoryBucketOption) *MemoryBucketStore {
	s := &MemoryBucketStore{
		buckets:      make(map[string]*memBucket),
		now:          time.Now,
		idleTTL:      60 * time.Second,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TryAcquire implementa domain.BucketStore com a mesma aritmética do script
// Lua: reposição inteira por floor, decremento só quando há token, e nenhuma
// mutação na rejeição.
func (s *MemoryBucketStore) TryAcquire(_ context.Context, key string, capacity, refillRate int) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &memBucket{tokens: float64(capacity), lastRefill: now}
		s.buckets[key] = b
	}

	refill := math.Floor(now.Sub(b.lastRefill).Seconds() * float64(refillRate))
	tokens := math.Min(float64(capacity), b.tokens+refill)

	if tokens < 1 {
		return false, nil
	}

	b.tokens = tokens - 1
	b.lastRefill = now
	b.lastSeen = now
	return true, nil
}

// Cleanup remove buckets ociosos (equivalente ao EXPIRE de 60s do Redis).
func (s *MemoryBucketStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa buckets ociosos periodicamente.
// Pare cancelando o contexto.
func (s *MemoryBucketStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
