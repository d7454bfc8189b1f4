package infra

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Script Lua do token bucket: leitura-cálculo-escrita em um único round trip,
// atômico por chave (sem lost update entre instâncias concorrentes do gateway).
//
// Semântica: inicializa em (capacity, now) se ausente; repõe
// floor((now-last_refill)*refill_rate) tokens limitado à capacidade; se houver
// ao menos 1 token, decrementa, persiste (tokens, now) e renova o TTL de 60s.
// Na rejeição nada é mutado.
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local time_passed = now - last_refill
local refill = math.floor(time_passed * refill_rate)
tokens = math.min(capacity, tokens + refill)

if tokens >= 1 then
    tokens = tokens - 1
    redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
    redis.call('EXPIRE', key, 60)
    return 1
else
    return 0
end`

// RedisBucketStore é o token bucket distribuído sobre o shared store.
//
// Nenhum estado de bucket é cacheado no processo: o Redis é a única fonte de
// verdade entre as instâncias do gateway.
type RedisBucketStore struct {
	rdb       *redis.Client
	script    *redis.Script
	opTimeout time.Duration
	now       func() time.Time
}

type RedisBucketOption func(*RedisBucketStore)

// WithBucketOpTimeout limita cada operação contra o store. Passado o limite,
// o erro sobe e o chamador aplica a política de fail-open.
func WithBucketOpTimeout(d time.Duration) RedisBucketOption {
	return func(s *RedisBucketStore) { s.opTimeout = d }
}

func WithBucketNow(now func() time.Time) RedisBucketOption {
	return func(s *RedisBucketStore) { s.now = now }
}

func NewRedisBucketStore(rdb *redis.Client, opts ...RedisBucketOption) *RedisBucketStore {
	s := &RedisBucketStore{
		rdb:       rdb,
		script:    redis.NewScript(tokenBucketScript),
		opTimeout: 50 * time.Millisecond,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TryAcquire implementa domain.BucketStore.
func (s *RedisBucketStore) TryAcquire(ctx context.Context, key string, capacity, refillRate int) (bool, error) {
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}

	// epoch em segundos fracionários, como o script espera
	now := float64(s.now().UnixNano()) / float64(time.Second)

	res, err := s.script.Run(ctx, s.rdb, []string{key}, capacity, refillRate, now).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
