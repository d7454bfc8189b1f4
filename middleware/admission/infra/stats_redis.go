package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"admission-gateway/middleware/admission/domain"
)

// RedisStatsStore acumula contadores de decisões de admissão no Redis.
//
// Estrutura: um hash total acumulado, um hash por minuto (com TTL) e um hash
// por rota. O campo é "admitted" ou o código de rejeição (cardinalidade baixa,
// a taxonomia é fixa). Best-effort: o adapter ignora erro de Record.
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas às chaves por minuto; o total é cumulativo e não expira.
	ttl time.Duration

	trackRoutes bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsTrackRoutes liga o hash por rota. Cuidado com cardinalidade de Path.
func WithStatsTrackRoutes(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackRoutes = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "admission:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implementa domain.StatsStore.
func (s *RedisStatsStore) Record(ctx context.Context, ev domain.DecisionEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := ev.Code
	if ev.Admitted {
		field = "admitted"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	minuteKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, minuteKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, minuteKey, s.ttl)
	}

	if s.trackRoutes {
		route := strings.TrimSpace(ev.Method + " " + ev.Path)
		if route != "" {
			pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
