package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
	"admission-gateway/middleware/guard"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.logLevel)

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		admission.WriteError(w, http.StatusBadGateway, domain.CodeServiceUnavailable, "bad gateway")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
	}

	// store de buckets: Redis em produção (estado compartilhado entre as
	// instâncias do gateway), memória para desenvolvimento local
	var buckets domain.BucketStore
	if rdb != nil {
		buckets = infra.NewRedisBucketStore(rdb, infra.WithBucketOpTimeout(cfg.storeTimeout))
	} else {
		mem := infra.NewMemoryBucketStore()
		mem.StartJanitor(ctx)
		buckets = mem
	}

	verifier, revocations, err := buildVerifier(cfg, rdb, logger)
	if err != nil {
		log.Fatalf("auth wiring error: %v", err)
	}

	limits := &application.RateLimitService{
		Store:      buckets,
		IP:         cfg.ipScope,
		User:       cfg.userScope,
		APIDefault: cfg.apiDefaultScope,
		APITrading: cfg.apiTradingScope,
		APIMarket:  cfg.apiMarketScope,
		Tier:       application.FlatTier{Value: cfg.userScope.Capacity},
		Classifier: application.Classifier{
			TradingPrefixes: cfg.tradingPrefixes,
			MarketPrefixes:  cfg.marketPrefixes,
		},
		OnStoreError: func(scope, key string, err error) {
			logger.Warn().Err(err).Str("scope", scope).Str("key", key).Msg("bucket store error, failing open")
		},
	}

	pipeline := &application.Pipeline{
		Whitelist:   domain.ParseWhitelist(cfg.whitelist),
		Verifier:    verifier,
		Revocations: revocations,
		Limits:      limits,
		OnRevocationError: func(tokenID string, err error) {
			logger.Error().Err(err).Str("token_id", tokenID).Msg("revocation store error, failing closed")
		},
	}

	var stats domain.StatsStore
	if cfg.statsEnabled && rdb != nil {
		stats = infra.NewRedisStatsStore(rdb, infra.WithStatsTrackRoutes(cfg.statsTrackRoutes))
	}

	h := http.Handler(proxy)
	h = admission.Middleware(admission.Options{
		Pipeline: pipeline,
		Stats:    stats,
		Logger:   logger,
	})(h)
	h = guard.Middleware(ctx, guard.Options{
		RPS:            cfg.guardRPS,
		Burst:          cfg.guardBurst,
		MaxConcurrent:  cfg.concurrencyMax,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)

	mux := http.NewServeMux()
	admission.RegisterFallbacks(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("listen", cfg.listenAddr).Str("upstream", target.String()).
		Str("auth_mode", cfg.authMode).Bool("redis", rdb != nil).Msg("gateway listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// buildVerifier escolhe exatamente uma estratégia de verificação.
//
// No modo local o gateway valida o JWT com segredo compartilhado e consulta a
// blacklist no store; no modo remoto a authority é dona de toda a lógica (o
// gateway não guarda material criptográfico) e a chamada fica atrás do
// breaker. Os dois modos definem fronteiras de confiança diferentes — nunca
// rode ambos ao mesmo tempo.
func buildVerifier(cfg config, rdb *redis.Client, logger zerolog.Logger) (domain.TokenVerifier, domain.RevocationStore, error) {
	switch cfg.authMode {
	case "local":
		if cfg.jwtSecret == "" {
			return nil, nil, errors.New("JWT_SECRET is required when AUTH_MODE=local")
		}
		var revocations domain.RevocationStore
		if rdb != nil {
			revocations = infra.NewRedisRevocationStore(rdb, infra.WithRevocationOpTimeout(cfg.storeTimeout))
		} else {
			revocations = infra.NewMemoryRevocationStore()
		}
		return infra.NewLocalVerifier(cfg.jwtSecret), revocations, nil

	case "remote":
		if cfg.authServiceURL == "" {
			return nil, nil, errors.New("AUTH_SERVICE_URL is required when AUTH_MODE=remote")
		}
		breaker := infra.NewBreaker(infra.AuthServiceBreakerConfig(),
			infra.WithOnStateChange(func(from, to infra.BreakerState) {
				logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("auth breaker transition")
				admission.SetAuthBreakerState(float64(to))
			}),
		)
		verifier := infra.NewRemoteVerifier(cfg.authServiceURL, breaker,
			infra.WithRemoteTimeout(cfg.authTimeout))
		// a blacklist vive na authority neste modo; estágio de revogação pulado
		return verifier, nil, nil

	default:
		return nil, nil, errors.New("AUTH_MODE must be exactly one of: local, remote")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

type config struct {
	listenAddr  string
	upstreamURL string
	logLevel    string

	authMode       string
	jwtSecret      string
	authServiceURL string
	authTimeout    time.Duration
	whitelist      []string

	redisAddr     string
	redisPassword string
	redisDB       int
	storeTimeout  time.Duration

	ipScope         application.ScopeConfig
	userScope       application.ScopeConfig
	apiDefaultScope application.ScopeConfig
	apiTradingScope application.ScopeConfig
	apiMarketScope  application.ScopeConfig
	tradingPrefixes []string
	marketPrefixes  []string

	guardRPS           float64
	guardBurst         int
	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsEnabled     bool
	statsTrackRoutes bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")

	cfg.authMode = strings.ToLower(getenvDefault("AUTH_MODE", "local"))
	cfg.jwtSecret = os.Getenv("JWT_SECRET")
	cfg.authServiceURL = os.Getenv("AUTH_SERVICE_URL")
	// chamada intra-rede: uma authority lenta não pode travar todo o tráfego
	cfg.authTimeout = getenvDurationDefault("AUTH_TIMEOUT", 100*time.Millisecond)
	cfg.whitelist = splitCSV(getenvDefault("AUTH_WHITELIST", "/api/v1/auth/**,/health"))

	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.storeTimeout = getenvDurationDefault("STORE_TIMEOUT", 50*time.Millisecond)

	cfg.ipScope = scopeFromEnv("RATE_IP", 100, 100)
	cfg.userScope = scopeFromEnv("RATE_USER", 50, 50)
	cfg.apiDefaultScope = scopeFromEnv("RATE_API_DEFAULT", 30, 30)
	cfg.apiTradingScope = scopeFromEnv("RATE_API_TRADING", 10, 10)
	cfg.apiMarketScope = scopeFromEnv("RATE_API_MARKET", 60, 60)
	cfg.tradingPrefixes = splitCSV(getenvDefault("API_TRADING_PREFIXES", "/api/v1/orders/,/api/v1/trading/"))
	cfg.marketPrefixes = splitCSV(getenvDefault("API_MARKET_PREFIXES", "/api/v1/market/"))

	cfg.guardRPS = getenvFloatDefault("GUARD_RPS", 0) // 0 desliga o rate local
	cfg.guardBurst = getenvIntDefault("GUARD_BURST", 2*int(cfg.guardRPS))
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsTrackRoutes = getenvBoolDefault("STATS_TRACK_ROUTES", false)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.authMode != "local" && cfg.authMode != "remote" {
		return config{}, errors.New("AUTH_MODE must be exactly one of: local, remote")
	}
	for _, sc := range []application.ScopeConfig{
		cfg.ipScope, cfg.userScope, cfg.apiDefaultScope, cfg.apiTradingScope, cfg.apiMarketScope,
	} {
		if sc.Capacity <= 0 || sc.RefillRate <= 0 {
			return config{}, errors.New("rate limit capacity and refill must be > 0")
		}
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func scopeFromEnv(prefix string, defCapacity, defRefill int) application.ScopeConfig {
	return application.ScopeConfig{
		Capacity:   getenvIntDefault(prefix+"_CAPACITY", defCapacity),
		RefillRate: getenvIntDefault(prefix+"_REFILL", defRefill),
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
