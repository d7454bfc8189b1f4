package admission

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

const testSecret = "middleware-test-secret-0123456789"

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func testPipeline(revocations domain.RevocationStore, store domain.BucketStore) *application.Pipeline {
	return &application.Pipeline{
		Whitelist:   domain.ParseWhitelist([]string{"/api/v1/auth/**", "/health"}),
		Verifier:    infra.NewLocalVerifier(testSecret),
		Revocations: revocations,
		Limits: &application.RateLimitService{
			Store:      store,
			IP:         application.ScopeConfig{Capacity: 100, RefillRate: 100},
			User:       application.ScopeConfig{Capacity: 100, RefillRate: 100},
			APIDefault: application.ScopeConfig{Capacity: 100, RefillRate: 100},
			APITrading: application.ScopeConfig{Capacity: 100, RefillRate: 100},
			APIMarket:  application.ScopeConfig{Capacity: 100, RefillRate: 100},
		},
	}
}

func decodeRejection(t *testing.T, body io.Reader) (code, message string, ts int64) {
	t.Helper()
	var got struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(body).Decode(&got); err != nil {
		t.Fatalf("decode rejection body: %v", err)
	}
	return got.Code, got.Message, got.Timestamp
}

func TestMiddleware_WhitelistedPathPassesWithoutCredential(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// sem identidade: headers limpos, inclusive o que o cliente tentou forjar
		if _, ok := r.Header["X-User-Id"]; ok {
			t.Errorf("expected no X-User-Id on whitelisted path")
		}
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Pipeline: testPipeline(nil, infra.NewMemoryBucketStore()),
		Logger:   zerolog.Nop(),
	})(next)

	r := httptest.NewRequest(http.MethodPost, "http://example/api/v1/auth/login", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-User-Id", "forjado")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
}

func TestMiddleware_MissingCredentialReturns401JSON(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })

	h := Middleware(Options{
		Pipeline: testPipeline(nil, infra.NewMemoryBucketStore()),
		Logger:   zerolog.Nop(),
	})(next)

	r := httptest.NewRequest(http.MethodGet, "http://example/api/v1/orders", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	code, _, ts := decodeRejection(t, w.Body)
	if code != domain.CodeUnauthorized {
		t.Fatalf("expected code UNAUTHORIZED, got %q", code)
	}
	if ts <= 0 {
		t.Fatalf("expected epoch-millis timestamp, got %d", ts)
	}
	if calls != 0 {
		t.Fatalf("expected routing engine never to be invoked, got %d calls", calls)
	}
}

func TestMiddleware_ValidTokenInjectsIdentityHeaders(t *testing.T) {
	tok := mintToken(t, jwt.MapClaims{
		"sub":      "u-9",
		"username": "user-nine",
		"roles":    []string{"USER", "VIP"},
		"jti":      "jti-9",
		"exp":      time.Now().Add(time.Hour).Unix(),
		// sem email: header deve existir com valor vazio
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(HeaderUserID); got != "u-9" {
			t.Errorf("expected X-User-Id=u-9, got %q", got)
		}
		if got := r.Header.Get(HeaderUserRoles); got != "USER,VIP" {
			t.Errorf("expected comma-joined roles, got %q", got)
		}
		if _, ok := r.Header[HeaderUserEmail]; !ok {
			t.Errorf("expected X-User-Email present even when empty")
		}
		if got := r.Header.Get(HeaderUserEmail); got != "" {
			t.Errorf("expected empty X-User-Email, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Pipeline: testPipeline(infra.NewMemoryRevocationStore(), infra.NewMemoryBucketStore()),
		Logger:   zerolog.Nop(),
	})(next)

	r := httptest.NewRequest(http.MethodGet, "http://example/api/v1/orders", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMiddleware_RevokedTokenRejectedWithoutEnrichment(t *testing.T) {
	tok := mintToken(t, jwt.MapClaims{
		"sub": "u-9",
		"jti": "jti-revogado",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	revocations := infra.NewMemoryRevocationStore()
	revocations.Revoke("jti-revogado")

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })

	h := Middleware(Options{
		Pipeline: testPipeline(revocations, infra.NewMemoryBucketStore()),
		Logger:   zerolog.Nop(),
	})(next)

	r := httptest.NewRequest(http.MethodGet, "http://example/api/v1/orders", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	code, _, _ := decodeRejection(t, w.Body)
	if code != domain.CodeTokenRevoked {
		t.Fatalf("expected TOKEN_REVOKED, got %q", code)
	}
	if calls != 0 {
		t.Fatalf("expected next handler not to run, got %d calls", calls)
	}
}

func TestMiddleware_IPRateLimitReturns429(t *testing.T) {
	tok := mintToken(t, jwt.MapClaims{
		"sub": "u-9",
		"jti": "jti-9",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	p := testPipeline(nil, infra.NewMemoryBucketStore())
	p.Limits.IP = application.ScopeConfig{Capacity: 2, RefillRate: 1}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Middleware(Options{Pipeline: p, Logger: zerolog.Nop()})(next)

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "http://example/api/v1/orders", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("expected 1st request 200, got %d", w.Code)
	}
	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("expected 2nd request 200, got %d", w.Code)
	}

	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 3rd request 429, got %d", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Retry-After"); got != "1" {
		t.Fatalf("expected X-RateLimit-Retry-After=1, got %q", got)
	}
	code, _, _ := decodeRejection(t, w.Body)
	if code != domain.CodeRateLimitExceeded {
		t.Fatalf("expected RATE_LIMIT_EXCEEDED, got %q", code)
	}
}

func TestMiddleware_RecordsDecisionStats(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	h := Middleware(Options{
		Pipeline: testPipeline(nil, infra.NewMemoryBucketStore()),
		Stats:    stats,
		Logger:   zerolog.Nop(),
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	r := httptest.NewRequest(http.MethodGet, "http://example/api/v1/orders", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	got := stats.ByField()
	if got[domain.CodeUnauthorized] != 1 {
		t.Fatalf("expected 1 UNAUTHORIZED stat, got %v", got)
	}
}
