package application

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"admission-gateway/middleware/admission/domain"
)

type fakeVerifier struct {
	id    domain.Identity
	err   error
	calls int
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (domain.Identity, error) {
	f.calls++
	return f.id, f.err
}

type fakeRevocations struct {
	revoked bool
	err     error
	calls   int
}

func (f *fakeRevocations) IsRevoked(_ context.Context, _ string) (bool, error) {
	f.calls++
	return f.revoked, f.err
}

type fakeBuckets struct {
	deny map[string]bool
	err  error
	keys []string
}

func (f *fakeBuckets) TryAcquire(_ context.Context, key string, _, _ int) (bool, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return false, f.err
	}
	return !f.deny[key], nil
}

func newLimits(store domain.BucketStore) *RateLimitService {
	return &RateLimitService{
		Store:      store,
		IP:         ScopeConfig{Capacity: 100, RefillRate: 100},
		User:       ScopeConfig{Capacity: 50, RefillRate: 50},
		APIDefault: ScopeConfig{Capacity: 30, RefillRate: 30},
		APITrading: ScopeConfig{Capacity: 10, RefillRate: 10},
		APIMarket:  ScopeConfig{Capacity: 60, RefillRate: 60},
	}
}

func validIdentity() domain.Identity {
	return domain.Identity{UserID: "u1", Email: "u1@example.com", Username: "user-one", Roles: []string{"USER"}, TokenID: "jti-1"}
}

func TestPipeline_WhitelistedPathSkipsVerifier(t *testing.T) {
	v := &fakeVerifier{}
	p := &Pipeline{
		Whitelist: domain.ParseWhitelist([]string{"/api/v1/auth/**"}),
		Verifier:  v,
		Limits:    newLimits(&fakeBuckets{}),
	}

	dec := p.Process(context.Background(), domain.Request{Method: "POST", Path: "/api/v1/auth/login", ClientIP: "10.0.0.1"})
	if !dec.Admitted {
		t.Fatalf("expected whitelisted path to be admitted")
	}
	if dec.Identity != nil {
		t.Fatalf("expected no identity on whitelisted path")
	}
	if v.calls != 0 {
		t.Fatalf("expected verifier never to be called, got %d calls", v.calls)
	}
}

func TestPipeline_MissingCredential(t *testing.T) {
	v := &fakeVerifier{}
	p := &Pipeline{Verifier: v, Limits: newLimits(&fakeBuckets{})}

	dec := p.Process(context.Background(), domain.Request{Method: "GET", Path: "/api/v1/orders", ClientIP: "10.0.0.1"})
	if dec.Admitted {
		t.Fatalf("expected rejection")
	}
	if dec.Reject.Code != domain.CodeUnauthorized || dec.Reject.Status != http.StatusUnauthorized {
		t.Fatalf("expected UNAUTHORIZED/401, got %s/%d", dec.Reject.Code, dec.Reject.Status)
	}
	if v.calls != 0 {
		t.Fatalf("expected verifier not to be called without credential")
	}
}

func TestPipeline_VerifierErrorsMapToTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"expired", domain.ErrTokenExpired, domain.CodeTokenExpired},
		{"malformed", domain.ErrTokenMalformed, domain.CodeTokenMalformed},
		{"invalid", domain.ErrTokenInvalid, domain.CodeTokenInvalid},
		{"breaker aberto", domain.ErrAuthUnavailable, domain.CodeAuthUnavailable},
		{"erro desconhecido", errors.New("boom"), domain.CodeTokenInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Pipeline{Verifier: &fakeVerifier{err: tc.err}, Limits: newLimits(&fakeBuckets{})}
			dec := p.Process(context.Background(), domain.Request{Path: "/api/v1/orders", ClientIP: "1.2.3.4", Credential: "tok"})
			if dec.Admitted {
				t.Fatalf("expected rejection")
			}
			if dec.Reject.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, dec.Reject.Code)
			}
		})
	}
}

func TestPipeline_AuthUnavailableIs503(t *testing.T) {
	p := &Pipeline{Verifier: &fakeVerifier{err: domain.ErrAuthUnavailable}, Limits: newLimits(&fakeBuckets{})}
	dec := p.Process(context.Background(), domain.Request{Path: "/x", ClientIP: "1.2.3.4", Credential: "tok"})
	if dec.Reject == nil || dec.Reject.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %+v", dec.Reject)
	}
}

func TestPipeline_RevokedTokenRejected(t *testing.T) {
	p := &Pipeline{
		Verifier:    &fakeVerifier{id: validIdentity()},
		Revocations: &fakeRevocations{revoked: true},
		Limits:      newLimits(&fakeBuckets{}),
	}

	dec := p.Process(context.Background(), domain.Request{Path: "/api/v1/orders", ClientIP: "1.2.3.4", Credential: "tok"})
	if dec.Admitted {
		t.Fatalf("expected revoked token to be rejected even if structurally valid")
	}
	if dec.Reject.Code != domain.CodeTokenRevoked {
		t.Fatalf("expected TOKEN_REVOKED, got %s", dec.Reject.Code)
	}
}

func TestPipeline_RevocationStoreErrorFailsClosed(t *testing.T) {
	var gotTokenID string
	p := &Pipeline{
		Verifier:          &fakeVerifier{id: validIdentity()},
		Revocations:       &fakeRevocations{err: errors.New("redis down")},
		Limits:            newLimits(&fakeBuckets{}),
		OnRevocationError: func(tokenID string, _ error) { gotTokenID = tokenID },
	}

	dec := p.Process(context.Background(), domain.Request{Path: "/api/v1/orders", ClientIP: "1.2.3.4", Credential: "tok"})
	if dec.Admitted {
		t.Fatalf("expected fail-closed rejection on revocation store error")
	}
	if dec.Reject.Code != domain.CodeTokenRevoked {
		t.Fatalf("expected TOKEN_REVOKED, got %s", dec.Reject.Code)
	}
	if gotTokenID != "jti-1" {
		t.Fatalf("expected OnRevocationError with jti-1, got %q", gotTokenID)
	}
}

func TestPipeline_NoRevocationStageWithoutStore(t *testing.T) {
	// modo remoto: Revocations=nil, estágio pulado
	p := &Pipeline{Verifier: &fakeVerifier{id: validIdentity()}, Limits: newLimits(&fakeBuckets{})}
	dec := p.Process(context.Background(), domain.Request{Path: "/api/v1/orders", ClientIP: "1.2.3.4", Credential: "tok"})
	if !dec.Admitted {
		t.Fatalf("expected admission, got %+v", dec.Reject)
	}
}

func TestPipeline_RateLimitOrderAndKeys(t *testing.T) {
	store := &fakeBuckets{}
	p := &Pipeline{Verifier: &fakeVerifier{id: validIdentity()}, Limits: newLimits(store)}

	dec := p.Process(context.Background(), domain.Request{Path: "/api/v1/orders", ClientIP: "9.9.9.9", Credential: "tok"})
	if !dec.Admitted {
		t.Fatalf("expected admission, got %+v", dec.Reject)
	}
	want := []string{
		"ratelimit:ip:9.9.9.9",
		"ratelimit:user:u1",
		"ratelimit:api:/api/v1/orders:u1",
	}
	if len(store.keys) != len(want) {
		t.Fatalf("expected %d acquisitions, got %v", len(want), store.keys)
	}
	for i, k := range want {
		if store.keys[i] != k {
			t.Fatalf("expected key[%d]=%s, got %s", i, k, store.keys[i])
		}
	}
}

func TestPipeline_IPLimitRejectsBeforeUserScope(t *testing.T) {
	store := &fakeBuckets{deny: map[string]bool{"ratelimit:ip:9.9.9.9": true}}
	p := &Pipeline{Verifier: &fakeVerifier{id: validIdentity()}, Limits: newLimits(store)}

	dec := p.Process(context.Background(), domain.Request{Path: "/x", ClientIP: "9.9.9.9", Credential: "tok"})
	if dec.Admitted {
		t.Fatalf("expected 429")
	}
	if dec.Reject.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", dec.Reject.Status)
	}
	if len(store.keys) != 1 {
		t.Fatalf("expected pipeline to stop at ip scope, acquisitions: %v", store.keys)
	}
}

func TestPipeline_StoreErrorFailsOpen(t *testing.T) {
	var scopes []string
	store := &fakeBuckets{err: errors.New("redis down")}
	limits := newLimits(store)
	limits.OnStoreError = func(scope, _ string, _ error) { scopes = append(scopes, scope) }

	p := &Pipeline{Verifier: &fakeVerifier{id: validIdentity()}, Limits: limits}
	dec := p.Process(context.Background(), domain.Request{Path: "/x", ClientIP: "1.2.3.4", Credential: "tok"})
	if !dec.Admitted {
		t.Fatalf("expected fail-open admission on store error, got %+v", dec.Reject)
	}
	if len(scopes) != 3 {
		t.Fatalf("expected 3 store-error callbacks, got %v", scopes)
	}
}
