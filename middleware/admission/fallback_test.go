package admission

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"admission-gateway/middleware/admission/domain"
)

func TestFallbackHandler_Categories(t *testing.T) {
	cases := []struct {
		category string
		code     string
	}{
		{"order", domain.CodeOrderUnavailable},
		{"trading", domain.CodeTradingUnavailable},
		{"default", domain.CodeServiceUnavailable},
		{"qualquer-outra", domain.CodeServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.category, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example/fallback/"+tc.category, nil)
			w := httptest.NewRecorder()
			FallbackHandler(tc.category).ServeHTTP(w, r)

			if w.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503, got %d", w.Code)
			}
			code, message, ts := decodeRejection(t, w.Body)
			if code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, code)
			}
			if message == "" || ts <= 0 {
				t.Fatalf("expected message and timestamp, got %q %d", message, ts)
			}
		})
	}
}
