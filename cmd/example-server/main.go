package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Upstream de exemplo para validar o gateway na frente: ecoa os headers de
// identidade que a admissão injeta e, opcionalmente, emite um JWT de teste
// (MINT_TOKEN=1) compatível com o modo local — apenas para desenvolvimento.
func main() {
	secret := getenvDefault("JWT_SECRET", "dev-secret-change-me")

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"path":     r.URL.Path,
			"userId":   r.Header.Get("X-User-Id"),
			"email":    r.Header.Get("X-User-Email"),
			"username": r.Header.Get("X-Username"),
			"roles":    r.Header.Get("X-User-Roles"),
		})
	})

	if os.Getenv("MINT_TOKEN") == "1" {
		mux.HandleFunc("/mint", func(w http.ResponseWriter, r *http.Request) {
			tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub":      getenvDefault("MINT_SUB", "dev-user"),
				"email":    "dev@example.com",
				"username": "dev",
				"roles":    []string{"USER"},
				"jti":      uuid.NewString(),
				"exp":      time.Now().Add(time.Hour).Unix(),
			}).SignedString([]byte(secret))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(tok + "\n"))
		})
	}

	addr := getenvDefault("LISTEN_ADDR", ":8081")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
