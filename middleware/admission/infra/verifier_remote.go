package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// RemoteVerifier delega a verificação a uma authority de autenticação.
//
// O gateway não guarda segredo nem deriva material criptográfico neste modo:
// toda a lógica de validação (inclusive blacklist) vive na authority. A
// chamada tem deadline fixo curto — é intra-rede, e uma authority lenta não
// pode travar todo o tráfego — e é protegida pelo Breaker.
type RemoteVerifier struct {
	url     string
	client  *http.Client
	breaker *Breaker
	timeout time.Duration
}

type RemoteVerifierOption func(*RemoteVerifier)

func WithRemoteClient(c *http.Client) RemoteVerifierOption {
	return func(v *RemoteVerifier) { v.client = c }
}

func WithRemoteTimeout(d time.Duration) RemoteVerifierOption {
	return func(v *RemoteVerifier) { v.timeout = d }
}

func NewRemoteVerifier(url string, breaker *Breaker, opts ...RemoteVerifierOption) *RemoteVerifier {
	v := &RemoteVerifier{
		url:     url,
		client:  http.DefaultClient,
		breaker: breaker,
		timeout: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

type validateTokenResponse struct {
	Valid    bool     `json:"valid"`
	UserID   string   `json:"userId"`
	Email    string   `json:"email"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// Verify implementa domain.TokenVerifier.
//
// Falha de transporte, estouro de deadline ou breaker aberto viram
// ErrAuthUnavailable; um veredito explícito valid=false vira ErrTokenInvalid
// (resultado de negócio, não conta como falha no breaker).
func (v *RemoteVerifier) Verify(ctx context.Context, credential string) (domain.Identity, error) {
	var resp validateTokenResponse

	call := func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, v.timeout)
		defer cancel()
		return v.validate(callCtx, credential, &resp)
	}

	var err error
	if v.breaker != nil {
		err = v.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if errors.Is(err, ErrBreakerOpen) {
			return domain.Identity{}, fmt.Errorf("%w: circuit open", domain.ErrAuthUnavailable)
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthUnavailable, err)
	}

	if !resp.Valid {
		return domain.Identity{}, domain.ErrTokenInvalid
	}

	return domain.Identity{
		UserID:   resp.UserID,
		Email:    resp.Email,
		Username: resp.Username,
		Roles:    resp.Roles,
	}, nil
}

func (v *RemoteVerifier) validate(ctx context.Context, credential string, out *validateTokenResponse) error {
	body, err := json.Marshal(validateTokenRequest{Token: credential})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("auth authority returned status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
