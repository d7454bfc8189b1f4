package application

import (
	"context"
	"errors"

	"admission-gateway/middleware/admission/domain"
)

// Pipeline orquestra os estágios de admissão em ordem fixa, terminal na
// primeira falha:
//
//	whitelist -> autenticação -> revogação -> rate limit ip -> user -> api
//
// Paths na whitelist pulam direto para admitido, sem identidade.
// Ele não sabe nada sobre HTTP (headers/status): apenas devolve uma Decision.
type Pipeline struct {
	Whitelist domain.Whitelist
	Verifier  domain.TokenVerifier

	// Revocations só é configurado no modo de verificação local; no modo
	// remoto a blacklist vive na authority e o estágio é pulado (nil).
	Revocations domain.RevocationStore

	Limits *RateLimitService

	// OnRevocationError é chamado (se não-nil) quando a consulta de revogação
	// falha por erro de infraestrutura. A requisição é rejeitada mesmo assim
	// (fail closed): admitir um token revogado é o pior desfecho.
	OnRevocationError func(tokenID string, err error)
}

// Process avalia uma requisição e devolve a decisão terminal.
func (p *Pipeline) Process(ctx context.Context, req domain.Request) domain.Decision {
	if p.Whitelist.Match(req.Path) {
		return domain.Decision{Admitted: true}
	}

	if req.Credential == "" {
		return domain.Decision{Reject: domain.RejectMissingCredential()}
	}

	id, err := p.Verifier.Verify(ctx, req.Credential)
	if err != nil {
		return domain.Decision{Reject: rejectionFor(err)}
	}

	if rej := p.checkRevocation(ctx, id); rej != nil {
		return domain.Decision{Reject: rej}
	}

	if rej := p.Limits.CheckIP(ctx, req.ClientIP); rej != nil {
		return domain.Decision{Reject: rej}
	}
	if rej := p.Limits.CheckUser(ctx, id); rej != nil {
		return domain.Decision{Reject: rej}
	}
	if rej := p.Limits.CheckAPI(ctx, req.Path, id); rej != nil {
		return domain.Decision{Reject: rej}
	}

	return domain.Decision{Admitted: true, Identity: &id}
}

func (p *Pipeline) checkRevocation(ctx context.Context, id domain.Identity) *domain.Rejection {
	if p.Revocations == nil || id.TokenID == "" {
		return nil
	}

	revoked, err := p.Revocations.IsRevoked(ctx, id.TokenID)
	if err != nil {
		// fail closed: erro de store conta como revogado
		if p.OnRevocationError != nil {
			p.OnRevocationError(id.TokenID, err)
		}
		return domain.RejectRevokedCredential()
	}
	if revoked {
		return domain.RejectRevokedCredential()
	}
	return nil
}

// rejectionFor traduz os erros sentinela do verifier para a taxonomia de
// rejeições. Qualquer erro não reconhecido vira credencial inválida.
func rejectionFor(err error) *domain.Rejection {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return domain.RejectExpiredCredential()
	case errors.Is(err, domain.ErrTokenMalformed):
		return domain.RejectMalformedCredential()
	case errors.Is(err, domain.ErrAuthUnavailable):
		return domain.RejectAuthUnavailable()
	default:
		return domain.RejectInvalidCredential()
	}
}
