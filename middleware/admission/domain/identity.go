package domain

// Identity é o conjunto de atributos resolvidos a partir de uma credencial válida.
//
// Nunca é persistida: vive apenas durante o processamento da requisição.
type Identity struct {
	UserID   string
	Email    string
	Username string
	Roles    []string

	// TokenID é o identificador único da credencial (claim jti).
	// Usado apenas pela checagem de revogação no modo local.
	TokenID string
}

// Request é o snapshot imutável da requisição que o pipeline avalia.
//
// ClientIP já chega resolvido pelo adapter HTTP (XFF -> X-Real-IP -> peer).
// Credential é o bearer token cru, sem o prefixo "Bearer "; vazio quando ausente.
type Request struct {
	Method     string
	Path       string
	ClientIP   string
	Credential string
}

// Decision é o resultado terminal do pipeline para uma requisição.
//
// Exatamente um dos dois lados está preenchido: Admitted=true (com Identity
// opcional — caminhos whitelisted admitem sem identidade) ou Reject != nil.
type Decision struct {
	Admitted bool
	Identity *Identity
	Reject   *Rejection
}
