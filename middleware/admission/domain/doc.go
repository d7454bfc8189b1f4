// Package domain define contratos e tipos de domínio para a camada de admissão
// do gateway (autenticação, revogação, rate limit distribuído e circuit breaker).
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura (Redis, JWT, authority remota).
package domain
