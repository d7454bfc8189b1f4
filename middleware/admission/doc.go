// Package admission fornece o adapter HTTP (net/http) da camada de admissão
// do gateway: autenticação, checagem de revogação, rate limit distribuído e
// circuit breaking da authority, antes do proxy reverso.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (pipeline de estágios, rate limit multi-escopo)
//   - infra: implementações concretas (Redis, JWT, authority remota, breaker)
//   - admission (este pacote): middleware HTTP + extração de credencial/IP +
//     enriquecimento de headers de identidade + tradução para status/JSON
//
// Fluxo no gateway:
//
//  1. Resolve o IP do cliente (X-Forwarded-For -> X-Real-IP -> peer)
//  2. Extrai o bearer token e chama o pipeline da camada application
//  3. Se rejeitado, responde o JSON {code, message, timestamp} com 401/429/503
//  4. Se admitido, injeta X-User-Id/X-User-Email/X-Username/X-User-Roles e
//     chama o próximo handler (ex: reverse proxy)
//
// Toda requisição, admitida ou não, gera um registro estruturado de acesso.
package admission
