// Package application contém os casos de uso da camada de admissão: o pipeline
// de estágios (whitelist -> autenticação -> revogação -> rate limits) e a regra
// de rate limit multi-escopo (ip, user, api).
//
// Ele depende apenas do pacote domain e não conhece net/http nem Redis.
// Ex.: Pipeline.Process(ctx, req) devolve uma Decision (admit/reject).
package application
