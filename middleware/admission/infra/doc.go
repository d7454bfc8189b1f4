// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - RedisBucketStore: token bucket distribuído e atômico (script Lua)
//   - MemoryBucketStore: mesma semântica em memória, para dev/testes
//   - Breaker: circuit breaker por dependência (janela deslizante por contagem)
//   - LocalVerifier / RemoteVerifier: as duas estratégias de verificação
package infra
