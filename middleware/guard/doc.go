// Package guard é a primeira linha de defesa da instância: um rate limit
// local (token bucket por chave, golang.org/x/time/rate) e um teto de
// requisições concorrentes, aplicados antes do pipeline de admissão.
//
// Diferente do rate limit distribuído da camada de admissão, o guard protege
// o processo em si — é barato (sem round trip ao Redis) e o estado é local,
// então os limites aqui são deliberadamente folgados: abuso fino é tratado
// pelos buckets distribuídos.
package guard
