package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key identifica o cliente (na prática, o endereço IP).
type Key string

// Counter registra uma requisição para a chave e responde se a cota foi atingida.
//
// RecordAndCheck sempre conta a requisição, mesmo quando ela vai ser rejeitada.
// Retorna true quando o cliente está acima do limite.
type Counter interface {
	RecordAndCheck(Key) bool
}

// WindowResetter é implementado por contadores com janela compartilhada:
// informa quanto falta para a próxima limpeza da tabela.
type WindowResetter interface {
	ResetIn() time.Duration
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
