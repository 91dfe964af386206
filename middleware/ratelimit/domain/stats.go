package domain

import (
	"context"
	"time"
)

// Outcome é o estado terminal de uma requisição no pipeline.
type Outcome string

const (
	OutcomeForwarded   Outcome = "forwarded"
	OutcomeDenied      Outcome = "denied"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeUnreachable Outcome = "upstream_unreachable"
	OutcomeTimeout     Outcome = "upstream_timeout"
	OutcomeMalformed   Outcome = "upstream_malformed"
	OutcomeFailed      Outcome = "upstream_failed"
	OutcomeOverloaded  Outcome = "overloaded"
	OutcomeAbandoned   Outcome = "client_gone"
)

// Allowed indica se a requisição passou pelas barreiras do gateway
// (mesmo que o upstream tenha falhado depois).
func (o Outcome) Allowed() bool {
	switch o {
	case OutcomeDenied, OutcomeInvalid, OutcomeRateLimited, OutcomeOverloaded, OutcomeAbandoned:
		return false
	}
	return true
}

// StatsEvent representa o desfecho de uma requisição no gateway.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key sem controle pode
// explodir o número de chaves no Redis). Capability é um conjunto fechado.
type StatsEvent struct {
	Key        Key
	Capability string
	Outcome    Outcome
	Status     int

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do gateway.
//
// Implementações podem armazenar em Redis, memória, etc.
// O pipeline trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
