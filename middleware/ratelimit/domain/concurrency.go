package domain

import (
	"context"
	"time"
)

// SlotPool limita quantas chamadas ao upstream podem estar em voo ao mesmo tempo.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar (cliente
// desconectou ou o timeout de aquisição venceu). O release devolvido deve
// ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	InUse() int
	Cap() int
}

// SlotDecision é o resultado de uma tentativa de pegar vaga para o upstream.
type SlotDecision struct {
	Acquired bool
	// Waited é quanto tempo a requisição ficou na fila.
	Waited time.Duration
	// ClientGone: o cliente desistiu antes de sair a vaga (não é sobrecarga).
	ClientGone bool
	InUse      int
	Capacity   int
}
