package application

import (
	"context"
	"time"

	"transit-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService decide se uma chamada ao upstream pode sair agora, sem
// saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire espera por uma vaga.
//   - AcquireTimeout <= 0: espera até o cliente desistir.
//   - AcquireTimeout > 0: espera no máximo esse tempo.
//
// Se a vaga não sair, release é nil e a decisão diz se foi o cliente que foi
// embora ou se a fila estourou o prazo.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), domain.SlotDecision) {
	if s.Pool == nil {
		return func() {}, domain.SlotDecision{Acquired: true}
	}

	start := time.Now()
	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	dec := domain.SlotDecision{
		Acquired: ok,
		Waited:   time.Since(start),
		InUse:    s.Pool.InUse(),
		Capacity: s.Pool.Cap(),
	}
	if !ok {
		dec.ClientGone = ctx.Err() != nil
		release = nil
	}
	return release, dec
}
