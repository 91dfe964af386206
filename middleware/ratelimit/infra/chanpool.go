package infra

import (
	"context"

	"transit-gateway/middleware/ratelimit/domain"
)

// chanPool guarda as vagas de chamada ao upstream num channel com buffer.
type chanPool struct {
	slots chan struct{}
}

// NewChanPool cria o pool com `size` vagas.
func NewChanPool(size int) domain.SlotPool {
	return &chanPool{slots: make(chan struct{}, size)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	// vaga livre sai na hora, mesmo com ctx já cancelado
	select {
	case p.slots <- struct{}{}:
		return p.release, true
	default:
	}

	select {
	case p.slots <- struct{}{}:
		return p.release, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *chanPool) release() { <-p.slots }

func (p *chanPool) InUse() int { return len(p.slots) }

func (p *chanPool) Cap() int { return cap(p.slots) }
