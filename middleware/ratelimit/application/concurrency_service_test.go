package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingPool struct{}

func (p *blockingPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-time.After(5 * time.Second):
		// não deve chegar aqui nos testes
		return nil, false
	}
}

func (p *blockingPool) InUse() int { return 1 }
func (p *blockingPool) Cap() int   { return 1 }

type immediatePool struct {
	acquired int
}

func (p *immediatePool) Acquire(context.Context) (func(), bool) {
	p.acquired++
	return func() {}, true
}

func (p *immediatePool) InUse() int { return p.acquired }
func (p *immediatePool) Cap() int   { return 4 }

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	svc := ConcurrencyService{}
	release, dec := svc.Acquire(context.Background())
	require.True(t, dec.Acquired)
	release()
}

func TestConcurrencyService_Acquire_TimeoutIsOverload(t *testing.T) {
	svc := ConcurrencyService{Pool: &blockingPool{}, AcquireTimeout: 10 * time.Millisecond}

	release, dec := svc.Acquire(context.Background())
	assert.Nil(t, release)
	assert.False(t, dec.Acquired)
	assert.False(t, dec.ClientGone, "the queue deadline is ours, the client is still there")
	assert.GreaterOrEqual(t, dec.Waited, 10*time.Millisecond)
	assert.Less(t, dec.Waited, time.Second)
	assert.Equal(t, 1, dec.InUse)
	assert.Equal(t, 1, dec.Capacity)
}

func TestConcurrencyService_Acquire_ClientGoneIsNotOverload(t *testing.T) {
	svc := ConcurrencyService{Pool: &blockingPool{}, AcquireTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, dec := svc.Acquire(ctx)
	assert.False(t, dec.Acquired)
	assert.True(t, dec.ClientGone)
}

func TestConcurrencyService_Acquire_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &immediatePool{}
	svc := ConcurrencyService{Pool: pool, AcquireTimeout: 0}

	_, dec := svc.Acquire(context.Background())
	require.True(t, dec.Acquired)
	assert.Equal(t, 1, pool.acquired)
	assert.Equal(t, 1, dec.InUse)
	assert.Equal(t, 4, dec.Capacity)
}
