package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanPool_CountsSlots(t *testing.T) {
	p := NewChanPool(2)
	assert.Equal(t, 2, p.Cap())

	r1, ok := p.Acquire(context.Background())
	require.True(t, ok)
	r2, ok := p.Acquire(context.Background())
	require.True(t, ok)
	assert.Equal(t, 2, p.InUse())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok = p.Acquire(ctx)
	assert.False(t, ok, "pool is full")

	r1()
	r2()
	assert.Zero(t, p.InUse())
}

func TestChanPool_FreeSlotWinsOverCanceledContext(t *testing.T) {
	p := NewChanPool(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	release, ok := p.Acquire(ctx)
	require.True(t, ok)
	release()
}
