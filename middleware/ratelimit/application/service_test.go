package application

import (
	"testing"
	"time"

	"transit-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
)

type fakeCounter struct {
	limited bool
	seen    []domain.Key
}

func (f *fakeCounter) RecordAndCheck(k domain.Key) bool {
	f.seen = append(f.seen, k)
	return f.limited
}

type fakeWindow struct {
	fakeCounter
	resetIn time.Duration
}

func (f *fakeWindow) ResetIn() time.Duration { return f.resetIn }

func TestService_Decide_AllowsWhenNoCounter(t *testing.T) {
	svc := Service{}
	dec := svc.Decide("k")
	assert.True(t, dec.Allowed)
	assert.Zero(t, dec.RetryAfter)
}

func TestService_Decide_RecordsEveryCall(t *testing.T) {
	c := &fakeCounter{}
	svc := Service{Counter: c, RetryAfter: 5 * time.Second}

	assert.True(t, svc.Decide("a").Allowed)
	assert.True(t, svc.Decide("b").Allowed)
	assert.Equal(t, []domain.Key{"a", "b"}, c.seen)
}

func TestService_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	svc := Service{Counter: &fakeCounter{limited: true}}
	dec := svc.Decide("k")
	assert.False(t, dec.Allowed)
	assert.Equal(t, 1*time.Second, dec.RetryAfter)
}

func TestService_Decide_BlocksWithConfiguredRetryAfter(t *testing.T) {
	svc := Service{Counter: &fakeCounter{limited: true}, RetryAfter: 2500 * time.Millisecond}
	dec := svc.Decide("k")
	assert.False(t, dec.Allowed)
	assert.Equal(t, 2500*time.Millisecond, dec.RetryAfter)
}

func TestService_Decide_PrefersWindowReset(t *testing.T) {
	w := &fakeWindow{fakeCounter: fakeCounter{limited: true}, resetIn: 42 * time.Second}
	svc := Service{Counter: w, RetryAfter: 2 * time.Second}

	dec := svc.Decide("k")
	assert.False(t, dec.Allowed)
	assert.Equal(t, 42*time.Second, dec.RetryAfter)
}
