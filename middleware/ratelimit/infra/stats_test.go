package infra

import (
	"context"
	"testing"
	"time"

	"transit-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatsStore_CountsByOutcomeAndCapability(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	events := []domain.StatsEvent{
		{Key: "1.1.1.1", Capability: "/intermodal", Outcome: domain.OutcomeForwarded},
		{Key: "1.1.1.1", Capability: "/intermodal", Outcome: domain.OutcomeRateLimited},
		{Key: "2.2.2.2", Capability: "/guesser", Outcome: domain.OutcomeTimeout},
		{Key: "2.2.2.2", Capability: "/ppr/route", Outcome: domain.OutcomeDenied},
	}
	for _, ev := range events {
		require.NoError(t, s.Record(ctx, ev))
	}

	assert.Equal(t, Counters{Allowed: 2, Denied: 2}, s.Total())
	assert.Equal(t, int64(1), s.Outcome(domain.OutcomeRateLimited))
	assert.Equal(t, Counters{Allowed: 1, Denied: 1}, s.ByCapability()["/intermodal"])
	assert.Equal(t, Counters{Allowed: 1, Denied: 1}, s.ByKey()["2.2.2.2"])
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Key: "k", Outcome: domain.OutcomeForwarded}))
	assert.Empty(t, s.ByKey())
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	assert.NoError(t, s.Record(context.Background(), domain.StatsEvent{}))

	assert.NoError(t, NewRedisStatsStore(nil).Record(context.Background(), domain.StatsEvent{}))
}

func TestRedisStatsStore_Options(t *testing.T) {
	s := NewRedisStatsStore(nil,
		WithStatsPrefix(":custom:"),
		WithStatsTTL(time.Hour),
		WithStatsBucket(" NONE "),
		WithStatsTrackKeys(true),
	)
	assert.Equal(t, "custom", s.prefix)
	assert.Equal(t, time.Hour, s.ttl)
	assert.Equal(t, "none", s.bucket)
	assert.True(t, s.trackKeys)
}

func TestRedisStatsStore_ReportsUnreachableRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = rdb.Close() }()

	s := NewRedisStatsStore(rdb)
	err := s.Record(context.Background(), domain.StatsEvent{Key: "k", Capability: "/intermodal", Outcome: domain.OutcomeForwarded})
	assert.Error(t, err)
}
