package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingStatsStore struct {
	release chan struct{}
}

func (b *blockingStatsStore) Record(ctx context.Context, _ domain.StatsEvent) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type failingStatsStore struct{}

func (failingStatsStore) Record(context.Context, domain.StatsEvent) error {
	return errors.New("redis down")
}

func TestAsyncStatsStore_RecordDoesNotBlock(t *testing.T) {
	slow := &blockingStatsStore{release: make(chan struct{})}
	s := NewAsyncStatsStore(slow, WithStatsQueueSize(2))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			assert.NoError(t, s.Record(context.Background(), domain.StatsEvent{Allowed: true}))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked with no consumer")
	}
	assert.Equal(t, 2, s.Pending())
	assert.Equal(t, uint64(3), s.Dropped())
}

func TestAsyncStatsStore_RunWritesAndDrains(t *testing.T) {
	mem := NewMemoryStatsStore()
	s := NewAsyncStatsStore(mem, WithStatsQueueSize(16))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Allowed: true}))
	}
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Reason: domain.ReasonQuota}))

	assert.Eventually(t, func() bool { return mem.Total().Allowed == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	assert.Equal(t, Counters{Allowed: 3, Quota: 1}, mem.Total())
	assert.Zero(t, s.Pending())
}

func TestAsyncStatsStore_BackendErrorsAreSwallowed(t *testing.T) {
	s := NewAsyncStatsStore(failingStatsStore{}, WithStatsQueueSize(1))
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
	assert.Zero(t, s.Pending())
}
