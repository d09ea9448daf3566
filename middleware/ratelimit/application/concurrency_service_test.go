package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingPool struct{}

func (blockingPool) Acquire(ctx context.Context) (func(), error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, errors.New("should not get here")
	}
}

func (blockingPool) InFlight() int { return 1 }

type immediatePool struct {
	acquired int
}

func (p *immediatePool) Acquire(context.Context) (func(), error) {
	p.acquired++
	return func() {}, nil
}

func (p *immediatePool) InFlight() int { return p.acquired }

func TestConcurrencyService_Acquire_NoPool(t *testing.T) {
	release, err := ConcurrencyService{}.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestConcurrencyService_Acquire_Timeout(t *testing.T) {
	svc := ConcurrencyService{Pool: blockingPool{}, AcquireTimeout: 10 * time.Millisecond}

	release, err := svc.Acquire(context.Background())
	assert.Nil(t, release)
	assert.ErrorIs(t, err, domain.ErrNoSlot)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrencyService_Acquire_DelegatesToPool(t *testing.T) {
	pool := &immediatePool{}
	svc := ConcurrencyService{Pool: pool}

	release, err := svc.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.Equal(t, 1, pool.acquired)
}
