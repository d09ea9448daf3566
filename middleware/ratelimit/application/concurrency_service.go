package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService aplica o limite de requisições em voo, sem HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire pede uma vaga ao pool. Sem pool, tudo passa. Com AcquireTimeout
// > 0 a espera é limitada; senão dura até ctx terminar. Qualquer falha é
// reportada como domain.ErrNoSlot.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, err := s.Pool.Acquire(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoSlot) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrNoSlot, err)
	}
	return release, nil
}
