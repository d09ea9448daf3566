package infra

import (
	"context"
	"fmt"

	"admission-gateway/middleware/ratelimit/domain"
)

// ChanPool é um semáforo baseado em channel com capacidade fixa.
type ChanPool struct {
	sem chan struct{}
}

func NewChanPool(size int) *ChanPool {
	return &ChanPool{sem: make(chan struct{}, max(size, 1))}
}

func (p *ChanPool) Acquire(ctx context.Context) (func(), error) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, nil
	default:
	}

	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrNoSlot, ctx.Err())
	}
}

func (p *ChanPool) InFlight() int { return len(p.sem) }

func (p *ChanPool) Size() int { return cap(p.sem) }

var _ domain.SlotPool = (*ChanPool)(nil)
