package infra

import (
	"context"
	"sync/atomic"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

const (
	DefaultStatsQueueSize    = 1024
	DefaultStatsWriteTimeout = 500 * time.Millisecond
)

// AsyncStatsStore tira a gravação de estatísticas do caminho da requisição:
// Record só enfileira, e Run grava no store de trás. Com a fila cheia o
// evento é descartado e contado em Dropped.
type AsyncStatsStore struct {
	next    domain.StatsStore
	queue   chan domain.StatsEvent
	timeout time.Duration
	log     *zap.Logger

	dropped atomic.Uint64
}

type AsyncStatsOption func(*AsyncStatsStore)

func WithStatsQueueSize(n int) AsyncStatsOption {
	return func(s *AsyncStatsStore) {
		if n > 0 {
			s.queue = make(chan domain.StatsEvent, n)
		}
	}
}

func WithStatsWriteTimeout(d time.Duration) AsyncStatsOption {
	return func(s *AsyncStatsStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithStatsLogger(log *zap.Logger) AsyncStatsOption {
	return func(s *AsyncStatsStore) {
		if log != nil {
			s.log = log
		}
	}
}

func NewAsyncStatsStore(next domain.StatsStore, opts ...AsyncStatsOption) *AsyncStatsStore {
	s := &AsyncStatsStore{
		next:    next,
		queue:   make(chan domain.StatsEvent, DefaultStatsQueueSize),
		timeout: DefaultStatsWriteTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record nunca bloqueia nem falha.
func (s *AsyncStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	select {
	case s.queue <- ev:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Run consome a fila até ctx terminar. O que ainda estiver enfileirado é
// gravado antes de retornar.
func (s *AsyncStatsStore) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case ev := <-s.queue:
			s.write(ev)
		}
	}
}

func (s *AsyncStatsStore) drain() {
	for {
		select {
		case ev := <-s.queue:
			s.write(ev)
		default:
			return
		}
	}
}

func (s *AsyncStatsStore) write(ev domain.StatsEvent) {
	if s.next == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.next.Record(ctx, ev); err != nil {
		s.log.Warn("stats record failed", zap.Error(err))
	}
}

func (s *AsyncStatsStore) Dropped() uint64 { return s.dropped.Load() }

// Pending é o número de eventos esperando na fila.
func (s *AsyncStatsStore) Pending() int { return len(s.queue) }

var _ domain.StatsStore = (*AsyncStatsStore)(nil)
