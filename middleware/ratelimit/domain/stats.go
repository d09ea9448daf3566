package domain

import (
	"context"
	"time"
)

// StatsEvent registra uma decisão do controle de admissão.
//
// Cuidado com cardinalidade: Key (fingerprint/user) e Path podem explodir o
// número de chaves numa base como Redis se forem rastreados sem controle.
type StatsEvent struct {
	Key      Key
	Identity IdentityKind
	Allowed  bool
	Reason   Reason

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste estatísticas das decisões. O middleware trata erro
// como best-effort: nunca muda a decisão por causa dele.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
