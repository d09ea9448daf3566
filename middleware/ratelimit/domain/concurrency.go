package domain

import "context"

// SlotPool limita quantas requisições ficam em voo ao mesmo tempo.
//
// Acquire espera por uma vaga até ctx terminar. Em caso de sucesso devolve
// release, que deve ser chamada uma única vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), err error)
	InFlight() int
}
