package application

import (
	"fmt"

	"admission-gateway/middleware/ratelimit/domain"
)

// HistoryFactor limita o histórico de IPs de uma entrada a
// HistoryFactor * limite, para que rotação de IP não cresça a memória.
const HistoryFactor = 4

// Detector sinaliza fingerprints vistos em mais IPs distintos do que o
// limite dentro de uma janela.
type Detector struct {
	limit      int
	maxHistory int
}

func NewDetector(limit int) *Detector {
	if limit < 1 {
		panic(fmt.Errorf("%w: suspicious ip change limit must be positive, got %d", domain.ErrUnconfiguredLimiter, limit))
	}
	return &Detector{limit: limit, maxHistory: limit * HistoryFactor}
}

func (d *Detector) Limit() int { return d.limit }

// IsSuspicious adiciona ip ao histórico quando é novo e reporta se o
// histórico passou do limite. Um IP já visto nunca é suspeito e não altera
// o histórico. Com o histórico cheio, IP novo não é inserido, mas já está
// além do limite e é reportado como suspeito.
func (d *Detector) IsSuspicious(history map[string]struct{}, ip string) bool {
	if d == nil || d.limit < 1 {
		panic(fmt.Errorf("%w: detector without limit", domain.ErrUnconfiguredLimiter))
	}
	if _, seen := history[ip]; seen {
		return false
	}
	if len(history) >= d.maxHistory {
		return true
	}
	history[ip] = struct{}{}
	return len(history) > d.limit
}
