package application

import (
	"fmt"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

type LimiterOption func(*fixedWindow)

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) LimiterOption {
	return func(w *fixedWindow) {
		if now != nil {
			w.now = now
		}
	}
}

// fixedWindow é a contagem em janela fixa compartilhada pelas estratégias.
// Não implementa domain.Limiter sozinha.
type fixedWindow struct {
	cache domain.EntryCache
	rule  domain.Rule
	now   func() time.Time
}

func newFixedWindow(cache domain.EntryCache, rule domain.Rule, opts []LimiterOption) fixedWindow {
	w := fixedWindow{cache: cache, rule: rule, now: time.Now}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

func (w fixedWindow) mustBeConfigured() {
	if w.cache == nil {
		panic(fmt.Errorf("%w: no backing cache", domain.ErrUnconfiguredLimiter))
	}
	if w.rule.Limit < 1 || w.rule.Window <= 0 {
		panic(fmt.Errorf("%w: invalid rule limit=%d window=%s", domain.ErrUnconfiguredLimiter, w.rule.Limit, w.rule.Window))
	}
	if w.now == nil {
		panic(fmt.Errorf("%w: no clock", domain.ErrUnconfiguredLimiter))
	}
}

// hit conta uma requisição para key. inspect (opcional) roda com a trava da
// chave segurada, depois da contagem, e força bloqueio quando devolve true.
func (w fixedWindow) hit(key domain.Key, inspect func(e *domain.Entry) bool) domain.Decision {
	w.mustBeConfigured()

	now := w.now()
	var dec domain.Decision
	w.cache.Update(string(key), w.rule.Window, func(e *domain.Entry) *domain.Entry {
		switch {
		case e == nil:
			e = domain.NewEntry(now)
		case now.Sub(e.WindowStart) >= w.rule.Window:
			e.Reset(now)
		default:
			e.Count++
		}

		overQuota := e.Count > w.rule.Limit
		suspicious := inspect != nil && inspect(e)

		dec = domain.Decision{Allowed: true}
		switch {
		case suspicious:
			dec = domain.Decision{Reason: domain.ReasonSuspicious}
		case overQuota:
			dec = domain.Decision{Reason: domain.ReasonQuota}
		}
		if !dec.Allowed {
			dec.RetryAfter = e.WindowStart.Add(w.rule.Window).Sub(now)
		}
		return e
	})
	return dec
}

// AnonymousLimiter aplica a cota por fingerprint e bloqueia de imediato
// quando o mesmo fingerprint aparece em IPs demais na janela.
type AnonymousLimiter struct {
	window   fixedWindow
	detector *Detector
}

func NewAnonymousLimiter(cache domain.EntryCache, rule domain.Rule, detector *Detector, opts ...LimiterOption) *AnonymousLimiter {
	return &AnonymousLimiter{window: newFixedWindow(cache, rule, opts), detector: detector}
}

func (l *AnonymousLimiter) Check(key domain.Key, ip string) domain.Decision {
	if l == nil || l.detector == nil {
		panic(fmt.Errorf("%w: anonymous limiter without detector", domain.ErrUnconfiguredLimiter))
	}
	return l.window.hit(key, func(e *domain.Entry) bool {
		return l.detector.IsSuspicious(e.History, ip)
	})
}

func (l *AnonymousLimiter) IsRateLimited(key domain.Key, ip string) bool {
	return !l.Check(key, ip).Allowed
}

// AuthenticatedLimiter aplica a cota por user id. IPs diferentes para o
// mesmo usuário não são penalizados.
type AuthenticatedLimiter struct {
	window fixedWindow
}

func NewAuthenticatedLimiter(cache domain.EntryCache, rule domain.Rule, opts ...LimiterOption) *AuthenticatedLimiter {
	return &AuthenticatedLimiter{window: newFixedWindow(cache, rule, opts)}
}

func (l *AuthenticatedLimiter) Check(key domain.Key, _ string) domain.Decision {
	if l == nil {
		panic(fmt.Errorf("%w: nil authenticated limiter", domain.ErrUnconfiguredLimiter))
	}
	return l.window.hit(key, nil)
}

func (l *AuthenticatedLimiter) IsRateLimited(key domain.Key, ip string) bool {
	return !l.Check(key, ip).Allowed
}

var (
	_ domain.Limiter = (*AnonymousLimiter)(nil)
	_ domain.Limiter = (*AuthenticatedLimiter)(nil)
)
