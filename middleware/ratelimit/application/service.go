package application

import (
	"fmt"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// UnknownIP é usado quando o IP do cliente não pôde ser resolvido.
const UnknownIP = "unknown"

// Request é o mínimo que o motor precisa de uma requisição.
type Request struct {
	Path     string
	Headers  HeaderGetter
	Identity domain.Identity
	IP       string
}

// Service decide allow/deny para uma requisição. Não sabe nada de HTTP.
//
// Cache é obrigatório: um Service sem cache é defeito de wiring e Decide
// entra em pânico em vez de liberar tráfego.
type Service struct {
	Cache         domain.EntryCache
	Fingerprinter Fingerprinter
	Now           func() time.Time
}

// Decide resolve a regra da rota, deriva a chave, escolhe a estratégia e
// conta a requisição. cfg já deve estar validada (ConfigResolver).
func (s Service) Decide(req Request, cfg domain.Config) (domain.Key, domain.Decision) {
	if s.Cache == nil {
		panic(fmt.Errorf("%w: service without cache", domain.ErrUnconfiguredLimiter))
	}

	ip := strings.TrimSpace(req.IP)
	if ip == "" {
		ip = UnknownIP
	}

	rule := RuleFor(req.Path, req.Identity.Kind, cfg)
	key := s.KeyFor(req, rule)

	var opts []LimiterOption
	if s.Now != nil {
		opts = append(opts, WithClock(s.Now))
	}

	var lim domain.Limiter
	if req.Identity.Kind == domain.Authenticated {
		lim = NewAuthenticatedLimiter(s.Cache, rule, opts...)
	} else {
		lim = NewAnonymousLimiter(s.Cache, rule, NewDetector(cfg.Anonymous.SuspiciousIPChangeLimit), opts...)
	}
	return key, lim.Check(key, ip)
}

// KeyFor devolve "anon:<fingerprint>" ou "user:<id>". Com override de rota
// a chave ganha o path, para que a cota da rota não se misture com a padrão.
func (s Service) KeyFor(req Request, rule domain.Rule) domain.Key {
	var key string
	if req.Identity.Kind == domain.Authenticated {
		key = "user:" + req.Identity.UserID
	} else {
		key = "anon:" + string(s.Fingerprinter.Generate(req.Headers))
	}
	if rule.Path != "" {
		key = "path:" + rule.Path + "|" + key
	}
	return domain.Key(key)
}
