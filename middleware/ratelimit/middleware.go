package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

type Options struct {
	// Cache é obrigatório e deve ser criado uma vez pela aplicação.
	Cache domain.EntryCache

	// Config é a política do middleware; nil usa domain.DefaultConfig.
	// Inválida => padrão inteiro (nunca merge parcial).
	Config *domain.ConfigCandidate
	// ConfigFn, se definido, fornece a política por requisição e tem
	// precedência sobre Config. Devolver nil usa Config.
	ConfigFn func(r *http.Request) *domain.ConfigCandidate

	// Stats é chamado no caminho da requisição; para backends remotos use
	// infra.AsyncStatsStore.
	Stats      domain.StatsStore
	IdentityFn IdentityFunc
	IPFn       IPFunc

	// UserIDHeader é repassado a DefaultIdentityFunc quando IdentityFn é nil.
	UserIDHeader       string
	TrustXForwardedFor bool

	AddRateLimitHeaders bool
	Disabled            bool

	Logger *zap.Logger
	Clock  func() time.Time
}

// Middleware monta o controle de admissão. Cache nil é defeito de wiring e
// entra em pânico aqui, não na primeira requisição.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Disabled {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.Cache == nil {
		panic(fmt.Errorf("ratelimit middleware: %w", domain.ErrNilCache))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.IdentityFn == nil {
		opts.IdentityFn = DefaultIdentityFunc(opts.UserIDHeader)
	}
	if opts.IPFn == nil {
		opts.IPFn = DefaultIPFunc(opts.TrustXForwardedFor)
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	log := opts.Logger.Named("ratelimit")
	resolver := application.NewConfigResolver(log)
	static := resolver.Resolve(opts.Config)
	svc := application.Service{Cache: opts.Cache, Now: now}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg := static
			if opts.ConfigFn != nil {
				if c := opts.ConfigFn(r); c != nil {
					cfg = resolver.Resolve(c)
				}
			}

			req := application.Request{
				Path:     r.URL.Path,
				Headers:  r.Header,
				Identity: opts.IdentityFn(r),
				IP:       opts.IPFn(r),
			}
			key, dec := svc.Decide(req, cfg)

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:      key,
					Identity: req.Identity.Kind,
					Allowed:  dec.Allowed,
					Reason:   dec.Reason,
					Method:   r.Method,
					Path:     r.URL.Path,
					At:       now(),
				})
				if err != nil {
					log.Warn("stats record failed", zap.Error(err))
				}
			}

			if opts.AddRateLimitHeaders {
				rule := application.RuleFor(req.Path, req.Identity.Kind, cfg)
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
				w.Header().Set("X-RateLimit-Window", retryAfterSeconds(rule.Window))
			}

			if !dec.Allowed {
				log.Debug("request denied",
					zap.Stringer("identity", req.Identity.Kind),
					zap.Stringer("reason", dec.Reason),
					zap.String("key", key.Short()),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", retryAfterSeconds(dec.RetryAfter))
				writeJSONError(w, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
