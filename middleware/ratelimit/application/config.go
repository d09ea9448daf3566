package application

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// ValidationResult é o resultado de Validate: Valid com Config preenchido,
// ou inválido com Err explicando o primeiro problema encontrado.
type ValidationResult struct {
	Config domain.Config
	Valid  bool
	Err    error
}

func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{Err: fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))}
}

// maxTTLMs é o maior ttlMs que ainda cabe em um time.Duration.
const maxTTLMs = math.MaxInt64 / int64(time.Millisecond)

// Validate checa presença e positividade de todos os campos. É tudo ou
// nada: qualquer falha invalida o candidato inteiro, sem merge parcial.
// Em paths, ttlMs ausente vale domain.DefaultWindow (a cota é por minuto).
func Validate(c *domain.ConfigCandidate) ValidationResult {
	if c == nil {
		return invalid("empty config")
	}
	if c.Anonymous == nil {
		return invalid("missing anonymous section")
	}
	if c.Authenticated == nil {
		return invalid("missing authenticated section")
	}

	anonRPM, err := positive("anonymous.requestsPerMinute", c.Anonymous.RequestsPerMinute)
	if err != nil {
		return ValidationResult{Err: err}
	}
	ipLimit, err := positive("anonymous.suspiciousIpChangeLimit", c.Anonymous.SuspiciousIPChangeLimit)
	if err != nil {
		return ValidationResult{Err: err}
	}
	authRPM, err := positive("authenticated.requestsPerMinute", c.Authenticated.RequestsPerMinute)
	if err != nil {
		return ValidationResult{Err: err}
	}

	paths := make(map[string]domain.PathConfig, len(c.Paths))
	for path, pc := range c.Paths {
		if path == "" {
			return invalid("empty path key")
		}
		if pc == nil {
			return invalid("paths[%q]: missing value", path)
		}
		rpm, err := positive(fmt.Sprintf("paths[%q].requestsPerMinute", path), pc.RequestsPerMinute)
		if err != nil {
			return ValidationResult{Err: err}
		}
		window := domain.DefaultWindow
		if pc.TTLMs != nil {
			ttl, err := positive(fmt.Sprintf("paths[%q].ttlMs", path), pc.TTLMs)
			if err != nil {
				return ValidationResult{Err: err}
			}
			if int64(ttl) > maxTTLMs {
				return invalid("paths[%q].ttlMs must be <= %d, got %d", path, maxTTLMs, ttl)
			}
			window = time.Duration(ttl) * time.Millisecond
		}
		paths[path] = domain.PathConfig{
			RequestsPerMinute: rpm,
			TTL:               window,
		}
	}

	return ValidationResult{
		Valid: true,
		Config: domain.Config{
			Anonymous: domain.AnonymousConfig{
				RequestsPerMinute:       anonRPM,
				SuspiciousIPChangeLimit: ipLimit,
			},
			Authenticated: domain.AuthenticatedConfig{RequestsPerMinute: authRPM},
			Paths:         paths,
		},
	}
}

func positive(field string, v *int) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: %s is required", domain.ErrInvalidConfig, field)
	}
	if *v <= 0 {
		return 0, fmt.Errorf("%w: %s must be > 0, got %d", domain.ErrInvalidConfig, field, *v)
	}
	return *v, nil
}

// DecodeJSON decodifica de forma estrita: campo desconhecido (em qualquer
// nível), tipo errado ou lixo depois do objeto viram erro.
func DecodeJSON(data []byte) (*domain.ConfigCandidate, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var c domain.ConfigCandidate
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after config object", domain.ErrInvalidConfig)
	}
	return &c, nil
}

// DecodeYAML tem a mesma regra de DecodeJSON (KnownFields).
func DecodeYAML(data []byte) (*domain.ConfigCandidate, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c domain.ConfigCandidate
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return &c, nil
}

// DecodeMap aceita a configuração como mapa genérico (ex.: vinda de outro
// decoder) e aplica as mesmas regras do JSON estrito.
func DecodeMap(m map[string]any) (*domain.ConfigCandidate, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return DecodeJSON(data)
}

// DecodeConfig escolhe o decoder pelo formato ("json", "yaml"/"yml").
func DecodeConfig(data []byte, format string) (*domain.ConfigCandidate, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")) {
	case "json":
		return DecodeJSON(data)
	case "yaml", "yml":
		return DecodeYAML(data)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidConfig, format)
	}
}

// ConfigResolver valida a política recebida e cai para o padrão embutido
// quando ela é inválida. O erro nunca chega ao caminho da requisição; só é
// logado, com amostragem para não inundar o log.
type ConfigResolver struct {
	log       *zap.Logger
	warn      rate.Sometimes
	fallbacks atomic.Uint64
}

func NewConfigResolver(log *zap.Logger) *ConfigResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConfigResolver{
		log:  log,
		warn: rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

// Resolve devolve a configuração validada ou DefaultConfig. nil significa
// "sem configuração" e usa o padrão sem aviso.
func (r *ConfigResolver) Resolve(c *domain.ConfigCandidate) domain.Config {
	if c == nil {
		return domain.DefaultConfig()
	}
	res := Validate(c)
	if res.Valid {
		return res.Config
	}
	r.reject(res.Err)
	return domain.DefaultConfig()
}

// ResolveBytes decodifica e resolve; erro de decodificação também cai
// para o padrão.
func (r *ConfigResolver) ResolveBytes(data []byte, format string) domain.Config {
	c, err := DecodeConfig(data, format)
	if err != nil {
		r.reject(err)
		return domain.DefaultConfig()
	}
	return r.Resolve(c)
}

// Fallbacks conta quantas vezes o padrão substituiu uma política inválida.
func (r *ConfigResolver) Fallbacks() uint64 { return r.fallbacks.Load() }

func (r *ConfigResolver) reject(err error) {
	n := r.fallbacks.Add(1)
	r.warn.Do(func() {
		r.log.Warn("rate limit config rejected, using defaults",
			zap.Error(err),
			zap.Uint64("fallbacks", n),
		)
	})
}

// RuleFor devolve a regra efetiva para path: override exato de rota, ou o
// padrão da identidade (janela de um minuto).
func RuleFor(path string, kind domain.IdentityKind, cfg domain.Config) domain.Rule {
	if pc, ok := cfg.Paths[path]; ok {
		return domain.Rule{Limit: pc.RequestsPerMinute, Window: pc.TTL, Path: path}
	}
	if kind == domain.Authenticated {
		return domain.Rule{Limit: cfg.Authenticated.RequestsPerMinute, Window: domain.DefaultWindow}
	}
	return domain.Rule{Limit: cfg.Anonymous.RequestsPerMinute, Window: domain.DefaultWindow}
}
