package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Key identifica o dono de uma cota no cache (fingerprint ou user id,
// opcionalmente escopado por rota).
type Key string

// Short devolve uma forma da chave segura para logs: o namespace seguido
// dos 8 primeiros hex do SHA-256 da chave inteira. Estável para correlacionar
// linhas de log, nunca expõe o user id ou o fingerprint.
func (k Key) Short() string {
	sum := sha256.Sum256([]byte(k))
	digest := hex.EncodeToString(sum[:4])
	if ns, _, ok := strings.Cut(string(k), ":"); ok {
		return ns + ":" + digest
	}
	return digest
}

type IdentityKind int

const (
	Anonymous IdentityKind = iota
	Authenticated
)

func (k IdentityKind) String() string {
	if k == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Identity é o sinal de identidade já resolvido por quem está antes do
// middleware (autenticação não é responsabilidade deste pacote).
type Identity struct {
	Kind   IdentityKind
	UserID string
}

func AnonymousIdentity() Identity { return Identity{Kind: Anonymous} }

// AuthenticatedIdentity devolve uma identidade anônima se userID for vazio.
func AuthenticatedIdentity(userID string) Identity {
	if userID == "" {
		return AnonymousIdentity()
	}
	return Identity{Kind: Authenticated, UserID: userID}
}

// Rule é o limite efetivo de uma requisição.
type Rule struct {
	Limit  int
	Window time.Duration
	// Path vem preenchido quando a regra saiu de um override de rota.
	Path string
}

type Reason int

const (
	ReasonNone Reason = iota
	ReasonQuota
	ReasonSuspicious
)

func (r Reason) String() string {
	switch r {
	case ReasonQuota:
		return "quota"
	case ReasonSuspicious:
		return "suspicious"
	default:
		return "none"
	}
}

type Decision struct {
	Allowed bool
	// Reason só é usado internamente (stats/log); a resposta HTTP é a mesma
	// para cota estourada e comportamento suspeito.
	Reason Reason
	// RetryAfter é o tempo restante da janela atual da chave.
	RetryAfter time.Duration
}

// Limiter é a estratégia de rate limit por chave. Não há implementação
// padrão: cada estratégia (anônima, autenticada) implementa o contrato.
type Limiter interface {
	Check(key Key, ip string) Decision
	IsRateLimited(key Key, ip string) bool
}
