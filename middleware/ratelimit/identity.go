package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
)

type userIDKey struct{}

// WithUserID marca o contexto com o usuário já autenticado. É assim que a
// camada de autenticação (externa) entrega o sinal de identidade.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

type IdentityFunc func(r *http.Request) domain.Identity

// DefaultIdentityFunc lê o user id do contexto. Se trustedHeader não for
// vazio, também aceita o header (só faz sentido atrás de um proxy de
// autenticação que sobrescreve esse header).
func DefaultIdentityFunc(trustedHeader string) IdentityFunc {
	return func(r *http.Request) domain.Identity {
		if id, ok := UserIDFromContext(r.Context()); ok {
			return domain.AuthenticatedIdentity(id)
		}
		if trustedHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(trustedHeader)); v != "" {
				return domain.AuthenticatedIdentity(v)
			}
		}
		return domain.AnonymousIdentity()
	}
}

type IPFunc func(r *http.Request) string

// DefaultIPFunc extrai o IP do cliente. X-Forwarded-For só é considerado com
// trustXFF (quem confia no proxy é a aplicação, não este pacote).
func DefaultIPFunc(trustXFF bool) IPFunc {
	return func(r *http.Request) string {
		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		addr := strings.TrimSpace(r.RemoteAddr)
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host
		}
		if addr != "" {
			return addr
		}
		return application.UnknownIP
	}
}
