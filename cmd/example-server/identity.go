package main

import (
	"net/http"
	"strings"

	"admission-gateway/middleware/ratelimit"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWTIdentity resolve o sinal de identidade a partir de um Bearer HS256.
// Token ausente ou inválido não bloqueia: o cliente segue como anônimo e
// cai na cota por fingerprint.
func JWTIdentity(secret []byte, log *zap.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || len(secret) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			var claims jwt.RegisteredClaims
			_, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
				return secret, nil
			})
			if err != nil || claims.Subject == "" {
				log.Debug("ignoring bearer token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ratelimit.WithUserID(r.Context(), claims.Subject)))
		})
	}
}
