package application

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"admission-gateway/middleware/ratelimit/domain"
)

// FingerprintHeaders é a ordem fixa dos headers que compõem o fingerprint.
var FingerprintHeaders = [...]string{
	"User-Agent",
	"Accept-Language",
	"Accept-Encoding",
	"Connection",
}

// HeaderGetter é satisfeito por http.Header.
type HeaderGetter interface {
	Get(key string) string
}

// Fingerprinter deriva uma chave para clientes anônimos que não depende do
// IP, então trocar de IP não zera a cota.
type Fingerprinter struct{}

// Generate concatena os valores (ausente vira "") com ":" e devolve o
// SHA-256 em hex. É uma função pura dos quatro valores.
func (Fingerprinter) Generate(h HeaderGetter) domain.Key {
	values := make([]string, len(FingerprintHeaders))
	if h != nil {
		for i, name := range FingerprintHeaders {
			values[i] = h.Get(name)
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(values, ":")))
	return domain.Key(hex.EncodeToString(sum[:]))
}
