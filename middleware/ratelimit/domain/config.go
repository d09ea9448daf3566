package domain

import "time"

const (
	DefaultAnonymousRPM            = 100
	DefaultSuspiciousIPChangeLimit = 3
	DefaultAuthenticatedRPM        = 300

	// DefaultWindow é a janela das regras por identidade (requests por minuto).
	DefaultWindow = time.Minute
)

// Config é a política já validada. Todo campo numérico é > 0.
type Config struct {
	Anonymous     AnonymousConfig
	Authenticated AuthenticatedConfig
	Paths         map[string]PathConfig
}

type AnonymousConfig struct {
	RequestsPerMinute       int
	SuspiciousIPChangeLimit int
}

type AuthenticatedConfig struct {
	RequestsPerMinute int
}

type PathConfig struct {
	RequestsPerMinute int
	TTL               time.Duration
}

// DefaultConfig devolve uma cópia nova da política embutida.
func DefaultConfig() Config {
	return Config{
		Anonymous: AnonymousConfig{
			RequestsPerMinute:       DefaultAnonymousRPM,
			SuspiciousIPChangeLimit: DefaultSuspiciousIPChangeLimit,
		},
		Authenticated: AuthenticatedConfig{
			RequestsPerMinute: DefaultAuthenticatedRPM,
		},
		Paths: map[string]PathConfig{},
	}
}

// ConfigCandidate é o formato recebido de fora (arquivo, chamador), antes
// da validação. Ponteiros distinguem "ausente" de "zero".
type ConfigCandidate struct {
	Anonymous     *AnonymousCandidate       `json:"anonymous" yaml:"anonymous"`
	Authenticated *AuthenticatedCandidate   `json:"authenticated" yaml:"authenticated"`
	Paths         map[string]*PathCandidate `json:"paths,omitempty" yaml:"paths,omitempty"`
}

type AnonymousCandidate struct {
	RequestsPerMinute       *int `json:"requestsPerMinute" yaml:"requestsPerMinute"`
	SuspiciousIPChangeLimit *int `json:"suspiciousIpChangeLimit" yaml:"suspiciousIpChangeLimit"`
}

type AuthenticatedCandidate struct {
	RequestsPerMinute *int `json:"requestsPerMinute" yaml:"requestsPerMinute"`
}

type PathCandidate struct {
	RequestsPerMinute *int `json:"requestsPerMinute" yaml:"requestsPerMinute"`
	TTLMs             *int `json:"ttlMs" yaml:"ttlMs"`
}
