package domain

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid rate limit config")

	// ErrUnconfiguredLimiter indica defeito de wiring (limiter sem cache,
	// sem detector ou com regra zerada). Nunca é tratado como "permitir".
	ErrUnconfiguredLimiter = errors.New("rate limiter is not configured")

	ErrNilCache = errors.New("rate limit cache is required")

	ErrNoSlot = errors.New("no concurrency slot available")
)
