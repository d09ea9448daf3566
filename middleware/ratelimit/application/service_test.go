package application

import (
	"fmt"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(clk *fakeClock) Service {
	return Service{Cache: newTestCache(clk), Now: clk.Now}
}

func anonRequest(path, ua, ip string) Request {
	return Request{Path: path, Headers: browserHeaders(ua), Identity: domain.AnonymousIdentity(), IP: ip}
}

func TestService_DefaultAnonymousQuota(t *testing.T) {
	clk := newFakeClock()
	svc := newTestService(clk)
	cfg := domain.DefaultConfig()

	for i := 1; i <= domain.DefaultAnonymousRPM; i++ {
		_, dec := svc.Decide(anonRequest("/", "Mozilla/5.0", "10.0.0.1"), cfg)
		require.True(t, dec.Allowed, "request %d", i)
	}
	_, dec := svc.Decide(anonRequest("/", "Mozilla/5.0", "10.0.0.1"), cfg)
	assert.False(t, dec.Allowed)
	assert.Equal(t, domain.ReasonQuota, dec.Reason)
}

func TestService_KeyFor(t *testing.T) {
	svc := Service{}
	req := anonRequest("/", "Mozilla/5.0", "10.0.0.1")
	fp := svc.Fingerprinter.Generate(req.Headers)

	assert.Equal(t, domain.Key("anon:"+string(fp)), svc.KeyFor(req, domain.Rule{}))
	assert.Equal(t, domain.Key("path:/login|anon:"+string(fp)), svc.KeyFor(req, domain.Rule{Path: "/login"}))

	req.Identity = domain.AuthenticatedIdentity("u1")
	assert.Equal(t, domain.Key("user:u1"), svc.KeyFor(req, domain.Rule{}))
}

func TestService_IPRotationDoesNotResetQuota(t *testing.T) {
	clk := newFakeClock()
	svc := newTestService(clk)
	cfg := domain.DefaultConfig()
	cfg.Anonymous.RequestsPerMinute = 3
	cfg.Anonymous.SuspiciousIPChangeLimit = 10

	for i := 0; i < 3; i++ {
		_, dec := svc.Decide(anonRequest("/", "bot", fmt.Sprintf("10.0.0.%d", i)), cfg)
		require.True(t, dec.Allowed)
	}
	_, dec := svc.Decide(anonRequest("/", "bot", "10.0.0.99"), cfg)
	assert.False(t, dec.Allowed)
}

func TestService_SuspiciousChurn(t *testing.T) {
	clk := newFakeClock()
	svc := newTestService(clk)
	cfg := domain.DefaultConfig()
	cfg.Anonymous.SuspiciousIPChangeLimit = 2

	_, dec := svc.Decide(anonRequest("/", "bot", "10.0.0.1"), cfg)
	require.True(t, dec.Allowed)
	_, dec = svc.Decide(anonRequest("/", "bot", "10.0.0.2"), cfg)
	require.True(t, dec.Allowed)
	_, dec = svc.Decide(anonRequest("/", "bot", "10.0.0.3"), cfg)
	assert.False(t, dec.Allowed)
	assert.Equal(t, domain.ReasonSuspicious, dec.Reason)
}

func TestService_AuthenticatedUsesUserQuota(t *testing.T) {
	clk := newFakeClock()
	svc := newTestService(clk)
	cfg := domain.DefaultConfig()
	cfg.Authenticated.RequestsPerMinute = 2

	req := Request{Path: "/", Identity: domain.AuthenticatedIdentity("u1"), IP: "10.0.0.1"}
	for i := 0; i < 2; i++ {
		req.IP = fmt.Sprintf("10.0.0.%d", i)
		key, dec := svc.Decide(req, cfg)
		require.True(t, dec.Allowed)
		assert.Equal(t, domain.Key("user:u1"), key)
	}
	_, dec := svc.Decide(req, cfg)
	assert.False(t, dec.Allowed)
	assert.Equal(t, domain.ReasonQuota, dec.Reason)
}

func TestService_PathOverrideIsIsolated(t *testing.T) {
	clk := newFakeClock()
	svc := newTestService(clk)
	cfg := domain.DefaultConfig()
	cfg.Paths["/api/sensitive"] = domain.PathConfig{RequestsPerMinute: 2, TTL: time.Minute}

	for i := 0; i < 2; i++ {
		_, dec := svc.Decide(anonRequest("/api/sensitive", "ua", "10.0.0.1"), cfg)
		require.True(t, dec.Allowed)
	}
	_, dec := svc.Decide(anonRequest("/api/sensitive", "ua", "10.0.0.1"), cfg)
	assert.False(t, dec.Allowed)

	for i := 0; i < 10; i++ {
		_, dec := svc.Decide(anonRequest("/api/other", "ua", "10.0.0.1"), cfg)
		assert.True(t, dec.Allowed)
	}
}

func TestService_PathWindowLongerThanCacheTTL(t *testing.T) {
	clk := newFakeClock()
	svc := Service{
		Cache: infra.NewBoundedCache(100, infra.WithTTL(time.Minute), infra.WithCacheClock(clk.Now)),
		Now:   clk.Now,
	}
	cfg := domain.DefaultConfig()
	cfg.Paths["/export"] = domain.PathConfig{RequestsPerMinute: 1, TTL: 10 * time.Minute}

	_, dec := svc.Decide(anonRequest("/export", "ua", "10.0.0.1"), cfg)
	require.True(t, dec.Allowed)

	clk.Advance(5 * time.Minute)
	_, dec = svc.Decide(anonRequest("/export", "ua", "10.0.0.1"), cfg)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 5*time.Minute, dec.RetryAfter)

	clk.Advance(5 * time.Minute)
	_, dec = svc.Decide(anonRequest("/export", "ua", "10.0.0.1"), cfg)
	assert.True(t, dec.Allowed)
}

func TestService_EmptyIPBecomesUnknown(t *testing.T) {
	clk := newFakeClock()
	cache := newTestCache(clk)
	svc := Service{Cache: cache, Now: clk.Now}

	key, dec := svc.Decide(anonRequest("/", "ua", "  "), domain.DefaultConfig())
	require.True(t, dec.Allowed)

	e, ok := cache.Get(string(key))
	require.True(t, ok)
	assert.True(t, e.Seen(UnknownIP))
}

func TestService_WithoutCachePanics(t *testing.T) {
	assert.Panics(t, func() {
		Service{}.Decide(anonRequest("/", "ua", "10.0.0.1"), domain.DefaultConfig())
	})
}
