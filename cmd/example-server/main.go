package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/internal/logging"
	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Exemplo: middleware embutido direto no webserver (sem proxy), com a
// identidade resolvida por JWT antes do controle de admissão.
func main() {
	log, err := logging.New(os.Getenv("LOG_ENV"), os.Getenv("LOG_LEVEL"), "")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	secret := []byte(os.Getenv("JWT_SECRET"))
	if len(secret) == 0 {
		log.Warn("JWT_SECRET not set, every client is anonymous")
	}

	cache := infra.NewBoundedCache(infra.DefaultCapacity, infra.WithShards(8))
	stats := infra.NewMemoryStatsStore()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	cache.StartJanitor(ctx)

	rpm, ttl := 5, 60000
	policy := &domain.ConfigCandidate{
		Anonymous: &domain.AnonymousCandidate{
			RequestsPerMinute:       ptr(domain.DefaultAnonymousRPM),
			SuspiciousIPChangeLimit: ptr(domain.DefaultSuspiciousIPChangeLimit),
		},
		Authenticated: &domain.AuthenticatedCandidate{RequestsPerMinute: ptr(domain.DefaultAuthenticatedRPM)},
		Paths: map[string]*domain.PathCandidate{
			"/api/sensitive": {RequestsPerMinute: &rpm, TTLMs: &ttl},
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(JWTIdentity(secret, log))
	r.Use(ratelimit.Middleware(ratelimit.Options{
		Cache:  cache,
		Config: policy,
		Stats:  stats,
		Logger: log,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/api/sensitive", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("sensitive ok\n"))
	})
	r.Get("/debug/admission", func(w http.ResponseWriter, r *http.Request) {
		writeStats(w, stats.Total(), cache.Stats())
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("example server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}

func ptr(v int) *int { return &v }
