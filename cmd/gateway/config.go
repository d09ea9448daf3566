package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type config struct {
	listenAddr  string
	upstreamURL string

	logEnv    string
	logLevel  string
	logFormat string

	rateEnabled    bool
	rateConfigFile string
	cacheCapacity  int
	cacheTTL       time.Duration
	cacheShards    int
	trustXFF       bool
	userIDHeader   string
	addHeaders     bool

	concurrencyMax     int
	concurrencyTimeout time.Duration

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
	rateStatsQueue         int
}

func readConfig() (config, error) {
	// .env é opcional; variáveis já exportadas têm precedência
	_ = godotenv.Load()

	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = strings.TrimSpace(os.Getenv("UPSTREAM_URL"))

	cfg.logEnv = getenvDefault("LOG_ENV", "production")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.logFormat = getenvDefault("LOG_FORMAT", "")

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.rateConfigFile = os.Getenv("RATE_CONFIG_FILE")
	cfg.cacheCapacity = getenvIntDefault("RATE_CACHE_CAPACITY", infra.DefaultCapacity)
	cfg.cacheTTL = getenvDurationDefault("RATE_CACHE_TTL", infra.DefaultTTL)
	cfg.cacheShards = getenvIntDefault("RATE_CACHE_SHARDS", 16)
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.userIDHeader = os.Getenv("USER_ID_HEADER")
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "admission:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)
	cfg.rateStatsQueue = getenvIntDefault("RATE_STATS_QUEUE", infra.DefaultStatsQueueSize)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if cfg.cacheCapacity <= 0 {
		return config{}, errors.New("RATE_CACHE_CAPACITY must be > 0")
	}
	if cfg.cacheShards <= 0 {
		return config{}, errors.New("RATE_CACHE_SHARDS must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

// loadPolicy lê RATE_CONFIG_FILE. Erro de leitura é fatal (arquivo
// apontado e ausente é erro de deploy); conteúdo inválido não é: vira
// candidato nil e o middleware usa a política padrão.
func loadPolicy(path string, log *zap.Logger) (*domain.ConfigCandidate, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate config: %w", err)
	}
	c, err := application.DecodeConfig(data, filepath.Ext(path))
	if err != nil {
		log.Warn("rate config file rejected, using defaults", zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	return c, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
