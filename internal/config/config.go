package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN    string
	MongoURI       string
	RedisAddr      string
	RabbitURL      string
	ListenAddr     string
	HoldWindow     time.Duration
	SettleGrace    time.Duration
	IdempotencyTTL time.Duration
	CancelFee      float64
	// Fixed-window rate limit on hold creation, per client IP.
	RateLimitMax    int
	RateLimitWindow time.Duration
	OTLPEndpoint    string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	listen := os.Getenv("LISTEN_ADDR")
	if listen == "" {
		listen = ":8080"
	}

	cancelFee, _ := strconv.ParseFloat(os.Getenv("CANCEL_FEE"), 64)
	if cancelFee == 0 {
		cancelFee = 50.0
	}

	return &Config{
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		MongoURI:        os.Getenv("MONGO_URI"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RabbitURL:       os.Getenv("RABBIT_URL"),
		ListenAddr:      listen,
		HoldWindow:      durationEnv("HOLD_WINDOW", 10*time.Minute),
		SettleGrace:     durationEnv("SETTLE_GRACE", 0),
		IdempotencyTTL:  durationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		CancelFee:       cancelFee,
		RateLimitMax:    intEnv("RATE_LIMIT_MAX", 30),
		RateLimitWindow: durationEnv("RATE_LIMIT_WINDOW", time.Minute),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func durationEnv(name string, def time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(name))
	if d == 0 {
		return def
	}
	return d
}

func intEnv(name string, def int) int {
	n, _ := strconv.Atoi(os.Getenv(name))
	if n == 0 {
		return def
	}
	return n
}
