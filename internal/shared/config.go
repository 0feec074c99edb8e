package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	MySQLDSN        string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	LockWaitTimeout time.Duration

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	AMQPURL   string
	JWTSecret string

	BookingRPS   float64
	BookingBurst int

	SweepInterval     time.Duration
	SweepWorkers      int
	SweepBatch        int
	PendingCancelDays int
}

// Load reads the environment, after merging a .env file when one exists.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", ""),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		MySQLDSN:        env("MYSQL_DSN", "root:root@tcp(localhost:3306)/jetstay?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		DBMaxOpenConns:  atoi("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:  atoi("DB_MAX_IDLE_CONNS", 25),
		DBConnLifetime:  time.Duration(atoi("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		LockWaitTimeout: time.Duration(atoi("LOCK_WAIT_TIMEOUT_SECONDS", 5)) * time.Second,

		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisDB:   atoi("REDIS_DB", 0),
		RedisPass: env("REDIS_PASSWORD", ""),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		AMQPURL:   env("AMQP_URL", ""),
		JWTSecret: env("JWT_SECRET", ""),

		BookingRPS:   atof("BOOKING_RPS", 2),
		BookingBurst: atoi("BOOKING_BURST", 5),

		SweepInterval:     time.Duration(atoi("SWEEP_INTERVAL_SECONDS", 3600)) * time.Second,
		SweepWorkers:      atoi("SWEEP_WORKERS", 4),
		SweepBatch:        atoi("SWEEP_BATCH", 500),
		PendingCancelDays: atoi("PENDING_CANCEL_DAYS", 3),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty; authenticated routes will reject every token")
	}
	if c.AMQPURL == "" {
		log.Warn().Msg("AMQP_URL is empty; booking events are only logged")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
