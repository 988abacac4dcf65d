// Package config builds process configuration from the environment. A .env
// file in the working directory is loaded first when present; variables
// already set in the environment win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pstrings "crowdfund/pkg/platform/strings"
)

// Config is the full server configuration.
type Config struct {
	Server    Server
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	LLM       LLMConfig
	Review    ReviewConfig
	Countries CountriesConfig
	RateLimit RateLimitConfig
}

// Server captures HTTP server level configuration. Credentials are resolved
// through the secrets provider by name, never stored here.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	// SecretsPrefix is prepended to secret names when reading the environment.
	SecretsPrefix string
	JWTIssuer     string
	JWTAudience   string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers           []string
	Topic             string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
}

// LLMConfig drives the flow generators. Models are tried in order.
type LLMConfig struct {
	Models      []string
	MaxAttempts int
	Timeout     time.Duration
}

type ReviewConfig struct {
	// Backend is "memory" or "redis".
	Backend string
}

// RateLimitConfig sets per-class request budgets over Window. The Redis
// window is used whenever REDIS_URL is set.
type RateLimitConfig struct {
	Enabled bool
	Window  time.Duration
	Default int
	Money   int
	Flows   int
}

type CountriesConfig struct {
	// TablePath overrides the embedded country table when set.
	TablePath string
}

// Load reads .env (if present) and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	var errs []string
	intVar := func(key string, def int) int {
		v, err := envInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	cfg := Config{
		Server: Server{
			Addr:            envOr("CROWDFUND_ADDR", ":8080"),
			Environment:     envOr("CROWDFUND_ENV", "development"),
			LogLevel:        envOr("LOG_LEVEL", "info"),
			ShutdownTimeout: durVar("SHUTDOWN_TIMEOUT", 15*time.Second),
			RequestTimeout:  durVar("REQUEST_TIMEOUT", 30*time.Second),
			SecretsPrefix:   os.Getenv("SECRETS_PREFIX"),
			JWTIssuer:       os.Getenv("JWT_ISSUER"),
			JWTAudience:     os.Getenv("JWT_AUDIENCE"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    intVar("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    intVar("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durVar("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			AutoMigrate:     envOr("DATABASE_AUTO_MIGRATE", "true") == "true",
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intVar("REDIS_POOL_SIZE", 10),
			MinIdleConns: intVar("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durVar("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durVar("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durVar("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           pstrings.ParseList(os.Getenv("KAFKA_BROKERS")),
			Topic:             envOr("KAFKA_DECISION_TOPIC", "crowdfund.compliance.decisions"),
			ClientID:          envOr("KAFKA_CLIENT_ID", "crowdfund"),
			Partitions:        int32(intVar("KAFKA_TOPIC_PARTITIONS", 3)),
			ReplicationFactor: int16(intVar("KAFKA_TOPIC_REPLICATION", 1)),
		},
		LLM: LLMConfig{
			Models:      pstrings.ParseList(envOr("LLM_MODELS", "gemini-2.5-flash,gemini-2.5-flash-lite")),
			MaxAttempts: intVar("LLM_MAX_ATTEMPTS", 2),
			Timeout:     durVar("LLM_TIMEOUT", 30*time.Second),
		},
		Review: ReviewConfig{
			Backend: strings.ToLower(envOr("REVIEW_QUEUE_BACKEND", "memory")),
		},
		Countries: CountriesConfig{
			TablePath: os.Getenv("COUNTRY_TABLE_PATH"),
		},
		RateLimit: RateLimitConfig{
			Enabled: envOr("RATE_LIMIT_ENABLED", "true") == "true",
			Window:  durVar("RATE_LIMIT_WINDOW", time.Minute),
			Default: intVar("RATE_LIMIT_DEFAULT", 120),
			Money:   intVar("RATE_LIMIT_MONEY", 20),
			Flows:   intVar("RATE_LIMIT_FLOWS", 10),
		},
	}

	if cfg.Review.Backend != "memory" && cfg.Review.Backend != "redis" {
		errs = append(errs, "REVIEW_QUEUE_BACKEND must be memory or redis")
	}
	if cfg.Review.Backend == "redis" && cfg.Redis.URL == "" {
		errs = append(errs, "REVIEW_QUEUE_BACKEND=redis requires REDIS_URL")
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.Default < 1 || cfg.RateLimit.Money < 1 || cfg.RateLimit.Flows < 1) {
		errs = append(errs, "RATE_LIMIT_* budgets must be at least 1")
	}
	if cfg.LLM.MaxAttempts < 1 {
		errs = append(errs, "LLM_MAX_ATTEMPTS must be at least 1")
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("%s must be a duration", key)
	}
	return v, nil
}
