package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port             string
	Environment      string
	Domain           string
	MongoURI         string
	MongoDatabase    string
	RedisAddress     string
	RedisPassword    string
	IssueLimitPrefix string
	IssueDailyLimit  int
	JWTSecret        string
	TokenTTL         time.Duration
	CORSOrigins      []string
}

func (c *Config) Production() bool {
	return c.Environment == "production"
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:             valueOr(getenv("PORT"), "8080"),
		Environment:      getenv("GO_ENV"),
		Domain:           getenv("DOMAIN"),
		MongoURI:         getenv("MONGODB_URI"),
		MongoDatabase:    valueOr(getenv("MONGODB_DATABASE"), "civicsync"),
		RedisAddress:     valueOr(getenv("REDIS_ADDRESS"), "localhost:6379"),
		RedisPassword:    getenv("REDIS_PASSWORD"),
		IssueLimitPrefix: valueOr(getenv("REDIS_QUEUE_FOR_ISSUE_LIMIT"), "issue-limit"),
		IssueDailyLimit:  10,
		JWTSecret:        getenv("JWT_SECRET"),
		TokenTTL:         72 * time.Hour,
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("please define the MONGODB_URI environment variable")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	if raw := getenv("ISSUE_DAILY_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return nil, fmt.Errorf("invalid ISSUE_DAILY_LIMIT %q", raw)
		}
		cfg.IssueDailyLimit = limit
	}
	if raw := getenv("TOKEN_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("invalid TOKEN_TTL %q", raw)
		}
		cfg.TokenTTL = ttl
	}
	if raw := getenv("CORS_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}
	return cfg, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
