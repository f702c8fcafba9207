package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"MONGODB_URI": "mongodb://localhost:27017",
		"JWT_SECRET":  "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "civicsync", cfg.MongoDatabase)
	assert.Equal(t, "issue-limit", cfg.IssueLimitPrefix)
	assert.Equal(t, 10, cfg.IssueDailyLimit)
	assert.Equal(t, 72*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.Production())
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"MONGODB_URI":       "mongodb://db",
		"JWT_SECRET":        "secret",
		"GO_ENV":            "production",
		"ISSUE_DAILY_LIMIT": "3",
		"TOKEN_TTL":         "1h",
		"CORS_ORIGINS":      "https://a.example, https://b.example,",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, 3, cfg.IssueDailyLimit)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestFromEnvRequired(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{"JWT_SECRET": "secret"}))
	assert.ErrorContains(t, err, "MONGODB_URI")

	_, err = FromEnv(envOf(map[string]string{"MONGODB_URI": "mongodb://db"}))
	assert.ErrorContains(t, err, "JWT_SECRET")

	_, err = FromEnv(envOf(map[string]string{
		"MONGODB_URI":       "mongodb://db",
		"JWT_SECRET":        "secret",
		"ISSUE_DAILY_LIMIT": "zero",
	}))
	assert.ErrorContains(t, err, "ISSUE_DAILY_LIMIT")
}
