package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadReadsRequiredAndDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_USER", "tickets")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "ticket_marketplace")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "7")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("APP_TIMEZONE", "Not/AZone")
	t.Setenv("CLIENT_URL", "https://tickets.example.com/")

	cfg := Load()

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, 15, cfg.AccessTTLMin)
	assert.Equal(t, 6, cfg.AdvertiseLimit)
	assert.Equal(t, "usd", cfg.CheckoutCurrency)
	assert.Equal(t, "https://tickets.example.com", cfg.ClientURL)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()

	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "off")
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "90s")

	assert.False(t, envBool("X_BOOL", true))
	assert.Equal(t, 3, envInt("X_INT", 3))
	assert.Equal(t, 90*time.Second, envDur("X_DUR", time.Second))
	assert.Equal(t, "fallback", envStr("X_MISSING", "fallback"))
}

func TestLoadCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")

	cfg := LoadCacheConfig()

	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.False(t, cfg.Methods["POST"])
}
