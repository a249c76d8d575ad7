package config

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// CacheConfig configures the Redis response cache on public ticket listings.
// Listings change whenever a booking takes seats, so entries are short lived.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string // route, method_route, method_route_query or route_query
	Prefix       string
	MaxBodyBytes int // larger responses are served but not stored
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 15*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "tickets-cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func parseMethods(s string) map[string]bool {
	methods := lo.Without(lo.Map(strings.Split(s, ","), func(m string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(m))
	}), "")
	return lo.Associate(methods, func(m string) (string, bool) { return m, true })
}
