package app

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable the site reads.
const EnvPrefix = "DISCR"

// envConfig mirrors Config with pointer fields so that only variables which
// are actually set override lower-precedence sources.
type envConfig struct {
	Addr *string `envconfig:"ADDR"`

	CampaignURL   *string  `envconfig:"CAMPAIGN_URL"`
	FallbackTitle *string  `envconfig:"CAMPAIGN_FALLBACK_TITLE"`
	GoalAmount    *float64 `envconfig:"CAMPAIGN_GOAL"`

	UserAgent        *string        `envconfig:"FETCH_USER_AGENT"`
	FetchTimeout     *time.Duration `envconfig:"FETCH_TIMEOUT"`
	FetchMinInterval *time.Duration `envconfig:"FETCH_MIN_INTERVAL"`

	CacheBackend     *string        `envconfig:"CACHE_BACKEND"`
	CacheDir         *string        `envconfig:"CACHE_DIR"`
	CacheStrictPerms *bool          `envconfig:"CACHE_STRICT_PERMS"`
	CacheClear       *bool          `envconfig:"CACHE_CLEAR"`
	RedisURL         *string        `envconfig:"REDIS_URL"`
	CacheTTL         *time.Duration `envconfig:"CACHE_TTL"`
	CacheRetention   *time.Duration `envconfig:"CACHE_RETENTION"`

	SuccessMaxAge *time.Duration `envconfig:"SUCCESS_MAX_AGE"`
	FailureMaxAge *time.Duration `envconfig:"FAILURE_MAX_AGE"`

	CanonicalHost *bool `envconfig:"CANONICAL_HOST"`
	Verbose       *bool `envconfig:"VERBOSE"`
}

// ApplyEnv overlays DISCR_* environment variables onto cfg. Malformed values
// are reported rather than silently ignored.
func ApplyEnv(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	var env envConfig
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	overlay(&cfg.Addr, env.Addr)
	overlay(&cfg.CampaignURL, env.CampaignURL)
	overlay(&cfg.FallbackTitle, env.FallbackTitle)
	overlay(&cfg.GoalAmount, env.GoalAmount)
	overlay(&cfg.UserAgent, env.UserAgent)
	overlay(&cfg.FetchTimeout, env.FetchTimeout)
	overlay(&cfg.FetchMinInterval, env.FetchMinInterval)
	overlay(&cfg.CacheBackend, env.CacheBackend)
	overlay(&cfg.CacheDir, env.CacheDir)
	overlay(&cfg.CacheStrictPerms, env.CacheStrictPerms)
	overlay(&cfg.CacheClear, env.CacheClear)
	overlay(&cfg.RedisURL, env.RedisURL)
	overlay(&cfg.CacheTTL, env.CacheTTL)
	overlay(&cfg.CacheRetention, env.CacheRetention)
	overlay(&cfg.SuccessMaxAge, env.SuccessMaxAge)
	overlay(&cfg.FailureMaxAge, env.FailureMaxAge)
	overlay(&cfg.CanonicalHost, env.CanonicalHost)
	overlay(&cfg.Verbose, env.Verbose)
	return nil
}

func overlay[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
