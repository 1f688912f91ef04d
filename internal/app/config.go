package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/discrapp/discr-site/internal/campaign"
	"github.com/discrapp/discr-site/internal/fetch"
	"github.com/discrapp/discr-site/internal/funding"
)

// Cache backends for upstream page responses.
const (
	CacheNone  = "none"
	CacheDisk  = "disk"
	CacheRedis = "redis"
)

// Built-in defaults. The campaign constants belong to the one campaign the
// site currently promotes.
const (
	defaultAddr          = ":8080"
	defaultCampaignURL   = "https://www.gofundme.com/f/help-launch-discr-lost-disc-recovery-app-7s6kw"
	defaultFallbackTitle = "Help Launch Discr"
	defaultGoalAmount    = 450
	defaultFetchTimeout  = 15 * time.Second
	defaultCacheDir      = ".discr-cache"
	defaultRetention     = 24 * time.Hour
)

// Config holds runtime configuration for the site.
type Config struct {
	Addr string

	// Campaign
	CampaignURL   string
	FallbackTitle string
	GoalAmount    float64

	// Upstream fetch
	UserAgent    string
	FetchTimeout time.Duration
	// FetchMinInterval spaces out upstream requests. Zero disables the limit.
	FetchMinInterval time.Duration

	// Upstream response cache
	CacheBackend     string
	CacheDir         string
	CacheStrictPerms bool
	// CacheClear empties the cache backend at startup.
	CacheClear     bool
	RedisURL       string
	CacheTTL       time.Duration
	CacheRetention time.Duration

	// Downstream Cache-Control windows
	SuccessMaxAge time.Duration
	FailureMaxAge time.Duration

	CanonicalHost bool
	Verbose       bool
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Addr:           defaultAddr,
		CampaignURL:    defaultCampaignURL,
		FallbackTitle:  defaultFallbackTitle,
		GoalAmount:     defaultGoalAmount,
		UserAgent:      fetch.DefaultUserAgent,
		FetchTimeout:   defaultFetchTimeout,
		CacheBackend:   CacheDisk,
		CacheDir:       defaultCacheDir,
		CacheTTL:       fetch.DefaultTTL,
		CacheRetention: defaultRetention,
		SuccessMaxAge:  funding.DefaultSuccessMaxAge,
		FailureMaxAge:  funding.DefaultFailureMaxAge,
		CanonicalHost:  true,
	}
}

// CampaignDefaults returns the values substituted for fields the page lacks.
func (c Config) CampaignDefaults() campaign.Defaults {
	return campaign.Defaults{Title: c.FallbackTitle, GoalAmount: c.GoalAmount, URL: c.CampaignURL}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.CampaignDefaults().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.CacheBackend {
	case CacheNone:
	case CacheDisk:
		if strings.TrimSpace(c.CacheDir) == "" {
			errs = append(errs, errors.New("cache dir is required for the disk backend"))
		}
	case CacheRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			errs = append(errs, errors.New("redis url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q (want none, disk or redis)", c.CacheBackend))
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"fetch timeout", c.FetchTimeout},
		{"fetch min interval", c.FetchMinInterval},
		{"cache ttl", c.CacheTTL},
		{"cache retention", c.CacheRetention},
		{"success max-age", c.SuccessMaxAge},
		{"failure max-age", c.FailureMaxAge},
	}
	for _, v := range durations {
		if v.d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", v.name))
		}
	}
	return errors.Join(errs...)
}
