package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to flags and env.
type FileConfig struct {
	Addr string `yaml:"addr" json:"addr"`

	Campaign struct {
		URL           string  `yaml:"url" json:"url"`
		FallbackTitle string  `yaml:"fallbackTitle" json:"fallbackTitle"`
		Goal          float64 `yaml:"goal" json:"goal"`
	} `yaml:"campaign" json:"campaign"`

	Fetch struct {
		UserAgent   string        `yaml:"userAgent" json:"userAgent"`
		Timeout     time.Duration `yaml:"timeout" json:"timeout"`
		MinInterval time.Duration `yaml:"minInterval" json:"minInterval"`
	} `yaml:"fetch" json:"fetch"`

	Cache struct {
		Backend     string        `yaml:"backend" json:"backend"`
		Dir         string        `yaml:"dir" json:"dir"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		Clear       bool          `yaml:"clear" json:"clear"`
		RedisURL    string        `yaml:"redisURL" json:"redisURL"`
		TTL         time.Duration `yaml:"ttl" json:"ttl"`
		Retention   time.Duration `yaml:"retention" json:"retention"`
	} `yaml:"cache" json:"cache"`

	Response struct {
		SuccessMaxAge time.Duration `yaml:"successMaxAge" json:"successMaxAge"`
		FailureMaxAge time.Duration `yaml:"failureMaxAge" json:"failureMaxAge"`
	} `yaml:"response" json:"response"`

	Redirect struct {
		CanonicalHost *bool `yaml:"canonicalHost" json:"canonicalHost"`
	} `yaml:"redirect" json:"redirect"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value the file sets onto cfg. It runs before
// env and flags, which take precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	setString(&cfg.Addr, fc.Addr)
	setString(&cfg.CampaignURL, fc.Campaign.URL)
	setString(&cfg.FallbackTitle, fc.Campaign.FallbackTitle)
	if fc.Campaign.Goal > 0 {
		cfg.GoalAmount = fc.Campaign.Goal
	}

	setString(&cfg.UserAgent, fc.Fetch.UserAgent)
	setDuration(&cfg.FetchTimeout, fc.Fetch.Timeout)
	setDuration(&cfg.FetchMinInterval, fc.Fetch.MinInterval)

	setString(&cfg.CacheBackend, fc.Cache.Backend)
	setString(&cfg.CacheDir, fc.Cache.Dir)
	setString(&cfg.RedisURL, fc.Cache.RedisURL)
	if fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if fc.Cache.Clear {
		cfg.CacheClear = true
	}
	setDuration(&cfg.CacheTTL, fc.Cache.TTL)
	setDuration(&cfg.CacheRetention, fc.Cache.Retention)

	setDuration(&cfg.SuccessMaxAge, fc.Response.SuccessMaxAge)
	setDuration(&cfg.FailureMaxAge, fc.Response.FailureMaxAge)

	if fc.Redirect.CanonicalHost != nil {
		cfg.CanonicalHost = *fc.Redirect.CanonicalHost
	}
	if fc.Verbose {
		cfg.Verbose = true
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
