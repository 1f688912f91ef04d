package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/discrapp/discr-site/internal/campaign"
	"github.com/discrapp/discr-site/internal/extract"
	"github.com/discrapp/discr-site/internal/fetch"
)

const (
	DefaultSuccessMaxAge = 600 * time.Second
	DefaultFailureMaxAge = 60 * time.Second
)

// Outcome says which path produced a Result.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeFallback Outcome = "fallback"
	OutcomeError    Outcome = "error"
)

// Config holds the campaign constants and the downstream cache windows.
type Config struct {
	Defaults campaign.Defaults
	// SuccessMaxAge applies to parsed and fallback snapshots.
	SuccessMaxAge time.Duration
	// FailureMaxAge applies when the fetch failed, so outages heal quickly.
	FailureMaxAge time.Duration
}

// Fetcher retrieves the campaign page.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
}

// Result is a snapshot plus how long downstream caches may keep it.
type Result struct {
	Snapshot campaign.Snapshot
	MaxAge   time.Duration
	Outcome  Outcome
}

// CacheControl renders the downstream caching directive for r.
func (r Result) CacheControl() string {
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate", int(r.MaxAge/time.Second))
}

// Service builds campaign snapshots on demand. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	cfg       Config
	fetcher   Fetcher
	extractor extract.Extractor
}

// NewService validates cfg and fills unset cache windows with the defaults.
func NewService(cfg Config, fetcher Fetcher, extractor extract.Extractor) (*Service, error) {
	if err := cfg.Defaults.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, errors.New("funding: fetcher is required")
	}
	if extractor == nil {
		extractor = extract.NewParser(cfg.Defaults)
	}
	if cfg.SuccessMaxAge <= 0 {
		cfg.SuccessMaxAge = DefaultSuccessMaxAge
	}
	if cfg.FailureMaxAge <= 0 {
		cfg.FailureMaxAge = DefaultFailureMaxAge
	}
	return &Service{cfg: cfg, fetcher: fetcher, extractor: extractor}, nil
}

// Snapshot fetches and parses the campaign page. It never fails: a fetch
// failure yields the error-flagged default record with the short cache
// window, an unparseable page yields the fallback-flagged one.
func (s *Service) Snapshot(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("url", s.cfg.Defaults.URL).Msg("campaign snapshot panicked")
			res = s.failed()
		}
	}()

	url := s.cfg.Defaults.URL
	resp, err := s.fetcher.Get(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("error fetching campaign page")
		return s.failed()
	}

	snap, ok := s.extractor.Extract(string(resp.Body))
	if !ok {
		log.Warn().Str("url", url).Int("bytes", len(resp.Body)).Msg("campaign page not parseable; serving fallback")
		return Result{Snapshot: s.cfg.Defaults.FallbackSnapshot(), MaxAge: s.cfg.SuccessMaxAge, Outcome: OutcomeFallback}
	}
	// The url is constant whatever the extractor put there.
	snap.URL = url
	snap.Fallback, snap.Error = false, false

	log.Debug().
		Float64("raised", snap.AmountRaised).
		Float64("goal", snap.GoalAmount).
		Float64("donations", snap.DonationCount).
		Bool("cached", resp.FromCache).
		Msg("campaign snapshot")
	return Result{Snapshot: snap, MaxAge: s.cfg.SuccessMaxAge, Outcome: OutcomeOK}
}

func (s *Service) failed() Result {
	return Result{Snapshot: s.cfg.Defaults.ErrorSnapshot(), MaxAge: s.cfg.FailureMaxAge, Outcome: OutcomeError}
}
