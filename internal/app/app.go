package app

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/discrapp/discr-site/internal/cache"
	"github.com/discrapp/discr-site/internal/extract"
	"github.com/discrapp/discr-site/internal/fetch"
	"github.com/discrapp/discr-site/internal/funding"
	"github.com/discrapp/discr-site/internal/server"
)

// App wires configuration to the snapshot service and its HTTP surface.
type App struct {
	cfg     Config
	closers []func() error
	service *funding.Service
	handler http.Handler
}

// New validates cfg and builds every component. The cache backend is opened
// here so a bad Redis URL fails startup rather than the first request.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a := &App{cfg: cfg}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	client := &fetch.Client{
		HTTPClient:        newUpstreamHTTPClient(),
		UserAgent:         cfg.UserAgent,
		PerRequestTimeout: cfg.FetchTimeout,
		TTL:               cfg.CacheTTL,
	}
	if store != nil {
		client.Cache = store
	}
	if cfg.FetchMinInterval > 0 {
		client.Limiter = rate.NewLimiter(rate.Every(cfg.FetchMinInterval), 1)
	}

	defaults := cfg.CampaignDefaults()
	svc, err := funding.NewService(funding.Config{
		Defaults:      defaults,
		SuccessMaxAge: cfg.SuccessMaxAge,
		FailureMaxAge: cfg.FailureMaxAge,
	}, client, extract.NewParser(defaults))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init funding: %w", err)
	}
	a.service = svc
	a.handler = server.NewRouter(server.NewHandler(svc), server.RouterOptions{
		Logger:        log.Logger,
		CanonicalHost: cfg.CanonicalHost,
	})

	log.Debug().
		Str("campaign", cfg.CampaignURL).
		Str("cache", cfg.CacheBackend).
		Dur("ttl", cfg.CacheTTL).
		Msg("app initialized")
	return a, nil
}

func (a *App) openStore(ctx context.Context) (cache.Store, error) {
	switch a.cfg.CacheBackend {
	case CacheDisk:
		if a.cfg.CacheClear {
			if err := cache.ClearDir(a.cfg.CacheDir); err != nil {
				return nil, fmt.Errorf("clear cache: %w", err)
			}
			log.Info().Str("dir", a.cfg.CacheDir).Msg("cache cleared")
		}
		if a.cfg.CacheRetention > 0 {
			// Best-effort maintenance; a failed purge must not block startup
			if n, err := cache.PurgeHTTPCacheByAge(a.cfg.CacheDir, a.cfg.CacheRetention); err != nil {
				log.Warn().Err(err).Str("dir", a.cfg.CacheDir).Msg("cache purge failed")
			} else if n > 0 {
				log.Info().Int("removed", n).Str("dir", a.cfg.CacheDir).Msg("purged stale cache entries")
			}
		}
		return &cache.HTTPCache{Dir: a.cfg.CacheDir, StrictPerms: a.cfg.CacheStrictPerms}, nil
	case CacheRedis:
		client, err := cache.Connect(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		rc := cache.NewRedisCache(client, a.cfg.CacheRetention)
		a.closers = append(a.closers, rc.Close)
		if a.cfg.CacheClear {
			n, err := rc.Clear(ctx)
			if err != nil {
				_ = a.Close()
				return nil, fmt.Errorf("clear cache: %w", err)
			}
			log.Info().Int("removed", n).Msg("cache cleared")
		}
		return rc, nil
	default:
		return nil, nil
	}
}

// Handler returns the site's HTTP routes.
func (a *App) Handler() http.Handler { return a.handler }

// Snapshot produces one campaign snapshot, exactly as the endpoint would.
func (a *App) Snapshot(ctx context.Context) funding.Result {
	return a.service.Snapshot(ctx)
}

// Serve runs the HTTP server on the configured address until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	log.Info().Str("version", BuildVersion).Str("commit", BuildCommit).Msg("starting discr-site")
	return server.New(a.cfg.Addr, a.handler).Run(ctx)
}

// ServeListener is Serve on an already-bound listener.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	return server.New(ln.Addr().String(), a.handler).Serve(ctx, ln)
}

// Close releases the cache backend.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
