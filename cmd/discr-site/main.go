package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/discrapp/discr-site/internal/app"
)

// options holds raw flag values. Only flags the user actually set are
// applied, so env and file values survive unset flags.
type options struct {
	configPath string
	envFiles   []string

	addr          string
	campaignURL   string
	fallbackTitle string
	goal          float64
	userAgent     string
	fetchTimeout  time.Duration
	minInterval   time.Duration
	cacheBackend  string
	cacheDir      string
	cacheStrict   bool
	cacheClear    bool
	redisURL      string
	cacheTTL      time.Duration
	retention     time.Duration
	successMaxAge time.Duration
	failureMaxAge time.Duration
	canonicalHost bool
	verbose       bool
}

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("run failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "discr-site",
		Short:         "Serve the Discr campaign funding snapshot",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", app.BuildVersion, app.BuildCommit, app.BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to YAML or JSON config file")
	pf.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "Dotenv files loaded before reading DISCR_* variables; later files win")
	pf.StringVar(&opts.campaignURL, "campaign.url", "", "Campaign page URL")
	pf.StringVar(&opts.fallbackTitle, "campaign.fallbackTitle", "", "Title used when the page has none")
	pf.Float64Var(&opts.goal, "campaign.goal", 0, "Goal amount used when the page has none")
	pf.StringVar(&opts.userAgent, "fetch.userAgent", "", "User-Agent sent to the campaign host")
	pf.DurationVar(&opts.fetchTimeout, "fetch.timeout", 0, "Per-request upstream timeout")
	pf.DurationVar(&opts.minInterval, "fetch.minInterval", 0, "Minimum spacing between upstream requests (0 disables)")
	pf.StringVar(&opts.cacheBackend, "cache.backend", "", "Upstream cache backend: none, disk or redis")
	pf.StringVar(&opts.cacheDir, "cache.dir", "", "Disk cache directory")
	pf.BoolVar(&opts.cacheStrict, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	pf.BoolVar(&opts.cacheClear, "cache.clear", false, "Empty the upstream cache before starting")
	pf.StringVar(&opts.redisURL, "cache.redisURL", "", "Redis URL or host:port for the redis backend")
	pf.DurationVar(&opts.cacheTTL, "cache.ttl", 0, "How long a cached page is served without revalidation")
	pf.DurationVar(&opts.retention, "cache.retention", 0, "How long cache entries are kept before purge")
	pf.DurationVar(&opts.successMaxAge, "response.successMaxAge", 0, "Shared-cache lifetime for parsed snapshots")
	pf.DurationVar(&opts.failureMaxAge, "response.failureMaxAge", 0, "Shared-cache lifetime for failed fetches")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			defer a.Close()
			return a.Serve(cmd.Context())
		},
	}
	serve.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default :8080)")
	serve.Flags().BoolVar(&opts.canonicalHost, "redirect.canonicalHost", true, "Redirect www.* hosts to the apex domain")

	snapshot := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch the campaign once and print the snapshot as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			defer a.Close()

			res := a.Snapshot(cmd.Context())
			log.Debug().Str("outcome", string(res.Outcome)).Str("cacheControl", res.CacheControl()).Msg("snapshot built")
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res.Snapshot)
		},
	}

	root.AddCommand(serve, snapshot)
	return root
}

// loadConfig resolves configuration: flags > env > file > defaults.
func loadConfig(cmd *cobra.Command, opts *options) (app.Config, error) {
	cfg := app.DefaultConfig()

	if err := app.LoadEnvFiles(opts.envFiles...); err != nil {
		return cfg, err
	}
	if strings.TrimSpace(opts.configPath) != "" {
		fc, err := app.LoadConfigFile(opts.configPath)
		if err != nil {
			return cfg, fmt.Errorf("config file: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	if err := app.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyFlags(cmd, opts, &cfg)

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, opts *options, cfg *app.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("addr") {
		cfg.Addr = opts.addr
	}
	if changed("campaign.url") {
		cfg.CampaignURL = opts.campaignURL
	}
	if changed("campaign.fallbackTitle") {
		cfg.FallbackTitle = opts.fallbackTitle
	}
	if changed("campaign.goal") {
		cfg.GoalAmount = opts.goal
	}
	if changed("fetch.userAgent") {
		cfg.UserAgent = opts.userAgent
	}
	if changed("fetch.timeout") {
		cfg.FetchTimeout = opts.fetchTimeout
	}
	if changed("fetch.minInterval") {
		cfg.FetchMinInterval = opts.minInterval
	}
	if changed("cache.backend") {
		cfg.CacheBackend = opts.cacheBackend
	}
	if changed("cache.dir") {
		cfg.CacheDir = opts.cacheDir
	}
	if changed("cache.strictPerms") {
		cfg.CacheStrictPerms = opts.cacheStrict
	}
	if changed("cache.clear") {
		cfg.CacheClear = opts.cacheClear
	}
	if changed("cache.redisURL") {
		cfg.RedisURL = opts.redisURL
	}
	if changed("cache.ttl") {
		cfg.CacheTTL = opts.cacheTTL
	}
	if changed("cache.retention") {
		cfg.CacheRetention = opts.retention
	}
	if changed("response.successMaxAge") {
		cfg.SuccessMaxAge = opts.successMaxAge
	}
	if changed("response.failureMaxAge") {
		cfg.FailureMaxAge = opts.failureMaxAge
	}
	if changed("redirect.canonicalHost") {
		cfg.CanonicalHost = opts.canonicalHost
	}
	if changed("verbose") {
		cfg.Verbose = opts.verbose
	}
}
