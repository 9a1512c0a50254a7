package studio

import (
	"time"

	"github.com/tonematch/studio/review"
	"github.com/tonematch/studio/strategy"
)

// Config holds all configuration for a studio server.
type Config struct {
	Addr       string // Listen address (default ":3000")
	PublicURL  string // Canonical URL used in share pages (default "http://localhost:3000")
	BackendURL string // Required: origin of the ToneMatch API

	DatabasePath string // SQLite view-state path (default "data/studio.db")

	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	// ToneLookup asks the backend for an existing tone profile when a wizard
	// starts. Off, every user goes through the tone examples step.
	ToneLookup bool

	StrategyInterval time.Duration // Strategy poll interval (default 7s)
	ContentInterval  time.Duration // Batch poll interval (default 5s)
	WatchLease       time.Duration // Unread watchers are cancelled after this (default 1min)
	FirstFetchWait   time.Duration // How long a page waits for a watcher's first result (default 2s)
	StateRetention   time.Duration // Drafts and boards untouched this long are pruned (default 7 days)

	LinkRequestLimit  int           // Magic-link requests per IP per window (default 5)
	LinkRequestWindow time.Duration // (default 1min)
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://localhost:3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/studio.db"
	}
	if c.StrategyInterval == 0 {
		c.StrategyInterval = strategy.PollInterval
	}
	if c.ContentInterval == 0 {
		c.ContentInterval = review.PollInterval
	}
	if c.WatchLease == 0 {
		c.WatchLease = time.Minute
	}
	if c.FirstFetchWait == 0 {
		c.FirstFetchWait = 2 * time.Second
	}
	if c.StateRetention == 0 {
		c.StateRetention = 7 * 24 * time.Hour
	}
	if c.LinkRequestLimit == 0 {
		c.LinkRequestLimit = 5
	}
	if c.LinkRequestWindow == 0 {
		c.LinkRequestWindow = time.Minute
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithAPI replaces the HTTP backend client, e.g. with a fake in tests.
func WithAPI(api API) Option {
	return func(a *App) {
		a.API = api
	}
}

// WithViews replaces the default page components.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}
