// Package studio is the ToneMatch web front end: an Echo server that renders
// every page itself and relays the user's session to the ToneMatch API.
//
// Long-running backend jobs (strategies and post batches) are watched by
// server-side pollers; pages read their latest snapshot through small polled
// fragments.
package studio

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/tonematch/studio/backend"
	"github.com/tonematch/studio/poll"
	"github.com/tonematch/studio/views"
)

// ViewFuncs holds the components the server renders. DefaultViews returns
// the built-in set; callers may replace any of them with WithViews.
type ViewFuncs struct {
	Login          func(p views.LoginPage) templ.Component
	CheckEmail     func(email string) templ.Component
	Verify         func(p views.VerifyPage) templ.Component
	Dashboard      func(p views.DashboardPage) templ.Component
	Settings       func(p views.SettingsPage) templ.Component
	Wizard         func(p views.WizardPage) templ.Component
	Failure        func(p views.FailurePage) templ.Component
	Strategy       func(p views.StrategyPage) templ.Component
	StrategyStatus func(p views.StrategyPanel) templ.Component
	Content        func(p views.ContentPage) templ.Component
	ContentStatus  func(p views.ContentPanel) templ.Component
	Share          func(p views.SharePage) templ.Component
	NotFound       func() templ.Component
	ServerError    func() templ.Component
}

// DefaultViews returns the views package components.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Login:          views.Login,
		CheckEmail:     views.CheckEmail,
		Verify:         views.Verify,
		Dashboard:      views.Dashboard,
		Settings:       views.Settings,
		Wizard:         views.Wizard,
		Failure:        views.Failure,
		Strategy:       views.Strategy,
		StrategyStatus: views.StrategyStatus,
		Content:        views.Content,
		ContentStatus:  views.ContentStatus,
		Share:          views.Share,
		NotFound:       views.NotFound,
		ServerError:    views.ServerError,
	}
}

// App is the central studio application. It wires together the backend
// client, the view-state store, the job watchers, handlers and middleware.
type App struct {
	Config Config
	Echo   *echo.Echo
	Store  *ViewStore
	API    API
	Views  ViewFuncs

	strategies  *poll.Registry[backend.Project]
	batches     *poll.Registry[backend.Batch]
	linkLimiter *LinkLimiter
	stopCleanup func()
	initialized bool
}

// New creates a studio App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  DefaultViews(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Init validates the configuration, opens the store, starts the watchers and
// registers middleware and routes. Start calls it; tests call it directly and
// drive a.Echo with httptest.
func (a *App) Init() error {
	if a.initialized {
		return nil
	}
	if a.API == nil {
		if a.Config.BackendURL == "" {
			return fmt.Errorf("studio: BackendURL is required")
		}
		a.API = backend.New(a.Config.BackendURL, backend.WithToneLookup(a.Config.ToneLookup))
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("studio: SessionSecret is required")
	}

	store, err := NewViewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("studio: init store: %w", err)
	}
	a.Store = store
	a.stopCleanup = store.StartCleanupScheduler(a.Config.StateRetention, time.Hour, func(err error) {
		a.Echo.Logger.Errorf("studio: prune view state: %v", err)
	})

	a.strategies = poll.NewRegistry(a.Config.StrategyInterval, a.Config.WatchLease,
		func(p backend.Project) bool { return p.StrategyStatus.Terminal() })
	a.batches = poll.NewRegistry(a.Config.ContentInterval, a.Config.WatchLease,
		func(b backend.Batch) bool { return b.Status.Terminal() })

	a.linkLimiter = NewLinkLimiter(a.Config.LinkRequestLimit, a.Config.LinkRequestWindow)

	a.setupMiddleware()
	a.setupRoutes()
	a.initialized = true
	return nil
}

// Start initializes the app and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	a.Echo.Logger.Infof("studio: serving on %s, backend %s", a.Config.Addr, a.Config.BackendURL)
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	assets, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET("/public/*", echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(assets)))))

	// Public routes
	e.GET("/", handleRoot)
	e.GET("/health", a.handleHealth)
	e.GET("/login", a.handleLogin)
	e.POST("/login", a.handleRequestLink)
	e.GET("/check-email", a.handleCheckEmail)
	e.GET("/verify-login", a.handleVerify)
	e.POST("/logout", handleLogout)
	e.GET("/share/:id/", a.handleShare)
	e.GET("/share/:id/card.jpg", a.handleShareCard)

	// Signed-in routes
	// Polled fragments only need a session; /auth/me runs on everything else.
	e.GET("/project/:id/strategy/status", a.handleStrategyStatus, a.requireSession)
	e.GET("/project/:id/content/status", a.handleContentStatus, a.requireSession)

	g := e.Group("", a.requireAuth)
	g.GET("/dashboard", a.handleDashboard)
	g.GET("/settings", a.handleSettings)

	g.GET("/project/new", a.handleWizard)
	g.POST("/project/new/business", a.handleWizardBusiness)
	g.POST("/project/new/tone", a.handleWizardTone)

	g.GET("/project/:id/strategy", a.handleStrategy)
	g.POST("/project/:id/strategy", a.handleGenerate)

	g.GET("/project/:id/content", a.handleContent)
	g.POST("/project/:id/content/:batch/posts/:post/:action", a.handlePostAction)
}

// Close stops the watchers and closes the store. Call this when the app is
// shutting down.
func (a *App) Close() error {
	if a.strategies != nil {
		a.strategies.Close()
	}
	if a.batches != nil {
		a.batches.Close()
	}
	if a.linkLimiter != nil {
		a.linkLimiter.Stop()
	}
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
