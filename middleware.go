package studio

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tonematch/studio/backend"
)

const sessionName = "studio_session"

// Session values.
const (
	sessCreds = "creds"
	sessView  = "view"
	sessFlash = "flash"
)

// Context keys set by requireAuth.
const (
	ctxCreds = "studio.creds"
	ctxEmail = "studio.email"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/public/") ||
				strings.HasSuffix(c.Request().URL.Path, ".jpg")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'; form-action 'self'",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:  middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup: "header:X-CSRF-Token,form:_csrf",
		CookieName:  "_csrf",
		CookiePath:  "/",
		CookieSameSite: func() http.SameSite {
			return http.SameSiteLaxMode
		}(),
		CookieSecure: a.Config.CookieSecure,
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	// Share pages are the only public, crawlable URLs; keep them canonical.
	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return !strings.HasPrefix(path, "/share/") || strings.HasSuffix(path, ".jpg")
		},
	}))

	e.Use(cacheControlMiddleware)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case strings.HasPrefix(path, "/public/"):
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case strings.HasPrefix(path, "/share/"):
			c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		default:
			c.Response().Header().Set("Cache-Control", "no-store")
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 24 * 7,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// requireAuth admits a request only when the backend recognises the session.
// Every request it guards asks /auth/me, fragments included.
func (a *App) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		creds := sessionCredentials(c)
		acct, err := a.API.Me(c.Request().Context(), creds)
		if err != nil {
			if !errors.Is(err, backend.ErrUnauthenticated) {
				c.Logger().Errorf("auth check: %v", err)
			}
			return redirect(c, "/login")
		}
		c.Set(ctxCreds, creds)
		c.Set(ctxEmail, acct.Email)
		return next(c)
	}
}

// requireSession guards the polled status fragments. It only checks that
// the session carries backend cookies; the fetch each poll triggers is
// authenticated by the backend and a 401 there ends the loop at /login.
func (a *App) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		creds := sessionCredentials(c)
		if creds == "" {
			return redirect(c, "/login")
		}
		c.Set(ctxCreds, creds)
		return next(c)
	}
}

// Credentials returns the backend cookies of the signed-in user.
func Credentials(c echo.Context) backend.Credentials {
	creds, _ := c.Get(ctxCreds).(backend.Credentials)
	return creds
}

// Email returns the signed-in user's address. It is empty on fragments.
func Email(c echo.Context) string {
	email, _ := c.Get(ctxEmail).(string)
	return email
}

func sessionCredentials(c echo.Context) backend.Credentials {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return ""
	}
	creds, _ := sess.Values[sessCreds].(string)
	return backend.Credentials(creds)
}

// startSession stores the backend cookies and a fresh view id.
func startSession(c echo.Context, creds backend.Credentials) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values[sessCreds] = string(creds)
	sess.Values[sessView] = uuid.NewString()
	return sess.Save(c.Request(), c.Response())
}

func clearSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// viewID returns the id keying this browser's drafts, boards and watchers,
// minting one for sessions that predate it.
func viewID(c echo.Context) (string, error) {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return "", err
	}
	if id, ok := sess.Values[sessView].(string); ok && id != "" {
		return id, nil
	}
	id := uuid.NewString()
	sess.Values[sessView] = id
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return "", err
	}
	return id, nil
}

func addFlash(c echo.Context, msg string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values[sessFlash] = msg
	return sess.Save(c.Request(), c.Response())
}

// popFlash returns and clears the pending flash message.
func popFlash(c echo.Context) string {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return ""
	}
	msg, ok := sess.Values[sessFlash].(string)
	if !ok {
		return ""
	}
	delete(sess.Values, sessFlash)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		c.Logger().Errorf("save session: %v", err)
	}
	return msg
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
