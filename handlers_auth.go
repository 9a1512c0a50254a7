package studio

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tonematch/studio/backend"
	"github.com/tonematch/studio/views"
)

const (
	linkFailedMessage    = "Failed to send link. Please check your email and try again"
	emailMissingMessage  = "Please enter your email address."
	tooManyLinksMessage  = "Too many login links requested. Please wait a minute and try again."
	tokenMissingMessage  = "Error: Link token is missing"
	verifyFailedMessage  = "Link expired or invalid. Please request a new link."
	verifySuccessMessage = "Login successful! Redirecting to dashboard..."

	// Delays before the verify page moves on, in milliseconds.
	verifySuccessDelay = 1500
	verifyFailureDelay = 4000
)

func (a *App) handleLogin(c echo.Context) error {
	return Render(c, a.Views.Login(views.LoginPage{CSRF: CsrfToken(c)}))
}

func (a *App) handleRequestLink(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	page := views.LoginPage{Email: email, CSRF: CsrfToken(c)}
	if email == "" {
		page.Error = emailMissingMessage
		return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.Login(page))
	}
	if !a.linkLimiter.Allow(c.RealIP()) {
		page.Error = tooManyLinksMessage
		return RenderStatus(c, http.StatusTooManyRequests, a.Views.Login(page))
	}
	if err := a.API.RequestLink(c.Request().Context(), email); err != nil {
		c.Logger().Errorf("request link: %v", err)
		page.Error = backend.Detail(err, linkFailedMessage)
		return RenderStatus(c, failureStatus(err), a.Views.Login(page))
	}
	return c.Redirect(http.StatusSeeOther, "/check-email?email="+url.QueryEscape(email))
}

func (a *App) handleCheckEmail(c echo.Context) error {
	return Render(c, a.Views.CheckEmail(c.QueryParam("email")))
}

// handleVerify exchanges the magic-link token for backend session cookies.
// The follow-up redirect lives in the rendered document, so navigating away
// cancels it.
func (a *App) handleVerify(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return RenderStatus(c, http.StatusBadRequest, a.Views.Verify(views.VerifyPage{
			Failed:  true,
			Message: tokenMissingMessage,
		}))
	}
	creds, err := a.API.Verify(c.Request().Context(), token)
	if err != nil {
		c.Logger().Errorf("verify link: %v", err)
		return RenderStatus(c, failureStatus(err), a.Views.Verify(views.VerifyPage{
			Failed:        true,
			Message:       backend.Detail(err, verifyFailedMessage),
			RedirectTo:    "/login",
			RedirectAfter: verifyFailureDelay,
		}))
	}
	if err := startSession(c, creds); err != nil {
		return err
	}
	return Render(c, a.Views.Verify(views.VerifyPage{
		Message:       verifySuccessMessage,
		RedirectTo:    "/dashboard",
		RedirectAfter: verifySuccessDelay,
	}))
}

// handleLogout forgets the backend cookies locally. The backend has no
// logout call; its session simply expires.
func handleLogout(c echo.Context) error {
	if err := clearSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/login")
}

// failureStatus maps a backend error to the status of the page reporting it:
// the backend's own 4xx, or 502 for anything else.
func failureStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	if errors.Is(err, backend.ErrUnauthenticated) {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}
