package studio

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tonematch/studio/views"
)

// dashboardCards are placeholder projects until the backend can list them.
var dashboardCards = []views.ProjectCard{
	{Title: "Project X - Launch Campaign", MetricValue: "5.8K", MetricLabel: "Views", Status: "not published"},
	{Title: "Blog Content Strategy", MetricValue: "22", MetricLabel: "Articles", Status: "published"},
	{Title: "Social Media Tones", MetricValue: "1.2M", MetricLabel: "Reach", Status: "published"},
}

type healthStatus struct {
	Status           string `json:"status"`
	StrategyWatchers int    `json:"strategyWatchers"`
	ContentWatchers  int    `json:"contentWatchers"`
}

// handleHealth reports whether the view store answers and how many jobs are
// being polled.
func (a *App) handleHealth(c echo.Context) error {
	h := healthStatus{
		Status:           "ok",
		StrategyWatchers: a.strategies.Len(),
		ContentWatchers:  a.batches.Len(),
	}
	if err := a.Store.Ping(c.Request().Context()); err != nil {
		c.Logger().Errorf("health: %v", err)
		h.Status = "unhealthy"
		return c.JSON(http.StatusServiceUnavailable, h)
	}
	return c.JSON(http.StatusOK, h)
}

func handleRoot(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

// layout collects the chrome of a signed-in page. It consumes the pending
// flash, so call it before writing the response.
func (a *App) layout(c echo.Context, title, active string) views.Layout {
	return views.Layout{
		Title:  title,
		Email:  Email(c),
		CSRF:   CsrfToken(c),
		Active: active,
		Flash:  popFlash(c),
	}
}

func (a *App) handleDashboard(c echo.Context) error {
	return Render(c, a.Views.Dashboard(views.DashboardPage{
		Layout: a.layout(c, "Dashboard", "dashboard"),
		Cards:  dashboardCards,
	}))
}

func (a *App) handleSettings(c echo.Context) error {
	page := views.SettingsPage{Tab: "account"}
	if c.QueryParam("tab") == "tone" {
		page.Tab = "tone"
		has, err := a.API.HasToneProfile(c.Request().Context(), Credentials(c))
		if err != nil {
			c.Logger().Errorf("tone profile lookup: %v", err)
		}
		page.HasToneProfile = has
	}
	page.Layout = a.layout(c, "Settings", "settings")
	return Render(c, a.Views.Settings(page))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
