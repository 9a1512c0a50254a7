package studio

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tonematch/studio/backend"
	"github.com/tonematch/studio/poll"
	"github.com/tonematch/studio/strategy"
	"github.com/tonematch/studio/views"
)

const (
	noPlatformMessage     = "Please select at least one platform"
	strategyPendingMsg    = "Wait for the AI strategy to be completed"
	generateFailedMessage = "Failed to start post generation. Please check the API connection."
)

func strategyKey(view, projectID string) string {
	return view + ":strategy:" + projectID
}

// watchProject returns a fetch func bound to the caller's credentials. It
// runs outside the request, so it must not capture the request context.
func (a *App) watchProject(creds backend.Credentials, id string) func(ctx context.Context) (backend.Project, error) {
	return func(ctx context.Context) (backend.Project, error) {
		return a.API.Project(ctx, creds, id)
	}
}

// awaitFirst waits up to wait for the first observation under key so a page
// can render real state instead of a spinner.
func awaitFirst[T any](r *poll.Registry[T], c echo.Context, key string, wait time.Duration) (poll.State[T], bool) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), wait)
	defer cancel()
	return r.Await(ctx, key)
}

func (a *App) handleStrategy(c echo.Context) error {
	id := pathParam(c, "id")
	view, err := viewID(c)
	if err != nil {
		return err
	}
	key := strategyKey(view, id)
	a.strategies.Start(key, a.watchProject(Credentials(c), id))
	st, _ := awaitFirst(a.strategies, c, key, a.Config.FirstFetchWait)
	if st.Done && st.Err != nil {
		return a.strategyFetchFailed(c, key, st.Err)
	}

	panel := a.strategyPanel(c, id, st, strategy.DefaultSelection(), "")
	return Render(c, a.Views.Strategy(views.StrategyPage{
		Layout: a.layout(c, "Strategy", "projects"),
		Panel:  panel,
	}))
}

func (a *App) handleStrategyStatus(c echo.Context) error {
	id := pathParam(c, "id")
	view, err := viewID(c)
	if err != nil {
		return err
	}
	key := strategyKey(view, id)
	st, ok := a.strategies.Snapshot(key)
	if !ok {
		a.strategies.Ensure(key, a.watchProject(Credentials(c), id))
		st, _ = awaitFirst(a.strategies, c, key, a.Config.FirstFetchWait)
	}
	if st.Done && st.Err != nil {
		return a.strategyFetchFailed(c, key, st.Err)
	}
	return Render(c, a.Views.StrategyStatus(a.strategyPanel(c, id, st, strategy.DefaultSelection(), "")))
}

// strategyFetchFailed leaves the page when the project cannot be read: to the
// login page when the session is gone, to the dashboard otherwise.
func (a *App) strategyFetchFailed(c echo.Context, key string, err error) error {
	a.strategies.Stop(key)
	c.Logger().Errorf("fetch project: %v", err)
	if errors.Is(err, backend.ErrUnauthenticated) {
		return redirect(c, "/login")
	}
	return redirect(c, "/dashboard")
}

func (a *App) strategyPanel(c echo.Context, id string, st poll.State[backend.Project], sel strategy.Selection, msg string) views.StrategyPanel {
	panel := views.StrategyPanel{
		ProjectID: id,
		CSRF:      CsrfToken(c),
		State:     views.StateLoading,
		Status:    "LOADING",
		Error:     msg,
		FormURL:   projectPath(id, "strategy"),
		PollURL:   projectPath(id, "strategy", "status"),
		PollEvery: int(a.Config.StrategyInterval / time.Millisecond),
	}
	if !st.Ready() {
		panel.Progress = strategy.ProgressFor(backend.StatusPending, 1)
		return panel
	}

	p := st.Value
	panel.ProjectName = p.Name
	panel.Status = p.StrategyStatus.Display()
	panel.Progress = strategy.ProgressFor(p.StrategyStatus, st.Fetches)
	switch p.StrategyStatus {
	case backend.StatusCompleted:
		panel.State = views.StateReady
		panel.Body = template.HTML(strategy.Body(p.SuggestedStrategy))
		panel.Sources, panel.Platforms = views.SelectionOptions(sel)
		panel.CanGenerate = sel.CanGenerate(p.StrategyStatus) == nil
	case backend.StatusFailed:
		panel.State = views.StateFailed
	}
	return panel
}

// handleGenerate starts post generation for the chosen platforms and moves to
// the content page of the new batch. A toggle button instead flips one
// platform and re-renders the form.
func (a *App) handleGenerate(c echo.Context) error {
	id := pathParam(c, "id")
	view, err := viewID(c)
	if err != nil {
		return err
	}
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	sel, err := strategy.ParseSelection(form.Get("source"), form["platforms"])
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	key := strategyKey(view, id)
	st, ok := a.strategies.Snapshot(key)
	if !ok || !st.Ready() {
		p, err := a.API.Project(c.Request().Context(), Credentials(c), id)
		if err != nil {
			return a.strategyFetchFailed(c, key, err)
		}
		st = poll.State[backend.Project]{Value: p, Fetches: 1}
	}

	if raw := form.Get("toggle"); raw != "" {
		p, ok := backend.ParsePlatform(raw)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown platform")
		}
		sel.Toggle(p)
		return a.renderStrategy(c, http.StatusOK, id, st, sel, "")
	}

	req, err := sel.Request(st.Value)
	if err != nil {
		msg := strategyPendingMsg
		if errors.Is(err, strategy.ErrNoPlatform) {
			msg = noPlatformMessage
		}
		return a.renderStrategy(c, http.StatusUnprocessableEntity, id, st, sel, msg)
	}

	batchID, err := a.API.GeneratePosts(c.Request().Context(), Credentials(c), req)
	if err != nil {
		c.Logger().Errorf("generate posts for project %s: %v", id, err)
		if errors.Is(err, backend.ErrUnauthenticated) {
			return redirect(c, "/login")
		}
		return a.renderStrategy(c, http.StatusBadGateway, id, st, sel, generateFailedMessage)
	}
	a.strategies.Stop(key)
	return c.Redirect(http.StatusSeeOther, contentURL(id, batchID, ""))
}

func (a *App) renderStrategy(c echo.Context, code int, id string, st poll.State[backend.Project], sel strategy.Selection, msg string) error {
	return RenderStatus(c, code, a.Views.Strategy(views.StrategyPage{
		Layout: a.layout(c, "Strategy", "projects"),
		Panel:  a.strategyPanel(c, id, st, sel, msg),
	}))
}
