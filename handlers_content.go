package studio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tonematch/studio/backend"
	"github.com/tonematch/studio/poll"
	"github.com/tonematch/studio/review"
	"github.com/tonematch/studio/views"
)

const batchFetchFailedMessage = "An error occurred while fetching the generated content."

func contentKey(view, batchID string) string {
	return view + ":batch:" + batchID
}

func batchFailedMessage(batchID string) string {
	return fmt.Sprintf("There was an issue processing the content for batch %s. Please try generating the content again.", batchID)
}

func (a *App) watchBatch(creds backend.Credentials, batchID string) func(ctx context.Context) (backend.Batch, error) {
	return func(ctx context.Context) (backend.Batch, error) {
		return a.API.Batch(ctx, creds, batchID)
	}
}

func (a *App) handleContent(c echo.Context) error {
	panel, err := a.contentPanel(c, false)
	if err != nil {
		return err
	}
	return Render(c, a.Views.Content(views.ContentPage{
		Layout: a.layout(c, "Generated Content", "projects"),
		Panel:  panel,
	}))
}

func (a *App) handleContentStatus(c echo.Context) error {
	panel, err := a.contentPanel(c, true)
	if err != nil {
		return err
	}
	return Render(c, a.Views.ContentStatus(panel))
}

// contentPanel resolves the panel for ?batchId. A board already stored for
// the batch wins; otherwise the batch is watched until it completes. Pages
// restart the watcher, fragments only read it.
func (a *App) contentPanel(c echo.Context, fragment bool) (views.ContentPanel, error) {
	id := pathParam(c, "id")
	batchID := c.QueryParam("batchId")
	panel := views.ContentPanel{ProjectID: id, BatchID: batchID, CSRF: CsrfToken(c)}
	if batchID == "" {
		panel.State = views.StateEmpty
		return panel, nil
	}
	view, err := viewID(c)
	if err != nil {
		return panel, err
	}

	b, err := a.Store.GetBoard(view, batchID)
	switch {
	case err == nil:
		if tab, ok := backend.ParsePlatform(c.QueryParam("tab")); ok && tab != b.Active {
			b.Select(tab)
			if err := a.Store.SaveBoard(view, id, b); err != nil {
				return panel, err
			}
		}
		return a.boardPanel(panel, b), nil
	case !errors.Is(err, ErrNotFound):
		return panel, err
	}

	key := contentKey(view, batchID)
	var st poll.State[backend.Batch]
	if fragment {
		var ok bool
		st, ok = a.batches.Snapshot(key)
		if !ok {
			a.batches.Ensure(key, a.watchBatch(Credentials(c), batchID))
			st, _ = awaitFirst(a.batches, c, key, a.Config.FirstFetchWait)
		}
	} else {
		a.batches.Start(key, a.watchBatch(Credentials(c), batchID))
		st, _ = awaitFirst(a.batches, c, key, a.Config.FirstFetchWait)
	}
	return a.batchPanel(c, panel, view, key, st)
}

func (a *App) batchPanel(c echo.Context, panel views.ContentPanel, view, key string, st poll.State[backend.Batch]) (views.ContentPanel, error) {
	if st.Done && st.Err != nil {
		a.batches.Stop(key)
		c.Logger().Errorf("fetch batch %s: %v", panel.BatchID, st.Err)
		panel.State = views.StateFailed
		panel.Message = batchFetchFailedMessage
		return panel, nil
	}

	panel.State = views.StateLoading
	panel.Status = "LOADING"
	panel.PollURL = projectPath(panel.ProjectID, "content", "status") + "?batchId=" + url.QueryEscape(panel.BatchID)
	panel.PollEvery = int(a.Config.ContentInterval / time.Millisecond)
	if !st.Ready() {
		return panel, nil
	}

	switch st.Value.Status {
	case backend.StatusCompleted:
		b, err := a.Store.InitBoard(view, panel.ProjectID, review.NewBoard(panel.BatchID, review.Flatten(st.Value.GeneratedContent)))
		if err != nil {
			return panel, err
		}
		a.batches.Stop(key)
		return a.boardPanel(panel, b), nil
	case backend.StatusFailed:
		a.batches.Stop(key)
		panel.State = views.StateFailed
		panel.PollURL = ""
		panel.Message = batchFailedMessage(panel.BatchID)
		return panel, nil
	default:
		panel.Status = st.Value.Status.Display()
		return panel, nil
	}
}

func (a *App) boardPanel(panel views.ContentPanel, b *review.Board) views.ContentPanel {
	panel.State = views.StateReady
	panel.Status = string(backend.StatusCompleted)
	panel.PollURL = ""
	panel.Total = len(b.Posts)
	for _, tab := range b.Tabs() {
		panel.Tabs = append(panel.Tabs, views.TabView{
			Label:  tab.Label,
			Icon:   views.PlatformIcon(tab.Platform),
			URL:    contentURL(panel.ProjectID, panel.BatchID, string(tab.Platform)),
			Count:  tab.Count,
			Active: tab.Active,
		})
	}
	for _, p := range b.Visible() {
		panel.Posts = append(panel.Posts, views.PostView{
			ID:        p.ID,
			Icon:      views.PlatformIcon(p.Platform),
			Text:      p.Text,
			Draft:     p.Draft(),
			Tone:      p.Tone,
			Keywords:  p.Keywords,
			Editing:   b.Editing == p.ID,
			ActionURL: projectPath(panel.ProjectID, "content", panel.BatchID, "posts", p.ID) + "/",
		})
	}
	return panel
}

// handlePostAction applies one board action to a post: edit, save, cancel,
// draft (autosave of unsaved text) or share.
func (a *App) handlePostAction(c echo.Context) error {
	id, batchID, postID := pathParam(c, "id"), pathParam(c, "batch"), pathParam(c, "post")
	view, err := viewID(c)
	if err != nil {
		return err
	}
	b, err := a.Store.GetBoard(view, batchID)
	if errors.Is(err, ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}

	action := c.Param("action")
	switch action {
	case "edit":
		err = b.Edit(postID)
	case "save":
		err = b.Save(postID, c.FormValue("text"))
	case "cancel":
		err = b.Cancel(postID)
	case "draft":
		err = b.Change(postID, c.FormValue("text"))
	case "share":
		p, ok := b.Post(postID)
		if !ok {
			return echo.ErrNotFound
		}
		sh, err := a.Store.CreateShare(p)
		if err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/share/"+sh.ID+"/")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	}
	if errors.Is(err, review.ErrPostNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := a.Store.SaveBoard(view, id, b); err != nil {
		return err
	}
	if action == "draft" {
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, contentURL(id, batchID, "")+"#post-"+postID)
}
