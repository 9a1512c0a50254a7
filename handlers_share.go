package studio

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tonematch/studio/share"
	"github.com/tonematch/studio/views"
)

func (a *App) loadShare(c echo.Context) (Share, error) {
	sh, err := a.Store.GetShare(c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return Share{}, echo.ErrNotFound
	}
	return sh, err
}

// handleShare renders the public page of a shared post. Its OpenGraph tags
// give the composer links a preview.
func (a *App) handleShare(c echo.Context) error {
	sh, err := a.loadShare(c)
	if err != nil {
		return err
	}
	pageURL := BuildURL(a.Config.PublicURL, "share", sh.ID)
	payload := share.Payload{Text: sh.Text, URL: pageURL}

	targets := share.Targets
	if first, ok := share.ForPlatform(sh.Platform); ok {
		targets = []share.Target{first}
		for _, t := range share.Targets {
			if t != first {
				targets = append(targets, t)
			}
		}
	}
	links := make([]views.ShareLink, 0, len(targets))
	for _, t := range targets {
		links = append(links, views.ShareLink{
			Label:   t.Label(),
			Href:    share.Link(t, payload, pageURL),
			Preview: share.Preview(payload),
		})
	}

	return Render(c, a.Views.Share(views.SharePage{
		Title:       sh.Platform.Name() + " post",
		Description: share.Preview(payload),
		Text:        sh.Text,
		Tone:        sh.Tone,
		Keywords:    sh.Keywords,
		Platform:    sh.Platform.Name(),
		URL:         pageURL,
		ImageURL:    pageURL + "card.jpg",
		Links:       links,
	}))
}

func (a *App) handleShareCard(c echo.Context) error {
	sh, err := a.loadShare(c)
	if err != nil {
		return err
	}
	data, err := renderShareCard(sh)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
