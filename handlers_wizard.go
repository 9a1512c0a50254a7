package studio

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tonematch/studio/views"
	"github.com/tonematch/studio/wizard"
)

const (
	requiredFieldsMessage = "Please fill in the Project Name, Target Audience and Short Description."
	toneExamplesMessage   = "Please provide at least 3 posts with more than 10 characters each."
	resumeWizardURL       = "/project/new?resume=1"
)

func (a *App) wizardPage(c echo.Context, d *wizard.Draft, msg string) views.WizardPage {
	return views.WizardPage{
		Layout: a.layout(c, "New Project", "projects"),
		Draft:  d,
		Error:  msg,
	}
}

// handleWizard starts a fresh draft, or shows the current one with ?resume=1.
func (a *App) handleWizard(c echo.Context) error {
	view, err := viewID(c)
	if err != nil {
		return err
	}
	if c.QueryParam("resume") != "" {
		d, err := a.Store.GetDraft(view)
		switch {
		case err == nil && d.Step != wizard.StepSubmit && d.Step != wizard.StepSubmitted:
			return Render(c, a.Views.Wizard(a.wizardPage(c, d, "")))
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		}
	}

	d := wizard.New()
	has, err := a.API.HasToneProfile(c.Request().Context(), Credentials(c))
	if err != nil {
		c.Logger().Errorf("tone profile lookup: %v", err)
		has = false
	}
	d.ResolveToneProfile(has)
	if err := a.Store.SaveDraft(view, d); err != nil {
		return err
	}
	return Render(c, a.Views.Wizard(a.wizardPage(c, d, "")))
}

func (a *App) loadDraft(c echo.Context) (string, *wizard.Draft, error) {
	view, err := viewID(c)
	if err != nil {
		return "", nil, err
	}
	d, err := a.Store.GetDraft(view)
	if err != nil {
		return "", nil, err
	}
	return view, d, nil
}

func (a *App) handleWizardBusiness(c echo.Context) error {
	view, d, err := a.loadDraft(c)
	if errors.Is(err, ErrNotFound) {
		return c.Redirect(http.StatusSeeOther, "/project/new")
	}
	if err != nil {
		return err
	}

	var b wizard.Business
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	if err := d.Next(b); err != nil {
		switch {
		case errors.Is(err, wizard.ErrRequiredFields):
			shown := *d
			shown.Business = b
			return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.Wizard(a.wizardPage(c, &shown, requiredFieldsMessage)))
		case errors.Is(err, wizard.ErrWrongStep):
			return c.Redirect(http.StatusSeeOther, resumeWizardURL)
		default:
			return err
		}
	}
	if err := a.Store.SaveDraft(view, d); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, resumeWizardURL)
}

// handleWizardTone handles every button of the tone step and the tone
// summary: add, remove:<i>, back, submit and existing.
func (a *App) handleWizardTone(c echo.Context) error {
	view, d, err := a.loadDraft(c)
	if errors.Is(err, ErrNotFound) {
		return c.Redirect(http.StatusSeeOther, "/project/new")
	}
	if err != nil {
		return err
	}
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	if d.Step == wizard.StepTone {
		d.SetExamples(form["examples"])
	}

	action := form.Get("action")
	switch {
	case action == "add":
		d.AddExample()
	case strings.HasPrefix(action, "remove:"):
		i, err := strconv.Atoi(strings.TrimPrefix(action, "remove:"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid example index")
		}
		d.RemoveExample(i)
	case action == "back":
		if err := d.Back(); err != nil {
			return c.Redirect(http.StatusSeeOther, resumeWizardURL)
		}
	case action == "submit":
		if err := d.SubmitTone(); err != nil {
			if errors.Is(err, wizard.ErrToneExamples) {
				if err := a.Store.SaveDraft(view, d); err != nil {
					return err
				}
				return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.Wizard(a.wizardPage(c, d, toneExamplesMessage)))
			}
			return c.Redirect(http.StatusSeeOther, resumeWizardURL)
		}
		return a.submitDraft(c, view, d)
	case action == "existing":
		if err := d.UseExistingTone(); err != nil {
			return c.Redirect(http.StatusSeeOther, resumeWizardURL)
		}
		return a.submitDraft(c, view, d)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	}

	if err := a.Store.SaveDraft(view, d); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, resumeWizardURL)
}

// submitDraft creates the project once per draft. The stored draft is claimed
// first, so a double click or a second tab finds it taken, and only that
// draft is deleted afterwards.
func (a *App) submitDraft(c echo.Context, view string, d *wizard.Draft) error {
	claimed, err := a.Store.ClaimDraft(view, d.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return c.Redirect(http.StatusSeeOther, "/dashboard")
	}

	res, err := wizard.Submit(c.Request().Context(), a.API, Credentials(c), d)
	if delErr := a.Store.DeleteDraft(view, d.ID); delErr != nil {
		c.Logger().Errorf("delete draft: %v", delErr)
	}
	if err != nil {
		c.Logger().Errorf("create project: %v", err)
		return RenderStatus(c, http.StatusBadGateway, a.Views.Failure(views.FailurePage{
			Layout:   a.layout(c, "Submission failed", "projects"),
			Heading:  "Submission failed",
			Message:  wizard.CreateFailedMessage,
			LinkURL:  "/dashboard",
			LinkText: "Back to dashboard",
		}))
	}
	if res.ToneErr != nil {
		c.Logger().Errorf("analyze tone for project %s: %v", res.ProjectID, res.ToneErr)
		if err := addFlash(c, res.ToneWarning); err != nil {
			return err
		}
	}
	return c.Redirect(http.StatusSeeOther, projectPath(string(res.ProjectID), "strategy"))
}
