// Package views renders the studio pages. Each page is an html/template
// definition exposed as a templ.Component so the server can swap any of them.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/a-h/templ"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"join":  strings.Join,
	"add":   func(a, b int) int { return a + b },
	"steps": steps,
}).ParseFS(templateFS, "templates/*.html"))

// steps returns 1..n for the step indicator.
func steps(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i + 1
	}
	return s
}

func component(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

func Login(p LoginPage) templ.Component { return component("login", p) }

// CheckEmail is the waiting screen after a link was sent to email.
func CheckEmail(email string) templ.Component { return component("check-email", email) }

func Verify(p VerifyPage) templ.Component { return component("verify", p) }

func Dashboard(p DashboardPage) templ.Component { return component("dashboard", p) }

func Settings(p SettingsPage) templ.Component { return component("settings", p) }

func Wizard(p WizardPage) templ.Component { return component("wizard", p) }

func Failure(p FailurePage) templ.Component { return component("failure", p) }

func Strategy(p StrategyPage) templ.Component { return component("strategy", p) }

// StrategyStatus is the polled fragment of the strategy page.
func StrategyStatus(p StrategyPanel) templ.Component { return component("strategy-panel", p) }

func Content(p ContentPage) templ.Component { return component("content", p) }

// ContentStatus is the polled fragment of the content page.
func ContentStatus(p ContentPanel) templ.Component { return component("content-panel", p) }

func Share(p SharePage) templ.Component { return component("share", p) }

func NotFound() templ.Component { return component("not-found", nil) }

func ServerError() templ.Component { return component("server-error", nil) }
