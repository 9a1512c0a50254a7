package views

import (
	"html/template"
	"strconv"
	"strings"

	"github.com/tonematch/studio/backend"
	"github.com/tonematch/studio/strategy"
	"github.com/tonematch/studio/wizard"
)

// Layout is the chrome shared by every signed-in page.
type Layout struct {
	Title  string
	Email  string
	CSRF   string
	Active string // sidebar entry: "dashboard", "projects" or "settings"
	Flash  string
}

// LoginPage is the magic-link request form.
type LoginPage struct {
	Email string
	Error string
	CSRF  string
}

// VerifyPage is the outcome of following a magic link. A non-empty RedirectTo
// sends the browser on after RedirectAfter milliseconds.
type VerifyPage struct {
	Failed        bool
	Message       string
	RedirectTo    string
	RedirectAfter int
}

// Title is the page heading.
func (p VerifyPage) Title() string {
	if p.Failed {
		return "Login Failed"
	}
	return "Authentication in Progress"
}

// Refresh is the meta refresh value, rounded up to whole seconds.
func (p VerifyPage) Refresh() string {
	secs := (p.RedirectAfter + 999) / 1000
	return strconv.Itoa(secs) + ";url=" + p.RedirectTo
}

// ProjectCard is a dashboard card.
type ProjectCard struct {
	Title       string
	MetricValue string
	MetricLabel string
	Status      string // "published" or "not published"
}

// Published reports whether the card shows the published pill.
func (c ProjectCard) Published() bool {
	return c.Status == "published"
}

type DashboardPage struct {
	Layout
	Cards []ProjectCard
}

type SettingsPage struct {
	Layout
	Tab            string // "account" or "tone"
	HasToneProfile bool
}

// Field is one input of the business details form.
type Field struct {
	Name        string
	Label       string
	Value       string
	Placeholder string
	Hint        string
	Required    bool
	Multiline   bool
	Type        string
}

// BusinessFields lists the business form inputs filled from b.
func BusinessFields(b wizard.Business) []Field {
	return []Field{
		{Name: "name", Label: "Project Name / Business Name", Value: b.Name, Placeholder: "Eg: Tonematch Marketing", Required: true, Type: "text"},
		{Name: "shortDescription", Label: "Short Description (What do you actually do?)", Value: b.ShortDescription, Required: true, Multiline: true},
		{Name: "targetAudience", Label: "Target Audience", Value: b.TargetAudience, Required: true, Multiline: true,
			Placeholder: "Describe who you are trying to reach (e.g., Small business owners, age 25-45, in the US, struggling with content consistency)."},
		{Name: "industry", Label: "Industry / Niche", Value: b.Industry, Placeholder: "Eg: Consulting, SaaS, Financial Tech, E-Commerce", Type: "text"},
		{Name: "mission", Label: "Business Mission / Value Proposition", Value: b.Mission, Multiline: true},
		{Name: "websiteLink", Label: "Website Link", Value: b.WebsiteLink, Placeholder: "https://", Type: "url"},
		{Name: "currentMarketing", Label: "Current Marketing Strategy", Value: b.CurrentMarketing, Multiline: true},
		{Name: "platformsCurrentlyUsed", Label: "Platforms Currently Used (Comma-separated)", Value: b.PlatformsCurrentlyUsed, Placeholder: "LinkedIn, Instagram", Type: "text"},
		{Name: "brandKeywords", Label: "Core Brand Keywords (Comma-separated)", Value: b.BrandKeywords, Type: "text"},
		{Name: "voice", Label: "Existing Voice Description (If known)", Value: b.Voice, Multiline: true,
			Hint: "If left blank, this will be generated after Step 2."},
	}
}

// ToneExample is one example textarea.
type ToneExample struct {
	Index    int
	Text     string
	Required bool
}

// WizardPage is the new-project flow at its current step.
type WizardPage struct {
	Layout
	Draft *wizard.Draft
	Error string
}

func (p WizardPage) IsBusiness() bool    { return p.Draft.Step == wizard.StepBusinessProfile }
func (p WizardPage) IsTone() bool        { return p.Draft.Step == wizard.StepTone }
func (p WizardPage) IsToneSummary() bool { return p.Draft.Step == wizard.StepToneSummary }

// StepNumber is the 1-based position shown by the step indicator.
func (p WizardPage) StepNumber() int {
	if p.IsBusiness() {
		return 1
	}
	return 2
}

// StepCount is how many input steps the indicator shows.
func (p WizardPage) StepCount() int { return p.Draft.InputSteps() }

func (p WizardPage) Fields() []Field { return BusinessFields(p.Draft.Business) }

func (p WizardPage) Examples() []ToneExample {
	out := make([]ToneExample, len(p.Draft.ToneExamples))
	for i, t := range p.Draft.ToneExamples {
		out[i] = ToneExample{Index: i, Text: t, Required: i < wizard.MinToneExamples}
	}
	return out
}

func (p WizardPage) CanAdd() bool    { return len(p.Draft.ToneExamples) < wizard.MaxToneExamples }
func (p WizardPage) CanRemove() bool { return len(p.Draft.ToneExamples) > wizard.MinToneExamples }
func (p WizardPage) MinExamples() int { return wizard.MinToneExamples }
func (p WizardPage) MaxExamples() int { return wizard.MaxToneExamples }

// FailurePage is a terminal error with a way out.
type FailurePage struct {
	Layout
	Heading  string
	Message  string
	LinkURL  string
	LinkText string
}

// Option is a radio or checkbox choice.
type Option struct {
	Value    string
	Label    string
	Hint     string
	Selected bool
}

// Panel states shared by the strategy and content fragments.
const (
	StateLoading = "loading"
	StateReady   = "ready"
	StateFailed  = "failed"
	StateEmpty   = "empty"
)

// StrategyPanel is the part of the strategy page that refreshes while the
// strategy is generated.
type StrategyPanel struct {
	ProjectID   string
	ProjectName string
	CSRF        string
	State       string
	Status      string
	Progress    strategy.Progress
	Body        template.HTML
	Sources     []Option
	Platforms   []Option
	Error       string
	FormURL     string
	PollURL     string
	PollEvery   int // milliseconds
	CanGenerate bool
}

// Polling reports whether the browser should keep refreshing the panel.
func (p StrategyPanel) Polling() bool { return p.State == StateLoading && p.PollURL != "" }

type StrategyPage struct {
	Layout
	Panel StrategyPanel
}

// SelectionOptions renders a selection as source radios and platform toggles.
func SelectionOptions(sel strategy.Selection) (sources, platforms []Option) {
	for _, s := range backend.StrategySources {
		sources = append(sources, Option{
			Value:    string(s),
			Label:    sourceName(s) + " Strategy",
			Hint:     s.Hint(),
			Selected: sel.Source == s,
		})
	}
	for _, p := range backend.Platforms {
		platforms = append(platforms, Option{
			Value:    string(p),
			Label:    p.Name(),
			Selected: sel.Selected(p),
		})
	}
	return sources, platforms
}

func sourceName(s backend.StrategySource) string {
	if s == backend.SourceAI {
		return "AI"
	}
	name := string(s)
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// TabView is one platform tab on the review board.
type TabView struct {
	Label  string
	Icon   string
	URL    string
	Count  int
	Active bool
}

// PostView is one post card on the review board.
type PostView struct {
	ID        string
	Icon      string
	Text      string
	Draft     string
	Tone      string
	Keywords  []string
	Editing   bool
	ActionURL string // POST target prefix; the action name is appended
}

// ContentPanel is the part of the content page that refreshes while posts
// are generated.
type ContentPanel struct {
	ProjectID string
	BatchID   string
	CSRF      string
	State     string
	Status    string
	Message   string
	PollURL   string
	PollEvery int
	Tabs      []TabView
	Posts     []PostView
	Total     int
}

func (p ContentPanel) Polling() bool { return p.State == StateLoading && p.PollURL != "" }

type ContentPage struct {
	Layout
	Panel ContentPanel
}

// ShareLink is one composer link on the share page.
type ShareLink struct {
	Label   string
	Href    string
	Preview string
}

// SharePage is the public landing page of a shared post.
type SharePage struct {
	Title       string
	Description string
	Text        string
	Tone        string
	Keywords    []string
	Platform    string
	URL         string
	ImageURL    string
	Links       []ShareLink
}

// PlatformIcon is the glyph shown on tabs and post cards. Reddit and Medium
// share the blog icon as they share the "Blog Snippets" tab label.
func PlatformIcon(p backend.Platform) string {
	switch p {
	case backend.LinkedIn:
		return "in"
	case backend.X:
		return "𝕏"
	case backend.Instagram:
		return "◎"
	case backend.Reddit, backend.Medium:
		return "✎"
	default:
		return "•"
	}
}
