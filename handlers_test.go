package studio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tonematch/studio/backend"
)

const testEmail = "user@example.com"

// fakeAPI is an in-memory backend. Unset funcs succeed with fixed values.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	requestLink func(email string) error
	verify      func(token string) (backend.Credentials, error)
	me          func(creds backend.Credentials) (backend.Account, error)
	project     func(id string) (backend.Project, error)
	generate    func(req backend.GenerateRequest) (string, error)
	batch       func(id string) (backend.Batch, error)
	save        func(p backend.BusinessProfile) (backend.ID, error)
	analyze     func(posts []string) error
	hasTone     bool
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeAPI) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) RequestLink(ctx context.Context, email string) error {
	f.count("requestLink")
	if f.requestLink != nil {
		return f.requestLink(email)
	}
	return nil
}

func (f *fakeAPI) Verify(ctx context.Context, token string) (backend.Credentials, error) {
	f.count("verify")
	if f.verify != nil {
		return f.verify(token)
	}
	return "session=abc", nil
}

func (f *fakeAPI) Me(ctx context.Context, creds backend.Credentials) (backend.Account, error) {
	f.count("me")
	if f.me != nil {
		return f.me(creds)
	}
	if creds == "" {
		return backend.Account{}, backend.ErrUnauthenticated
	}
	return backend.Account{Email: testEmail}, nil
}

func (f *fakeAPI) HasToneProfile(ctx context.Context, creds backend.Credentials) (bool, error) {
	f.count("hasTone")
	return f.hasTone, nil
}

func (f *fakeAPI) Project(ctx context.Context, creds backend.Credentials, id string) (backend.Project, error) {
	f.count("project")
	if f.project != nil {
		return f.project(id)
	}
	return backend.Project{ID: backend.ID(id), Name: "Acme", StrategyStatus: backend.StatusPending}, nil
}

func (f *fakeAPI) GeneratePosts(ctx context.Context, creds backend.Credentials, req backend.GenerateRequest) (string, error) {
	f.count("generate")
	if f.generate != nil {
		return f.generate(req)
	}
	return "b-1", nil
}

func (f *fakeAPI) Batch(ctx context.Context, creds backend.Credentials, id string) (backend.Batch, error) {
	f.count("batch")
	if f.batch != nil {
		return f.batch(id)
	}
	return backend.Batch{ID: id, Status: backend.StatusPending}, nil
}

func (f *fakeAPI) SaveBusinessProfile(ctx context.Context, creds backend.Credentials, p backend.BusinessProfile) (backend.ID, error) {
	f.count("save")
	if f.save != nil {
		return f.save(p)
	}
	return "p-42", nil
}

func (f *fakeAPI) AnalyzeTone(ctx context.Context, creds backend.Credentials, posts []string) error {
	f.count("analyze")
	if f.analyze != nil {
		return f.analyze(posts)
	}
	return nil
}

func setupTestApp(t *testing.T, api *fakeAPI, opts ...func(*Config)) *App {
	t.Helper()
	cfg := Config{
		PublicURL:        "https://studio.example.com",
		DatabasePath:     filepath.Join(t.TempDir(), "studio.db"),
		SessionSecret:    "test-secret-test-secret-test-secret",
		StrategyInterval: 20 * time.Millisecond,
		ContentInterval:  20 * time.Millisecond,
		FirstFetchWait:   time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	a := New(cfg, WithAPI(api))
	if err := a.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// browser keeps cookies between requests and passes the CSRF check.
type browser struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, a *App) *browser {
	return &browser{t: t, app: a, cookies: map[string]*http.Cookie{}}
}

const csrfToken = "test-csrf-token"

func (b *browser) do(method, target string, form url.Values, fragment bool) *httptest.ResponseRecorder {
	b.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("X-CSRF-Token", csrfToken)
	req.AddCookie(&http.Cookie{Name: "_csrf", Value: csrfToken})
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	if fragment {
		req.Header.Set("HX-Request", "true")
	}

	rec := httptest.NewRecorder()
	b.app.Echo.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "_csrf" {
			continue
		}
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil, false)
}

func (b *browser) fragment(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil, true)
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return b.do(http.MethodPost, target, form, false)
}

func (b *browser) signIn() {
	b.t.Helper()
	rec := b.get("/verify-login?token=good")
	if rec.Code != http.StatusOK {
		b.t.Fatalf("sign in: status %d", rec.Code)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d\nbody: %s", rec.Code, want, rec.Body.String())
	}
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	expectStatus(t, rec, http.StatusSeeOther)
	if got := rec.Header().Get("Location"); got != want {
		t.Fatalf("Location = %q, want %q", got, want)
	}
}

func expectBody(t *testing.T, rec *httptest.ResponseRecorder, wants ...string) {
	t.Helper()
	body := rec.Body.String()
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q\nbody: %s", want, body)
		}
	}
}

// eventually polls fn until it reports true or the deadline passes.
func eventually(t *testing.T, what string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRequestLinkRedirectsToCheckEmail(t *testing.T) {
	api := &fakeAPI{}
	var got string
	api.requestLink = func(email string) error { got = email; return nil }
	b := newBrowser(t, setupTestApp(t, api))

	rec := b.post("/login", url.Values{"email": {" " + testEmail + " "}})
	expectRedirect(t, rec, "/check-email?email=user%40example.com")
	if got != testEmail {
		t.Errorf("RequestLink email = %q", got)
	}

	rec = b.get("/check-email?email=user%40example.com")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Check your inbox!", testEmail)
}

func TestRequestLinkErrors(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, setupTestApp(t, api))

	rec := b.post("/login", url.Values{"email": {""}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, emailMissingMessage)
	if api.Calls("requestLink") != 0 {
		t.Fatal("backend called without an email")
	}

	api.requestLink = func(string) error { return &backend.APIError{Status: 404, Detail: "User not found"} }
	rec = b.post("/login", url.Values{"email": {testEmail}})
	expectStatus(t, rec, http.StatusNotFound)
	expectBody(t, rec, "User not found")

	api.requestLink = func(string) error { return errors.New("connection refused") }
	rec = b.post("/login", url.Values{"email": {testEmail}})
	expectStatus(t, rec, http.StatusBadGateway)
	expectBody(t, rec, linkFailedMessage)
}

func TestRequestLinkRateLimited(t *testing.T) {
	a := setupTestApp(t, &fakeAPI{}, func(c *Config) { c.LinkRequestLimit = 2 })
	b := newBrowser(t, a)
	for i := 0; i < 2; i++ {
		expectStatus(t, b.post("/login", url.Values{"email": {testEmail}}), http.StatusSeeOther)
	}
	rec := b.post("/login", url.Values{"email": {testEmail}})
	expectStatus(t, rec, http.StatusTooManyRequests)
}

func TestVerifyMissingToken(t *testing.T) {
	b := newBrowser(t, setupTestApp(t, &fakeAPI{}))
	rec := b.get("/verify-login")
	expectStatus(t, rec, http.StatusBadRequest)
	expectBody(t, rec, tokenMissingMessage, "Login Failed")
	if strings.Contains(rec.Body.String(), "http-equiv") || strings.Contains(rec.Body.String(), `href="/login"`) {
		t.Fatal("missing token must not redirect or link anywhere")
	}
}

func TestVerifyFailureRedirectsToLogin(t *testing.T) {
	api := &fakeAPI{verify: func(string) (backend.Credentials, error) {
		return "", fmt.Errorf("%w: %w", backend.ErrUnauthenticated, &backend.APIError{Status: 401})
	}}
	b := newBrowser(t, setupTestApp(t, api))

	rec := b.get("/verify-login?token=stale")
	expectStatus(t, rec, http.StatusUnauthorized)
	expectBody(t, rec, verifyFailedMessage, `data-redirect="/login"`, `data-after="4000"`, `content="4;url=/login"`)

	expectRedirect(t, b.get("/dashboard"), "/login")
}

func TestVerifySuccessStartsSession(t *testing.T) {
	b := newBrowser(t, setupTestApp(t, &fakeAPI{}))

	rec := b.get("/verify-login?token=good")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, verifySuccessMessage, `data-redirect="/dashboard"`, `data-after="1500"`, `content="2;url=/dashboard"`)

	rec = b.get("/dashboard")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, testEmail, "Project X - Launch Campaign")
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	b := newBrowser(t, setupTestApp(t, &fakeAPI{}))

	expectRedirect(t, b.get("/dashboard"), "/login")
	expectRedirect(t, b.get("/project/new"), "/login")

	rec := b.fragment("/project/1/strategy/status")
	expectStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("HX-Redirect"); got != "/login" {
		t.Fatalf("HX-Redirect = %q", got)
	}
}

func TestExpiredBackendSessionRejectsFragments(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()
	api.me = func(backend.Credentials) (backend.Account, error) {
		return backend.Account{}, backend.ErrUnauthenticated
	}

	for _, target := range []string{"/dashboard", "/settings", "/project/new", "/project/7/strategy"} {
		rec := b.fragment(target)
		expectStatus(t, rec, http.StatusNoContent)
		if got := rec.Header().Get("HX-Redirect"); got != "/login" {
			t.Fatalf("%s: HX-Redirect = %q", target, got)
		}
	}
	rec := b.do(http.MethodPost, "/project/7/strategy", url.Values{"source": {"ai"}, "platforms": {"x"}}, true)
	expectStatus(t, rec, http.StatusNoContent)
	if api.Calls("generate") != 0 {
		t.Fatal("generate called with an expired session")
	}

	// Polled status fragments only need backend cookies in the session.
	before := api.Calls("me")
	rec = b.fragment("/project/7/strategy/status")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Generating Core Strategy...")
	if api.Calls("me") != before {
		t.Fatal("status fragment asked /auth/me")
	}
}

func TestLogout(t *testing.T) {
	b := newBrowser(t, setupTestApp(t, &fakeAPI{}))
	b.signIn()
	expectStatus(t, b.get("/dashboard"), http.StatusOK)

	expectRedirect(t, b.post("/logout", nil), "/login")
	expectRedirect(t, b.get("/dashboard"), "/login")
}

func TestSettingsToneTab(t *testing.T) {
	api := &fakeAPI{hasTone: true}
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()

	expectStatus(t, b.get("/settings"), http.StatusOK)
	if api.Calls("hasTone") != 0 {
		t.Fatal("account tab should not look up the tone profile")
	}
	expectStatus(t, b.get("/settings?tab=tone"), http.StatusOK)
	if api.Calls("hasTone") != 1 {
		t.Fatalf("hasTone calls = %d", api.Calls("hasTone"))
	}
}

func businessForm() url.Values {
	return url.Values{
		"name":             {"Acme"},
		"targetAudience":   {"Founders"},
		"shortDescription": {"Rockets for small teams"},
		"brandKeywords":    {"fast, small"},
	}
}

func toneForm(action string) url.Values {
	return url.Values{
		"examples": {
			"We just shipped our biggest launch yet.",
			"Small teams deserve big rockets too.",
			"Thanks to everyone who flew with us this year.",
		},
		"action": {action},
	}
}

func TestWizardCreatesProject(t *testing.T) {
	api := &fakeAPI{}
	var profile backend.BusinessProfile
	var posts []string
	api.save = func(p backend.BusinessProfile) (backend.ID, error) { profile = p; return "p-42", nil }
	api.analyze = func(p []string) error { posts = p; return nil }
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()

	rec := b.get("/project/new")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Step 1: Business Details")

	expectRedirect(t, b.post("/project/new/business", businessForm()), resumeWizardURL)
	rec = b.get(resumeWizardURL)
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Step 2: Tone Profile Input")

	expectRedirect(t, b.post("/project/new/tone", toneForm("submit")), "/project/p-42/strategy")
	if profile.Name != "Acme" || len(profile.BrandKeywords) != 2 {
		t.Errorf("profile = %+v", profile)
	}
	if len(posts) != 3 {
		t.Errorf("analyzed posts = %v", posts)
	}

	// The draft is gone, so a replayed submit cannot create a second project.
	expectRedirect(t, b.post("/project/new/tone", toneForm("submit")), "/project/new")
	if api.Calls("save") != 1 {
		t.Fatalf("save calls = %d, want 1", api.Calls("save"))
	}
}

func TestWizardValidation(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()
	expectStatus(t, b.get("/project/new"), http.StatusOK)

	rec := b.post("/project/new/business", url.Values{"name": {"Acme"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, requiredFieldsMessage, `value="Acme"`)

	expectRedirect(t, b.post("/project/new/business", businessForm()), resumeWizardURL)
	rec = b.post("/project/new/tone", url.Values{"examples": {"too short", "", ""}, "action": {"submit"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, toneExamplesMessage, "too short")
	if api.Calls("save") != 0 {
		t.Fatal("invalid examples must not create a project")
	}
}

func TestWizardExistingToneProfile(t *testing.T) {
	api := &fakeAPI{hasTone: true}
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()
	expectStatus(t, b.get("/project/new"), http.StatusOK)
	expectRedirect(t, b.post("/project/new/business", businessForm()), resumeWizardURL)

	expectRedirect(t, b.post("/project/new/tone", url.Values{"action": {"existing"}}), "/project/p-42/strategy")
	if api.Calls("analyze") != 0 {
		t.Fatal("existing tone profile must not be re-analyzed")
	}
}

func TestWizardToneFailureIsFlashed(t *testing.T) {
	api := &fakeAPI{analyze: func([]string) error { return errors.New("timeout") }}
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()
	expectStatus(t, b.get("/project/new"), http.StatusOK)
	expectRedirect(t, b.post("/project/new/business", businessForm()), resumeWizardURL)
	expectRedirect(t, b.post("/project/new/tone", toneForm("submit")), "/project/p-42/strategy")

	rec := b.get("/project/p-42/strategy")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Failed to analyze your tone. Please try again.")

	rec = b.get("/dashboard")
	if strings.Contains(rec.Body.String(), "Failed to analyze your tone") {
		t.Fatal("flash should be shown once")
	}
}

func TestWizardCreateFailure(t *testing.T) {
	api := &fakeAPI{save: func(backend.BusinessProfile) (backend.ID, error) { return "", errors.New("boom") }}
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()
	expectStatus(t, b.get("/project/new"), http.StatusOK)
	expectRedirect(t, b.post("/project/new/business", businessForm()), resumeWizardURL)

	rec := b.post("/project/new/tone", toneForm("submit"))
	expectStatus(t, rec, http.StatusBadGateway)
	expectBody(t, rec, "Failed to create. Please try again later.")
	if api.Calls("analyze") != 0 {
		t.Fatal("tone must not be analyzed without a project")
	}
}

// projectSource returns a Project func whose status can be changed.
type projectSource struct {
	mu sync.Mutex
	p  backend.Project
}

func (s *projectSource) set(status backend.JobStatus, strategy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.StrategyStatus = status
	s.p.SuggestedStrategy = []byte(strategy)
}

func (s *projectSource) get(id string) (backend.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.p
	p.ID = backend.ID(id)
	p.Name = "Acme"
	return p, nil
}

func TestStrategyPollsUntilCompleted(t *testing.T) {
	src := &projectSource{}
	src.set(backend.StatusInProgress, "null")
	b := newBrowser(t, setupTestApp(t, &fakeAPI{project: src.get}))
	b.signIn()

	rec := b.get("/project/7/strategy")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Acme Strategy", "Generating Core Strategy...", `data-poll="/project/7/strategy/status"`, `data-every="20"`)

	src.set(backend.StatusCompleted, `"## Pillars\n* Education"`)
	eventually(t, "completed strategy", func() bool {
		return strings.Contains(b.fragment("/project/7/strategy/status").Body.String(), "<h2>Pillars</h2>")
	})
	rec = b.fragment("/project/7/strategy/status")
	if strings.Contains(rec.Body.String(), "data-poll") {
		t.Fatal("completed panel must stop polling")
	}
	expectBody(t, rec, `value="hybrid" checked`, `name="platforms" value="linkedin"`, `action="/project/7/strategy"`)
}

func TestStrategyFailed(t *testing.T) {
	src := &projectSource{}
	src.set(backend.StatusFailed, "null")
	b := newBrowser(t, setupTestApp(t, &fakeAPI{project: src.get}))
	b.signIn()

	rec := b.get("/project/7/strategy")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Generation Failed")
}

func TestStrategyFetchErrorLeavesPage(t *testing.T) {
	api := &fakeAPI{project: func(string) (backend.Project, error) {
		return backend.Project{}, &backend.APIError{Status: 404, Detail: "Project not found"}
	}}
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()
	expectRedirect(t, b.get("/project/7/strategy"), "/dashboard")
}

func TestGenerateValidation(t *testing.T) {
	src := &projectSource{}
	src.set(backend.StatusInProgress, "null")
	api := &fakeAPI{project: src.get}
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()

	rec := b.post("/project/7/strategy", url.Values{"source": {"ai"}, "platforms": {"linkedin"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, strategyPendingMsg)

	src.set(backend.StatusCompleted, `"ok"`)
	rec = b.post("/project/7/strategy", url.Values{"source": {"ai"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, noPlatformMessage, `Generate Content Now!`)
	if !strings.Contains(rec.Body.String(), ` disabled>Generate Content Now!`) {
		t.Fatal("generate button must be disabled without a platform")
	}

	expectStatus(t, b.post("/project/7/strategy", url.Values{"source": {"robot"}}), http.StatusBadRequest)
	if api.Calls("generate") != 0 {
		t.Fatalf("generate calls = %d", api.Calls("generate"))
	}
}

func TestGeneratePlatformToggle(t *testing.T) {
	src := &projectSource{}
	src.set(backend.StatusCompleted, `"ok"`)
	api := &fakeAPI{project: src.get}
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()

	rec := b.post("/project/7/strategy", url.Values{"source": {"user"}, "platforms": {"linkedin"}, "toggle": {"reddit"}})
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, `value="user" checked`, `name="platforms" value="linkedin"`, `name="platforms" value="reddit"`)
	if strings.Contains(rec.Body.String(), " disabled>") {
		t.Fatal("generate button should be enabled with platforms selected")
	}

	rec = b.post("/project/7/strategy", url.Values{"platforms": {"linkedin"}, "toggle": {"linkedin"}})
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), `name="platforms"`) {
		t.Fatal("toggled-off platform still selected")
	}
	if !strings.Contains(rec.Body.String(), ` disabled>Generate Content Now!`) {
		t.Fatal("generate button must be disabled once the last platform is removed")
	}

	expectStatus(t, b.post("/project/7/strategy", url.Values{"toggle": {"myspace"}}), http.StatusBadRequest)
	if api.Calls("generate") != 0 {
		t.Fatalf("toggling called generate %d times", api.Calls("generate"))
	}
}

func TestGenerateRedirectsToContent(t *testing.T) {
	src := &projectSource{}
	src.set(backend.StatusCompleted, `"ok"`)
	api := &fakeAPI{project: src.get}
	var req backend.GenerateRequest
	api.generate = func(r backend.GenerateRequest) (string, error) { req = r; return "b-1", nil }
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()

	rec := b.post("/project/7/strategy", url.Values{"source": {"user"}, "platforms": {"linkedin", "x"}})
	expectRedirect(t, rec, "/project/7/content?batchId=b-1")
	if req.ProjectID != "7" || req.StrategySelected != backend.SourceUser || len(req.Platforms) != 2 {
		t.Fatalf("request = %+v", req)
	}
}

func TestGenerateBackendFailure(t *testing.T) {
	src := &projectSource{}
	src.set(backend.StatusCompleted, `"ok"`)
	api := &fakeAPI{project: src.get}
	api.generate = func(backend.GenerateRequest) (string, error) { return "", errors.New("down") }
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()

	rec := b.post("/project/7/strategy", url.Values{"source": {"ai"}, "platforms": {"medium"}})
	expectStatus(t, rec, http.StatusBadGateway)
	expectBody(t, rec, generateFailedMessage)
}

func TestContentWithoutBatch(t *testing.T) {
	b := newBrowser(t, setupTestApp(t, &fakeAPI{}))
	b.signIn()
	rec := b.get("/project/7/content")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "No Content Found")
}

func TestContentFailedBatchStopsPolling(t *testing.T) {
	api := &fakeAPI{batch: func(id string) (backend.Batch, error) {
		return backend.Batch{ID: id, Status: backend.StatusFailed}, nil
	}}
	a := setupTestApp(t, api)
	b := newBrowser(t, a)
	b.signIn()

	rec := b.get("/project/7/content?batchId=b1")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Content Generation Failed", batchFailedMessage("b1"))
	if strings.Contains(rec.Body.String(), "data-poll") {
		t.Fatal("failed batch must not poll")
	}
	time.Sleep(100 * time.Millisecond)
	if n := api.Calls("batch"); n != 1 {
		t.Fatalf("batch fetched %d times, want 1", n)
	}
	if n := a.batches.Len(); n != 0 {
		t.Fatalf("%d batch watchers left running", n)
	}
}

func TestContentPollsWhilePending(t *testing.T) {
	b := newBrowser(t, setupTestApp(t, &fakeAPI{}))
	b.signIn()
	rec := b.get("/project/7/content?batchId=b1")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "AI Content is Brewing...", "Current Status: <strong>PENDING</strong>", `data-poll="/project/7/content/status?batchId=b1"`)
}

func TestContentPendingThenCompleted(t *testing.T) {
	var mu sync.Mutex
	fetches := 0
	api := &fakeAPI{batch: func(id string) (backend.Batch, error) {
		mu.Lock()
		defer mu.Unlock()
		fetches++
		if fetches <= 3 {
			return backend.Batch{ID: id, Status: backend.StatusPending}, nil
		}
		return backend.Batch{ID: id, Status: backend.StatusCompleted, GeneratedContent: backend.GeneratedContent{
			{Label: "LinkedIn", Posts: []backend.GeneratedPost{{Text: "a", Tone: "t", Keywords: []string{}}}},
		}}, nil
	}}
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()

	expectBody(t, b.get("/project/7/content?batchId=b1"), "AI Content is Brewing...")
	eventually(t, "generated posts", func() bool {
		return strings.Contains(b.fragment("/project/7/content/status?batchId=b1").Body.String(), "Generated Content")
	})
	rec := b.fragment("/project/7/content/status?batchId=b1")
	if n := strings.Count(rec.Body.String(), `<article class="post"`); n != 1 {
		t.Fatalf("posts = %d, want 1", n)
	}
	time.Sleep(100 * time.Millisecond)
	if n := api.Calls("batch"); n != 4 {
		t.Fatalf("batch fetched %d times, want 4", n)
	}
}

func completedBatch(id string) (backend.Batch, error) {
	b := backend.Batch{ID: id, Status: backend.StatusCompleted}
	err := b.GeneratedContent.UnmarshalJSON([]byte(`{
		"LinkedIn": [{"text":"Launch day post","tone":"Confident","keywords":["launch"]},{"text":"Second LinkedIn post","tone":"Warm","keywords":[]}],
		"X (Twitter)": [{"text":"Short tweet","tone":"Punchy","keywords":[]}]
	}`))
	return b, err
}

var postIDPattern = regexp.MustCompile(`id="post-([0-9a-f-]+)"`)

func firstPostID(t *testing.T, body string) string {
	t.Helper()
	m := postIDPattern.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("no post in body: %s", body)
	}
	return m[1]
}

func TestContentBoardEditing(t *testing.T) {
	api := &fakeAPI{batch: completedBatch}
	a := setupTestApp(t, api)
	b := newBrowser(t, a)
	b.signIn()

	rec := b.get("/project/7/content?batchId=b1")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Generated Content", "Launch day post", "Second LinkedIn post", "#launch")
	if strings.Contains(rec.Body.String(), "Short tweet") {
		t.Fatal("X posts should be hidden on the LinkedIn tab")
	}
	if a.batches.Len() != 0 {
		t.Fatal("completed batch should stop its watcher")
	}
	id := firstPostID(t, rec.Body.String())

	rec = b.get("/project/7/content?batchId=b1&tab=x")
	expectBody(t, rec, "Short tweet")

	base := "/project/7/content/b1/posts/" + id + "/"
	expectStatus(t, b.post(base+"edit", nil), http.StatusSeeOther)
	rec = b.get("/project/7/content?batchId=b1&tab=linkedin")
	expectBody(t, rec, `data-draft-url="`+base+`draft"`)

	expectStatus(t, b.post(base+"draft", url.Values{"text": {"Half-written"}}), http.StatusNoContent)
	rec = b.get("/project/7/content?batchId=b1")
	expectBody(t, rec, "Half-written")

	rec = b.post(base+"save", url.Values{"text": {"Rewritten launch post"}})
	expectRedirect(t, rec, "/project/7/content?batchId=b1#post-"+id)
	rec = b.get("/project/7/content?batchId=b1")
	expectBody(t, rec, "Rewritten launch post")
	if strings.Contains(rec.Body.String(), "data-draft-url") {
		t.Fatal("editor should close after save")
	}

	// Edits are local: the batch is not fetched again.
	if n := api.Calls("batch"); n != 1 {
		t.Fatalf("batch fetched %d times, want 1", n)
	}

	expectStatus(t, b.post("/project/7/content/b1/posts/nope/edit", nil), http.StatusNotFound)
	expectStatus(t, b.post("/project/7/content/zz/posts/"+id+"/edit", nil), http.StatusNotFound)
	expectStatus(t, b.post(base+"explode", nil), http.StatusBadRequest)
}

func TestContentBoardWithReservedCharactersInIDs(t *testing.T) {
	api := &fakeAPI{batch: completedBatch}
	b := newBrowser(t, setupTestApp(t, api))
	b.signIn()

	const batchID = "q/1?x"
	rec := b.get(contentURL("7", batchID, ""))
	expectStatus(t, rec, http.StatusOK)
	id := firstPostID(t, rec.Body.String())
	base := "/project/7/content/q%2F1%3Fx/posts/" + id + "/"
	expectBody(t, rec, `action="`+base+`edit"`)

	expectStatus(t, b.post(base+"edit", nil), http.StatusSeeOther)
	rec = b.post(base+"save", url.Values{"text": {"Escaped and saved"}})
	expectRedirect(t, rec, contentURL("7", batchID, "")+"#post-"+id)
	expectBody(t, b.get(contentURL("7", batchID, "")), "Escaped and saved")
}

func TestSharePost(t *testing.T) {
	b := newBrowser(t, setupTestApp(t, &fakeAPI{batch: completedBatch}))
	b.signIn()

	rec := b.get("/project/7/content?batchId=b1")
	id := firstPostID(t, rec.Body.String())

	rec = b.post("/project/7/content/b1/posts/"+id+"/share", nil)
	expectStatus(t, rec, http.StatusSeeOther)
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/share/") || !strings.HasSuffix(loc, "/") {
		t.Fatalf("Location = %q", loc)
	}

	// Share pages are public.
	anon := newBrowser(t, b.app)
	rec = anon.get(loc)
	expectStatus(t, rec, http.StatusOK)
	pageURL := "https://studio.example.com" + loc
	expectBody(t, rec,
		"Launch day post",
		`property="og:url" content="`+pageURL+`"`,
		`content="`+pageURL+`card.jpg"`,
		"https://www.linkedin.com/sharing/share-offsite/?url=",
	)
	if first := strings.Index(rec.Body.String(), "LinkedIn</a>"); first < 0 || first > strings.Index(rec.Body.String(), "Reddit</a>") {
		t.Fatal("the post's own network should be listed first")
	}

	rec = anon.get(loc + "card.jpg")
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if data := rec.Body.Bytes(); len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatal("card is not a JPEG")
	}
}

func TestShareNotFound(t *testing.T) {
	b := newBrowser(t, setupTestApp(t, &fakeAPI{}))
	expectStatus(t, b.get("/share/missing/"), http.StatusNotFound)
	expectStatus(t, b.get("/share/missing/card.jpg"), http.StatusNotFound)
}

func TestShareAddsTrailingSlash(t *testing.T) {
	b := newBrowser(t, setupTestApp(t, &fakeAPI{}))
	rec := b.get("/share/abc")
	expectStatus(t, rec, http.StatusMovedPermanently)
	if got := rec.Header().Get("Location"); got != "/share/abc/" {
		t.Fatalf("Location = %q", got)
	}
}

func TestHealthReportsWatchers(t *testing.T) {
	src := &projectSource{}
	src.set(backend.StatusInProgress, "null")
	a := setupTestApp(t, &fakeAPI{project: src.get})
	b := newBrowser(t, a)
	b.signIn()
	expectStatus(t, b.get("/project/7/strategy"), http.StatusOK)

	rec := b.get("/health")
	expectStatus(t, rec, http.StatusOK)
	var h healthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if h.Status != "ok" || h.StrategyWatchers != 1 || h.ContentWatchers != 0 {
		t.Fatalf("health = %+v", h)
	}

	a.Store.Close()
	expectStatus(t, b.get("/health"), http.StatusServiceUnavailable)
}

func TestStaticAssets(t *testing.T) {
	b := newBrowser(t, setupTestApp(t, &fakeAPI{}))
	rec := b.get("/public/app.js")
	expectStatus(t, rec, http.StatusOK)
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Fatalf("Cache-Control = %q", cc)
	}
}
