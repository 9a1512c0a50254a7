package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", opts...)
}

func TestRequestLinkSendsEmail(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/request-link" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	})

	if err := c.RequestLink(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("RequestLink failed: %v", err)
	}
	if got["email"] != "user@example.com" {
		t.Errorf("email = %q, want %q", got["email"], "user@example.com")
	}
}

func TestRequestLinkReturnsDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail":"Unknown email"}`)
	})

	err := c.RequestLink(context.Background(), "nobody@example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := Detail(err, "fallback"); got != "Unknown email" {
		t.Errorf("Detail = %q, want %q", got, "Unknown email")
	}
}

func TestDetailFallback(t *testing.T) {
	if got := Detail(errors.New("dial tcp: refused"), "fallback"); got != "fallback" {
		t.Errorf("Detail = %q, want fallback", got)
	}
	if got := Detail(&APIError{Status: 500}, "fallback"); got != "fallback" {
		t.Errorf("Detail = %q, want fallback for empty detail", got)
	}
}

func TestVerifyCapturesCookies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok 1" {
			t.Errorf("token = %q", r.URL.Query().Get("token"))
		}
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "abc"})
		w.WriteHeader(http.StatusOK)
	})

	creds, err := c.Verify(context.Background(), "tok 1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if creds != "session_id=abc" {
		t.Errorf("creds = %q, want %q", creds, "session_id=abc")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"Token expired"}`)
	})

	_, err := c.Verify(context.Background(), "old")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if got := Detail(err, ""); got != "Token expired" {
		t.Errorf("Detail = %q, want %q", got, "Token expired")
	}
}

func TestMeForwardsCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "session_id=abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"email":"user@example.com"}`)
	})

	acct, err := c.Me(context.Background(), "session_id=abc")
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if acct.Email != "user@example.com" {
		t.Errorf("Email = %q", acct.Email)
	}

	if _, err := c.Me(context.Background(), "session_id=other"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestMeWithoutEmailIsUnauthenticated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"email":""}`)
	})

	if _, err := c.Me(context.Background(), "s=1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if _, err := c.Me(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated for empty credentials", err)
	}
}

func TestHasToneProfile(t *testing.T) {
	calls := 0
	h := func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, `{"tone_summary":"Witty, concise"}`)
	}

	off := newTestClient(t, h)
	has, err := off.HasToneProfile(context.Background(), "s=1")
	if err != nil || has {
		t.Fatalf("HasToneProfile without lookup = %v, %v; want false, nil", has, err)
	}
	if calls != 0 {
		t.Fatalf("expected no backend call without lookup, got %d", calls)
	}

	on := newTestClient(t, h, WithToneLookup(true))
	has, err = on.HasToneProfile(context.Background(), "s=1")
	if err != nil || !has {
		t.Fatalf("HasToneProfile with lookup = %v, %v; want true, nil", has, err)
	}
}

func TestProjectDecodesStatusAndStrategy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/business/42" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `{
			"project_id": 42,
			"name": "Acme",
			"platforms_currently_used": ["LinkedIn"],
			"ai_strategy_status": "COMPLETED",
			"ai_suggested_strategy": {"pillars": ["education"]}
		}`)
	})

	p, err := c.Project(context.Background(), "s=1", "42")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if p.ID != "42" {
		t.Errorf("ID = %q, want 42", p.ID)
	}
	if p.StrategyStatus != StatusCompleted {
		t.Errorf("StrategyStatus = %q", p.StrategyStatus)
	}
	if !p.HasStrategy() {
		t.Error("expected strategy payload")
	}
}

func TestProjectWithoutStrategy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"project_id":"p1","ai_strategy_status":"PENDING","ai_suggested_strategy":null}`)
	})

	p, err := c.Project(context.Background(), "s=1", "p1")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if p.HasStrategy() {
		t.Error("null strategy should not count as present")
	}
}

func TestSaveBusinessProfileSendsNulls(t *testing.T) {
	var raw map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		io.WriteString(w, `{"id":"proj-1"}`)
	})

	id, err := c.SaveBusinessProfile(context.Background(), "s=1", BusinessProfile{
		Name:           "Acme",
		TargetAudience: "Founders",
		ShortDesc:      "Tools",
		BrandKeywords:  []string{"voice"},
	})
	if err != nil {
		t.Fatalf("SaveBusinessProfile failed: %v", err)
	}
	if id != "proj-1" {
		t.Errorf("id = %q", id)
	}
	if v, ok := raw["industry"]; !ok || v != nil {
		t.Errorf("industry = %v (present %v), want null", v, ok)
	}
	if v, ok := raw["platforms_currently_used"]; !ok || v != nil {
		t.Errorf("platforms_currently_used = %v, want null", v)
	}
	if raw["short_desc"] != "Tools" {
		t.Errorf("short_desc = %v", raw["short_desc"])
	}
}

func TestGeneratePosts(t *testing.T) {
	var got GenerateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"batch_id":"b-7"}`)
	})

	batchID, err := c.GeneratePosts(context.Background(), "s=1", GenerateRequest{
		ProjectID:        "p1",
		StrategySelected: SourceHybrid,
		Platforms:        []Platform{LinkedIn, Reddit},
	})
	if err != nil {
		t.Fatalf("GeneratePosts failed: %v", err)
	}
	if batchID != "b-7" {
		t.Errorf("batchID = %q", batchID)
	}
	if got.StrategySelected != SourceHybrid || len(got.Platforms) != 2 || got.Platforms[1] != Reddit {
		t.Errorf("request = %+v", got)
	}
}

func TestBatchKeepsLabelOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"batch_id": "b1",
			"status": "COMPLETED",
			"generated_content": {
				"X": [{"text":"x1","tone":"dry","keywords":[]}],
				"LinkedIn": [{"text":"l1","tone":"warm"}, {"text":"l2","tone":"warm"}],
				"Instagram": []
			}
		}`)
	})

	b, err := c.Batch(context.Background(), "s=1", "b1")
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if b.Status != StatusCompleted {
		t.Errorf("Status = %q", b.Status)
	}
	if len(b.GeneratedContent) != 3 {
		t.Fatalf("labels = %d, want 3", len(b.GeneratedContent))
	}
	want := []string{"X", "LinkedIn", "Instagram"}
	for i, pp := range b.GeneratedContent {
		if pp.Label != want[i] {
			t.Errorf("label[%d] = %q, want %q", i, pp.Label, want[i])
		}
	}
	if len(b.GeneratedContent[1].Posts) != 2 {
		t.Errorf("LinkedIn posts = %d, want 2", len(b.GeneratedContent[1].Posts))
	}
}

func TestBatchPendingWithoutContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"batch_id":"b1","status":"PENDING","generated_content":null}`)
	})

	b, err := c.Batch(context.Background(), "s=1", "b1")
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if b.Status.Terminal() {
		t.Error("PENDING must not be terminal")
	}
	if b.GeneratedContent != nil {
		t.Errorf("GeneratedContent = %v, want nil", b.GeneratedContent)
	}
}

func TestParsePlatform(t *testing.T) {
	cases := map[string]Platform{
		"LinkedIn":    LinkedIn,
		"X (Twitter)": X,
		"twitter":     X,
		"Instagram":   Instagram,
		" reddit ":    Reddit,
		"Medium":      Medium,
	}
	for in, want := range cases {
		got, ok := ParsePlatform(in)
		if !ok || got != want {
			t.Errorf("ParsePlatform(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParsePlatform("myspace"); ok {
		t.Error("unknown platform should not parse")
	}
}

func TestJobStatus(t *testing.T) {
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("COMPLETED and FAILED are terminal")
	}
	if StatusPending.Terminal() || StatusInProgress.Terminal() || JobStatus("QUEUED").Terminal() {
		t.Error("only COMPLETED and FAILED are terminal")
	}
	if got := StatusInProgress.Display(); got != "IN PROGRESS" {
		t.Errorf("Display = %q", got)
	}
}

func TestLabelsAliasBlogPlatforms(t *testing.T) {
	if Reddit.Label() != Medium.Label() {
		t.Errorf("reddit and medium should share a label: %q vs %q", Reddit.Label(), Medium.Label())
	}
	if Reddit.Name() == Medium.Name() {
		t.Error("reddit and medium keep distinct names")
	}
}
