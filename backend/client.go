// Package backend is a typed client for the ToneMatch HTTP API: magic-link
// authentication, business profiles, tone analysis and post generation.
//
// The API authenticates with cookies. Client never stores them; callers pass
// the Credentials captured at verification time into every call.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

// Credentials is the Cookie header value that identifies a backend session.
type Credentials string

// credentialsFrom joins the cookies set by a response into a Cookie header value.
func credentialsFrom(cookies []*http.Cookie) Credentials {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" || c.MaxAge < 0 {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return Credentials(strings.Join(parts, "; "))
}

// Client calls the backend API rooted at a single origin.
type Client struct {
	baseURL    string
	httpClient *http.Client
	toneLookup bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToneLookup makes HasToneProfile ask GET /tone/me instead of assuming no
// profile exists.
func WithToneLookup(enabled bool) Option {
	return func(c *Client) {
		c.toneLookup = enabled
	}
}

// New creates a Client for the backend at baseURL (e.g. "https://api.example.com").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestLink asks the backend to email a magic link to email.
func (c *Client) RequestLink(ctx context.Context, email string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/request-link", "", map[string]string{"email": email}, nil)
	return err
}

// Verify exchanges a magic-link token for a session and returns the session
// cookies the backend set.
func (c *Client) Verify(ctx context.Context, token string) (Credentials, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/verify?token="+url.QueryEscape(token), "", nil, nil)
	if err != nil {
		return "", err
	}
	creds := credentialsFrom(resp.Cookies())
	if creds == "" {
		return "", fmt.Errorf("backend: verify: %w", ErrUnauthenticated)
	}
	return creds, nil
}

// Me returns the account behind creds. A 200 without an email is treated as
// unauthenticated.
func (c *Client) Me(ctx context.Context, creds Credentials) (Account, error) {
	if creds == "" {
		return Account{}, ErrUnauthenticated
	}
	var acct Account
	if _, err := c.do(ctx, http.MethodGet, "/auth/me", creds, nil, &acct); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(acct.Email) == "" {
		return Account{}, ErrUnauthenticated
	}
	return acct, nil
}

// HasToneProfile reports whether the user already has a reusable tone profile.
// Without tone lookup enabled it always reports false.
func (c *Client) HasToneProfile(ctx context.Context, creds Credentials) (bool, error) {
	if !c.toneLookup {
		return false, nil
	}
	var out struct {
		ToneSummary json.RawMessage `json:"tone_summary"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/tone/me", creds, nil, &out); err != nil {
		return false, err
	}
	s := strings.TrimSpace(string(out.ToneSummary))
	return s != "" && s != "null" && s != `""`, nil
}

// Project fetches a project and its strategy status.
func (c *Client) Project(ctx context.Context, creds Credentials, id string) (Project, error) {
	var p Project
	_, err := c.do(ctx, http.MethodGet, "/business/"+url.PathEscape(id), creds, nil, &p)
	return p, err
}

// SaveBusinessProfile creates a project and returns its id.
func (c *Client) SaveBusinessProfile(ctx context.Context, creds Credentials, profile BusinessProfile) (ID, error) {
	var out struct {
		ID ID `json:"id"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/business/save-business-profile", creds, profile, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("backend: save business profile: response has no id")
	}
	return out.ID, nil
}

// AnalyzeTone submits example posts for tone analysis.
func (c *Client) AnalyzeTone(ctx context.Context, creds Credentials, posts []string) error {
	_, err := c.do(ctx, http.MethodPost, "/tone/analyze-tone", creds, map[string][]string{"posts": posts}, nil)
	return err
}

// GeneratePosts starts a generation batch and returns its id.
func (c *Client) GeneratePosts(ctx context.Context, creds Credentials, req GenerateRequest) (string, error) {
	var out struct {
		BatchID ID `json:"batch_id"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/posts/generate-posts", creds, req, &out); err != nil {
		return "", err
	}
	if out.BatchID == "" {
		return "", fmt.Errorf("backend: generate posts: response has no batch_id")
	}
	return string(out.BatchID), nil
}

// Batch fetches the current state of a generation batch.
func (c *Client) Batch(ctx context.Context, creds Credentials, batchID string) (Batch, error) {
	var b Batch
	_, err := c.do(ctx, http.MethodGet, "/posts/get-posts/"+url.PathEscape(batchID), creds, nil, &b)
	return b, err
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil. Non-2xx responses become *APIError; 401 and 403 also wrap
// ErrUnauthenticated.
func (c *Client) do(ctx context.Context, method, path string, creds Credentials, in, out any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("backend: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds != "" {
		req.Header.Set("Cookie", string(creds))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode, Detail: parseDetail(raw)}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return resp, fmt.Errorf("%w: %w", ErrUnauthenticated, apiErr)
		}
		return resp, apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("backend: decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}
