package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// JobStatus is the lifecycle of an asynchronous backend job (strategy or post batch).
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusInProgress JobStatus = "IN_PROGRESS"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether polling should stop once s is observed.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	case StatusPending, StatusInProgress:
		return false
	default:
		return false
	}
}

// Display formats s for humans: "IN_PROGRESS" becomes "IN PROGRESS".
func (s JobStatus) Display() string {
	return strings.ReplaceAll(strings.ToUpper(string(s)), "_", " ")
}

// Platform is a social platform content can be generated for.
type Platform string

const (
	LinkedIn  Platform = "linkedin"
	X         Platform = "x"
	Instagram Platform = "instagram"
	Reddit    Platform = "reddit"
	Medium    Platform = "medium"
)

// Platforms lists every platform in tab order.
var Platforms = []Platform{LinkedIn, X, Instagram, Reddit, Medium}

// ParsePlatform maps a backend platform label ("LinkedIn", "X (Twitter)") to a Platform.
func ParsePlatform(label string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "linkedin":
		return LinkedIn, true
	case "x", "twitter", "x (twitter)":
		return X, true
	case "instagram":
		return Instagram, true
	case "reddit":
		return Reddit, true
	case "medium":
		return Medium, true
	default:
		return "", false
	}
}

// Name is the platform's own brand name, used on selection buttons.
func (p Platform) Name() string {
	switch p {
	case LinkedIn:
		return "LinkedIn"
	case X:
		return "X"
	case Instagram:
		return "Instagram"
	case Reddit:
		return "Reddit"
	case Medium:
		return "Medium"
	default:
		return string(p)
	}
}

// Label is the review-tab label. Reddit and Medium share "Blog Snippets".
func (p Platform) Label() string {
	switch p {
	case LinkedIn:
		return "LinkedIn"
	case X:
		return "X (Twitter)"
	case Instagram:
		return "Instagram"
	case Reddit, Medium:
		return "Blog Snippets"
	default:
		return string(p)
	}
}

// StrategySource selects which strategy post generation is based on.
type StrategySource string

const (
	SourceAI     StrategySource = "ai"
	SourceUser   StrategySource = "user"
	SourceHybrid StrategySource = "hybrid"
)

// StrategySources lists every source in display order.
var StrategySources = []StrategySource{SourceAI, SourceUser, SourceHybrid}

// ParseStrategySource parses s, reporting false for anything but ai, user or hybrid.
func ParseStrategySource(s string) (StrategySource, bool) {
	switch StrategySource(s) {
	case SourceAI, SourceUser, SourceHybrid:
		return StrategySource(s), true
	default:
		return "", false
	}
}

// Hint describes the source next to its name.
func (s StrategySource) Hint() string {
	switch s {
	case SourceAI:
		return "AI Generated"
	case SourceUser:
		return "Your Mission"
	case SourceHybrid:
		return "Best for Consistency"
	default:
		return ""
	}
}

// ID is an identifier the backend may encode either as a JSON string or number.
type ID string

// UnmarshalJSON accepts "abc", 123 and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("backend: id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("backend: id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Account is the authenticated user behind a session.
type Account struct {
	Email string `json:"email"`
}

// Project is the backend's view of a business profile and its strategy job.
type Project struct {
	ID                     ID              `json:"project_id"`
	Name                   string          `json:"name"`
	Mission                string          `json:"mission"`
	Industry               string          `json:"industry"`
	TargetAudience         string          `json:"target_audience"`
	ShortDesc              string          `json:"short_desc"`
	WebsiteLink            string          `json:"website_link"`
	CurrentMarketing       string          `json:"current_marketing"`
	PlatformsCurrentlyUsed []string        `json:"platforms_currently_used"`
	BrandKeywords          []string        `json:"brand_keywords"`
	Voice                  string          `json:"voice"`
	StrategyStatus         JobStatus       `json:"ai_strategy_status"`
	SuggestedStrategy      json.RawMessage `json:"ai_suggested_strategy"`
}

// HasStrategy reports whether the backend returned a non-null strategy payload.
func (p Project) HasStrategy() bool {
	s := bytes.TrimSpace(p.SuggestedStrategy)
	return len(s) > 0 && !bytes.Equal(s, []byte("null"))
}

// BusinessProfile is the payload of POST /business/save-business-profile.
// Optional fields are null when the user left them empty.
type BusinessProfile struct {
	Name                   string   `json:"name"`
	TargetAudience         string   `json:"target_audience"`
	ShortDesc              string   `json:"short_desc"`
	Industry               *string  `json:"industry"`
	Mission                *string  `json:"mission"`
	WebsiteLink            *string  `json:"website_link"`
	CurrentMarketing       *string  `json:"current_marketing"`
	Voice                  *string  `json:"voice"`
	PlatformsCurrentlyUsed []string `json:"platforms_currently_used"`
	BrandKeywords          []string `json:"brand_keywords"`
}

// GenerateRequest is the payload of POST /posts/generate-posts.
type GenerateRequest struct {
	ProjectID        ID             `json:"project_id"`
	StrategySelected StrategySource `json:"strategy_selected"`
	Platforms        []Platform     `json:"platforms"`
}

// GeneratedPost is one post as produced by the generation worker.
type GeneratedPost struct {
	Text     string   `json:"text"`
	Tone     string   `json:"tone"`
	Keywords []string `json:"keywords"`
}

// PlatformPosts groups the posts generated under one platform label.
type PlatformPosts struct {
	Label string
	Posts []GeneratedPost
}

// GeneratedContent is the label -> posts mapping of a batch, in the order the
// backend sent the labels.
type GeneratedContent []PlatformPosts

// UnmarshalJSON decodes a JSON object while keeping key order.
func (gc *GeneratedContent) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*gc = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("backend: generated_content must be an object")
	}
	var out GeneratedContent
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("backend: generated_content key must be a string")
		}
		var posts []GeneratedPost
		if err := dec.Decode(&posts); err != nil {
			return fmt.Errorf("backend: generated_content[%q]: %w", label, err)
		}
		out = append(out, PlatformPosts{Label: label, Posts: posts})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*gc = out
	return nil
}

// Batch is one content-generation job.
type Batch struct {
	ID               string           `json:"batch_id"`
	Status           JobStatus        `json:"status"`
	GeneratedContent GeneratedContent `json:"generated_content"`
}
