// Package strategy models the strategy page: the generation controls, the
// status-derived progress and the rendering of the suggested strategy.
package strategy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/tonematch/studio/backend"
	"github.com/tonematch/studio/markdown"
)

// PollInterval is how often a project is re-fetched while its strategy is pending.
const PollInterval = 7 * time.Second

var (
	ErrNoPlatform   = errors.New("strategy: select at least one platform")
	ErrNotReady     = errors.New("strategy: wait for the AI strategy to be completed")
	ErrUnknownInput = errors.New("strategy: unknown source or platform")
)

// Selection holds the generation controls.
type Selection struct {
	Source    backend.StrategySource
	Platforms []backend.Platform
}

// DefaultSelection is hybrid on LinkedIn.
func DefaultSelection() Selection {
	return Selection{Source: backend.SourceHybrid, Platforms: []backend.Platform{backend.LinkedIn}}
}

// ParseSelection reads the posted form values. Duplicate platforms are
// collapsed and an empty source means the default.
func ParseSelection(source string, platforms []string) (Selection, error) {
	s := Selection{Source: backend.SourceHybrid}
	if source != "" {
		src, ok := backend.ParseStrategySource(source)
		if !ok {
			return Selection{}, fmt.Errorf("%w: source %q", ErrUnknownInput, source)
		}
		s.Source = src
	}
	for _, raw := range platforms {
		p, ok := backend.ParsePlatform(raw)
		if !ok {
			return Selection{}, fmt.Errorf("%w: platform %q", ErrUnknownInput, raw)
		}
		if !s.Selected(p) {
			s.Platforms = append(s.Platforms, p)
		}
	}
	return s, nil
}

// Selected reports whether p is in the selection.
func (s Selection) Selected(p backend.Platform) bool {
	for _, sp := range s.Platforms {
		if sp == p {
			return true
		}
	}
	return false
}

// Toggle adds p when absent and removes it when present.
func (s *Selection) Toggle(p backend.Platform) {
	for i, sp := range s.Platforms {
		if sp == p {
			s.Platforms = append(s.Platforms[:i:i], s.Platforms[i+1:]...)
			return
		}
	}
	s.Platforms = append(s.Platforms, p)
}

// CanGenerate reports why generation is not allowed yet, or nil.
func (s Selection) CanGenerate(status backend.JobStatus) error {
	if len(s.Platforms) == 0 {
		return ErrNoPlatform
	}
	if status != backend.StatusCompleted {
		return ErrNotReady
	}
	return nil
}

// Request builds the generation payload for project.
func (s Selection) Request(project backend.Project) (backend.GenerateRequest, error) {
	if err := s.CanGenerate(project.StrategyStatus); err != nil {
		return backend.GenerateRequest{}, err
	}
	return backend.GenerateRequest{
		ProjectID:        project.ID,
		StrategySelected: s.Source,
		Platforms:        append([]backend.Platform(nil), s.Platforms...),
	}, nil
}

var stageMessages = []string{
	"Analyzing your target audience and mission...",
	"Deep dive into your tone examples for authenticity...",
	"Generating strategic pillars with the Gemini AI...",
	"Refining content suggestions for consistency...",
	"Finalizing your personalized ToneMatch Strategy...",
}

// Progress is what the strategy page shows while the job runs.
type Progress struct {
	Percent int
	Message string
}

// ProgressFor derives progress from the job status and how many times it has
// been observed in that status, so the message advances while the job waits.
func ProgressFor(status backend.JobStatus, polls int) Progress {
	if polls < 1 {
		polls = 1
	}
	switch status {
	case backend.StatusPending:
		i := min(polls-1, 1)
		return Progress{Percent: 10 + 10*i, Message: stageMessages[i]}
	case backend.StatusInProgress:
		i := min(1+polls, 3)
		return Progress{Percent: min(40+10*polls, 90), Message: stageMessages[i]}
	case backend.StatusCompleted:
		return Progress{Percent: 100, Message: stageMessages[4]}
	case backend.StatusFailed:
		return Progress{Percent: 0, Message: "The AI failed to generate a strategy."}
	default:
		return Progress{Percent: 5, Message: "Status: " + status.Display()}
	}
}

// Body renders the suggested strategy: Markdown when the payload is a JSON
// string, indented JSON otherwise. It returns "" when there is none.
func Body(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return `<div class="prose">` + markdown.Render(text) + `</div>`
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		out.Reset()
		out.Write(raw)
	}
	return `<pre class="strategy-json">` + html.EscapeString(out.String()) + `</pre>`
}
