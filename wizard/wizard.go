// Package wizard holds the state of the new-project flow: business details,
// tone examples (or an existing tone profile) and the final submission.
package wizard

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/tonematch/studio/backend"
)

const (
	MinToneExamples = 3
	MaxToneExamples = 5
	// minExampleLen is exclusive: a required example needs more than this many
	// characters after trimming.
	minExampleLen = 10
)

var (
	ErrRequiredFields = errors.New("wizard: name, target audience and short description are required")
	ErrToneExamples   = errors.New("wizard: the first 3 tone examples need more than 10 characters each")
	ErrWrongStep      = errors.New("wizard: action not allowed at this step")
	ErrSubmitted      = errors.New("wizard: project already submitted")
)

// Step is a position in the flow.
type Step string

const (
	StepCheckingTone    Step = "checking"
	StepBusinessProfile Step = "business"
	StepTone            Step = "tone"
	StepToneSummary     Step = "tone-summary"
	StepSubmit          Step = "submit"
	StepSubmitted       Step = "submitted"
)

// Business is the step-one form.
type Business struct {
	Name                   string `json:"name" form:"name"`
	TargetAudience         string `json:"targetAudience" form:"targetAudience"`
	ShortDescription       string `json:"shortDescription" form:"shortDescription"`
	Industry               string `json:"industry" form:"industry"`
	Mission                string `json:"mission" form:"mission"`
	WebsiteLink            string `json:"websiteLink" form:"websiteLink"`
	CurrentMarketing       string `json:"currentMarketing" form:"currentMarketing"`
	PlatformsCurrentlyUsed string `json:"platformsCurrentlyUsed" form:"platformsCurrentlyUsed"`
	BrandKeywords          string `json:"brandKeywords" form:"brandKeywords"`
	Voice                  string `json:"voice" form:"voice"`
}

// Validate checks the required fields.
func (b Business) Validate() error {
	for _, v := range []string{b.Name, b.TargetAudience, b.ShortDescription} {
		if strings.TrimSpace(v) == "" {
			return ErrRequiredFields
		}
	}
	return nil
}

// Draft is one user's in-progress project.
type Draft struct {
	// ID tells drafts of the same browser apart, so a submit only ever
	// consumes the draft it started from.
	ID string `json:"id"`
	Business
	ToneExamples   []string `json:"toneExamples"`
	HasToneProfile *bool    `json:"hasToneProfile,omitempty"`
	Step           Step     `json:"step"`
	// Posts are the examples sent for analysis; nil when an existing profile is reused.
	Posts []string `json:"posts,omitempty"`
}

// New returns a draft waiting for the tone-profile check.
func New() *Draft {
	return &Draft{
		ID:           uuid.NewString(),
		ToneExamples: make([]string, MinToneExamples),
		Step:         StepCheckingTone,
	}
}

// ResolveToneProfile records whether the user already has a tone profile and
// moves to the business step.
func (d *Draft) ResolveToneProfile(has bool) {
	d.HasToneProfile = &has
	if d.Step == StepCheckingTone {
		d.Step = StepBusinessProfile
	}
}

// InputSteps is how many input steps the indicator shows: two when tone
// examples are needed, one otherwise.
func (d *Draft) InputSteps() int {
	if d.HasToneProfile != nil && !*d.HasToneProfile {
		return 2
	}
	return 1
}

// Next stores the business details and advances to the tone step, or to the
// tone summary when a profile exists.
func (d *Draft) Next(b Business) error {
	if d.Step != StepBusinessProfile {
		return ErrWrongStep
	}
	if err := b.Validate(); err != nil {
		return err
	}
	d.Business = b
	if d.HasToneProfile != nil && *d.HasToneProfile {
		d.Step = StepToneSummary
	} else {
		d.Step = StepTone
	}
	return nil
}

// Back returns from the tone step to the business step, keeping all input.
func (d *Draft) Back() error {
	switch d.Step {
	case StepTone, StepToneSummary:
		d.Step = StepBusinessProfile
		return nil
	default:
		return ErrWrongStep
	}
}

// SetExamples replaces the examples with the posted values, clamped to the
// allowed count.
func (d *Draft) SetExamples(examples []string) {
	out := make([]string, 0, MaxToneExamples)
	for i, e := range examples {
		if i == MaxToneExamples {
			break
		}
		out = append(out, e)
	}
	for len(out) < MinToneExamples {
		out = append(out, "")
	}
	d.ToneExamples = out
}

// AddExample appends an empty example. It is a no-op at the maximum.
func (d *Draft) AddExample() bool {
	if len(d.ToneExamples) >= MaxToneExamples {
		return false
	}
	d.ToneExamples = append(d.ToneExamples, "")
	return true
}

// RemoveExample deletes example i. It is a no-op at the minimum or for an
// out-of-range index.
func (d *Draft) RemoveExample(i int) bool {
	if len(d.ToneExamples) <= MinToneExamples || i < 0 || i >= len(d.ToneExamples) {
		return false
	}
	d.ToneExamples = append(d.ToneExamples[:i:i], d.ToneExamples[i+1:]...)
	return true
}

// ExamplesValid reports whether the required examples are long enough.
func ExamplesValid(examples []string) bool {
	if len(examples) < MinToneExamples {
		return false
	}
	for _, e := range examples[:MinToneExamples] {
		if len(strings.TrimSpace(e)) <= minExampleLen {
			return false
		}
	}
	return true
}

// SubmitTone validates the examples and moves to submission with the
// non-empty ones.
func (d *Draft) SubmitTone() error {
	if d.Step != StepTone {
		return ErrWrongStep
	}
	if !ExamplesValid(d.ToneExamples) {
		return ErrToneExamples
	}
	posts := make([]string, 0, len(d.ToneExamples))
	for _, e := range d.ToneExamples {
		if strings.TrimSpace(e) != "" {
			posts = append(posts, e)
		}
	}
	d.Posts = posts
	d.Step = StepSubmit
	return nil
}

// UseExistingTone skips the examples and moves to submission.
func (d *Draft) UseExistingTone() error {
	if d.Step != StepToneSummary {
		return ErrWrongStep
	}
	d.Posts = nil
	d.Step = StepSubmit
	return nil
}

// Payload converts the draft into the backend's business profile. Empty
// optional strings become null; comma fields become trimmed lists.
func (d *Draft) Payload() backend.BusinessProfile {
	return backend.BusinessProfile{
		Name:                   d.Name,
		TargetAudience:         d.TargetAudience,
		ShortDesc:              d.ShortDescription,
		Industry:               optional(d.Industry),
		Mission:                optional(d.Mission),
		WebsiteLink:            optional(d.WebsiteLink),
		CurrentMarketing:       optional(d.CurrentMarketing),
		Voice:                  optional(d.Voice),
		PlatformsCurrentlyUsed: splitList(d.PlatformsCurrentlyUsed),
		BrandKeywords:          splitList(d.BrandKeywords),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// splitList returns nil for an empty field and a possibly empty list otherwise.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
