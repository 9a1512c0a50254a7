package wizard

import (
	"context"
	"fmt"

	"github.com/tonematch/studio/backend"
)

const (
	CreateFailedMessage = "Failed to create. Please try again later."
	ToneFailedMessage   = "Failed to analyze your tone. Please try again."
)

// Creator is the part of the backend the submission needs.
type Creator interface {
	SaveBusinessProfile(ctx context.Context, creds backend.Credentials, profile backend.BusinessProfile) (backend.ID, error)
	AnalyzeTone(ctx context.Context, creds backend.Credentials, posts []string) error
}

// Result is the outcome of a successful submission.
type Result struct {
	ProjectID backend.ID
	// ToneWarning is set when the project was created but tone analysis failed.
	ToneWarning string
	ToneErr     error
}

// Submit creates the project and, when examples were collected, sends them for
// tone analysis. A tone failure does not fail the submission.
func Submit(ctx context.Context, api Creator, creds backend.Credentials, d *Draft) (Result, error) {
	switch d.Step {
	case StepSubmit:
	case StepSubmitted:
		return Result{}, ErrSubmitted
	default:
		return Result{}, ErrWrongStep
	}
	// Marked before any call; a repeated submit is rejected.
	d.Step = StepSubmitted

	id, err := api.SaveBusinessProfile(ctx, creds, d.Payload())
	if err != nil {
		return Result{}, fmt.Errorf("wizard: save business profile: %w", err)
	}
	res := Result{ProjectID: id}
	if len(d.Posts) > 0 {
		if err := api.AnalyzeTone(ctx, creds, d.Posts); err != nil {
			res.ToneWarning = backend.Detail(err, ToneFailedMessage)
			res.ToneErr = err
		}
	}
	return res, nil
}
