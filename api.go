package studio

import (
	"context"

	"github.com/tonematch/studio/backend"
	"github.com/tonematch/studio/wizard"
)

// API is the part of the ToneMatch backend the server calls. *backend.Client
// implements it.
type API interface {
	RequestLink(ctx context.Context, email string) error
	Verify(ctx context.Context, token string) (backend.Credentials, error)
	Me(ctx context.Context, creds backend.Credentials) (backend.Account, error)
	HasToneProfile(ctx context.Context, creds backend.Credentials) (bool, error)
	Project(ctx context.Context, creds backend.Credentials, id string) (backend.Project, error)
	GeneratePosts(ctx context.Context, creds backend.Credentials, req backend.GenerateRequest) (string, error)
	Batch(ctx context.Context, creds backend.Credentials, batchID string) (backend.Batch, error)
	wizard.Creator
}

var _ API = (*backend.Client)(nil)
