package service

import (
	"context"

	formmodels "formproof/internal/forms/models"
	"formproof/internal/proof/events"
	"formproof/internal/proof/models"
	"formproof/internal/proof/payload"
	"formproof/internal/proof/verifier"
)

// FormStore resolves form definitions.
// Error Contract: Find methods return forms/store.ErrNotFound when the form
// does not exist.
type FormStore interface {
	FindByID(ctx context.Context, id int64) (*formmodels.Form, error)
	FindBySlug(ctx context.Context, slug string) (*formmodels.Form, error)
}

// Verifier is the external proof provider.
type Verifier interface {
	DefineProof(ctx context.Context, p payload.DefinePayload) (*verifier.DefineResult, error)
	RequestProofURL(ctx context.Context, req verifier.URLRequest) (*verifier.URLResult, error)
	ProofStatus(ctx context.Context, ref string) (*verifier.StatusResult, error)
	FallbackURL(defineID string) string
}

// SessionStore persists proof sessions.
// Error Contract: FindByID returns proof/store.ErrNotFound for unknown ids.
type SessionStore interface {
	Save(ctx context.Context, session *models.ProofSession) error
	FindByID(ctx context.Context, id string) (*models.ProofSession, error)
}

// Publisher delivers lifecycle events. Failures are logged, never returned
// to API callers.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}
