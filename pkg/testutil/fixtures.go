package testutil

import (
	"time"

	"github.com/google/uuid"

	formmodels "formproof/internal/forms/models"
	"formproof/internal/proof/mapping"
	proofmodels "formproof/internal/proof/models"
)

// FixedTime is the reference instant used by proof fixtures.
var FixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// FormBuilder provides a fluent interface for building test forms.
type FormBuilder struct {
	form       *formmodels.Form
	components []any
}

// NewFormBuilder creates a FormBuilder for an unmapped form.
func NewFormBuilder() *FormBuilder {
	return &FormBuilder{
		form: &formmodels.Form{
			ID:   1,
			Slug: "intake",
			Name: "Intake",
		},
		components: []any{},
	}
}

func (b *FormBuilder) WithID(id int64) *FormBuilder {
	b.form.ID = id
	return b
}

func (b *FormBuilder) WithSlug(slug string) *FormBuilder {
	b.form.Slug = slug
	return b
}

func (b *FormBuilder) WithName(name string) *FormBuilder {
	b.form.Name = name
	return b
}

// WithField adds a plain field without a credential mapping.
func (b *FormBuilder) WithField(key string) *FormBuilder {
	b.components = append(b.components, map[string]any{"key": key, "type": "textfield"})
	return b
}

// WithVCField adds a field using the vcConfig declaration.
func (b *FormBuilder) WithVCField(key, credentialType, attribute, mode string) *FormBuilder {
	b.components = append(b.components, map[string]any{
		"key":  key,
		"type": "textfield",
		"vcConfig": map[string]any{
			"credentialType": credentialType,
			"attributeName":  attribute,
			"mode":           mode,
		},
	})
	return b
}

// WithLegacyVCField adds a field using the older properties.vcMapping
// declaration.
func (b *FormBuilder) WithLegacyVCField(key, credentialType, attribute, mode string) *FormBuilder {
	b.components = append(b.components, map[string]any{
		"key":  key,
		"type": "textfield",
		"properties": map[string]any{
			"vcMapping": map[string]any{
				"credentialType": credentialType,
				"attributeName":  attribute,
			},
			"credentialMode": mode,
		},
	})
	return b
}

func (b *FormBuilder) Build() *formmodels.Form {
	f := *b.form
	f.Definition = map[string]any{
		"formSchema": map[string]any{"components": append([]any(nil), b.components...)},
	}
	return &f
}

// SessionBuilder provides a fluent interface for building proof sessions.
type SessionBuilder struct {
	session *proofmodels.ProofSession
}

// NewSessionBuilder creates a ready, form-id addressed session created at
// FixedTime with a ten minute lifetime.
func NewSessionBuilder() *SessionBuilder {
	formID := int64(1)
	return &SessionBuilder{
		session: &proofmodels.ProofSession{
			ID:                   uuid.NewString(),
			FormID:               &formID,
			FormName:             "Intake",
			DefineID:             "42",
			CorrelationID:        uuid.NewString(),
			InvitationURL:        "https://verifier.example/s/abc",
			State:                proofmodels.StateReady,
			RequiresVerification: true,
			CreatedAt:            FixedTime,
			UpdatedAt:            FixedTime,
			ExpiresAt:            FixedTime.Add(10 * time.Minute),
		},
	}
}

func (b *SessionBuilder) WithID(id string) *SessionBuilder {
	b.session.ID = id
	return b
}

func (b *SessionBuilder) WithState(state proofmodels.State) *SessionBuilder {
	b.session.State = state
	return b
}

func (b *SessionBuilder) WithDefineID(defineID string) *SessionBuilder {
	b.session.DefineID = defineID
	return b
}

func (b *SessionBuilder) WithProviderRef(ref string) *SessionBuilder {
	b.session.ProviderRef = ref
	return b
}

func (b *SessionBuilder) WithDegraded() *SessionBuilder {
	b.session.Degraded = true
	return b
}

func (b *SessionBuilder) WithoutVerification() *SessionBuilder {
	b.session.RequiresVerification = false
	b.session.DefineID = ""
	b.session.CorrelationID = ""
	b.session.InvitationURL = ""
	return b
}

func (b *SessionBuilder) WithMappings(mappings ...mapping.VCMapping) *SessionBuilder {
	b.session.Mappings = mappings
	return b
}

func (b *SessionBuilder) ExpiresAt(t time.Time) *SessionBuilder {
	b.session.ExpiresAt = t
	return b
}

func (b *SessionBuilder) Build() *proofmodels.ProofSession {
	return b.session.Clone()
}
