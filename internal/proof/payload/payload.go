// Package payload builds the provider-agnostic "define proof" request from a
// form's credential mappings.
package payload

import (
	"context"
	"fmt"
	"log/slog"

	"formproof/internal/proof/mapping"
	strutil "formproof/pkg/platform/strings"
)

// CredentialFormat is the only proof credential format requested.
const CredentialFormat = "ANONCREDS"

// Restriction pins a requested attribute group to one credential definition.
type Restriction struct {
	SchemaID     int64 `json:"schemaId" yaml:"schemaId"`
	CredentialID int64 `json:"credentialId" yaml:"credentialId"`

	// Fixture marks development values that must never reach a production
	// verifier unnoticed.
	Fixture bool `json:"-" yaml:"-"`
}

// AttributeGroup is one requestedAttributes entry.
type AttributeGroup struct {
	Attributes   []string      `json:"attributes"`
	Restrictions []Restriction `json:"restrictions"`
}

// DefinePayload is the body of the verifier's define-proof call.
type DefinePayload struct {
	ProofName           string           `json:"proofName"`
	ProofCredFormat     string           `json:"proofCredFormat"`
	RequestedAttributes []AttributeGroup `json:"requestedAttributes"`
	RequestedPredicates []any            `json:"requestedPredicates"`
}

// Warning records a credential type that was dropped or resolved from
// fixture data.
type Warning struct {
	CredentialType string
	Message        string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.CredentialType, w.Message)
}

// Builder turns mappings into a DefinePayload using a credential registry.
type Builder struct {
	registry Registry
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for dropped-type and fixture warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a Builder resolving credential types through registry.
func NewBuilder(registry Registry, opts ...Option) *Builder {
	b := &Builder{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build groups mappings by credential type in first-seen order, resolves
// each group through the registry and emits one attribute group per
// resolved type. Unresolvable types are excluded and reported as warnings.
func (b *Builder) Build(ctx context.Context, formName string, mappings []mapping.VCMapping) (DefinePayload, []Warning) {
	p := DefinePayload{
		ProofName:           formName + " proof",
		ProofCredFormat:     CredentialFormat,
		RequestedAttributes: []AttributeGroup{},
		RequestedPredicates: []any{},
	}
	var warnings []Warning

	for _, g := range groupByType(mappings) {
		restriction, ok := b.registry.Resolve(g.credentialType)
		if !ok {
			w := Warning{CredentialType: g.credentialType, Message: "credential type not registered; group dropped"}
			warnings = append(warnings, w)
			b.logger.WarnContext(ctx, "dropping unresolvable credential type",
				"credential_type", g.credentialType,
				"attributes", g.attributes,
				"proof_name", p.ProofName,
			)
			continue
		}
		if restriction.Fixture {
			warnings = append(warnings, Warning{CredentialType: g.credentialType, Message: "resolved from fixture registry"})
			b.logger.WarnContext(ctx, "using fixture credential restriction",
				"credential_type", g.credentialType,
				"schema_id", restriction.SchemaID,
				"credential_id", restriction.CredentialID,
			)
		}
		p.RequestedAttributes = append(p.RequestedAttributes, AttributeGroup{
			Attributes:   g.attributes,
			Restrictions: []Restriction{restriction},
		})
	}
	return p, warnings
}

type typeGroup struct {
	credentialType string
	attributes     []string
}

// groupByType preserves first-seen order of both types and attributes and
// drops duplicate attribute names within a type.
func groupByType(mappings []mapping.VCMapping) []*typeGroup {
	var groups []*typeGroup
	byType := make(map[string]*typeGroup)

	for _, m := range mappings {
		if m.CredentialType == "" || m.AttributeName == "" {
			continue
		}
		g, ok := byType[m.CredentialType]
		if !ok {
			g = &typeGroup{credentialType: m.CredentialType}
			byType[m.CredentialType] = g
			groups = append(groups, g)
		}
		g.attributes = append(g.attributes, m.AttributeName)
	}
	for _, g := range groups {
		g.attributes = strutil.DedupeAndTrim(g.attributes)
	}
	return groups
}
