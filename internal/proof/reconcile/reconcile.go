// Package reconcile joins verified credential attributes back onto form
// fields.
package reconcile

import "formproof/internal/proof/mapping"

// FieldVerificationState is the verification view of one mapped field.
type FieldVerificationState struct {
	FieldKey      string `json:"fieldKey"`
	AttributeName string `json:"attributeName"`
	Verified      bool   `json:"verified"`
	Value         string `json:"value,omitempty"`
}

// Reconcile produces one state per mapping, in mapping order. A field is
// verified when its attribute name is a key of verified. Required fields
// without a verified value are reported unverified like any other.
func Reconcile(mappings []mapping.VCMapping, verified map[string]string) []FieldVerificationState {
	out := make([]FieldVerificationState, 0, len(mappings))
	for _, m := range mappings {
		key := m.FieldKey
		if key == "" {
			key = m.AttributeName
		}
		state := FieldVerificationState{FieldKey: key, AttributeName: m.AttributeName}
		if v, ok := verified[m.AttributeName]; ok {
			state.Verified = true
			state.Value = v
		}
		out = append(out, state)
	}
	return out
}

// Field is the mutable state of one form input.
type Field struct {
	Value    string
	ReadOnly bool
	Verified bool
}

// FormState holds field values keyed by field key.
type FormState struct {
	Fields map[string]*Field
}

// NewFormState returns an empty form state.
func NewFormState() *FormState {
	return &FormState{Fields: make(map[string]*Field)}
}

// Apply writes verified values into the form, locking each verified field.
// It returns the number of fields it changed, so a second application of
// the same states returns zero.
func Apply(form *FormState, states []FieldVerificationState) int {
	if form == nil {
		return 0
	}
	if form.Fields == nil {
		form.Fields = make(map[string]*Field)
	}

	changed := 0
	for _, s := range states {
		if !s.Verified {
			continue
		}
		f, ok := form.Fields[s.FieldKey]
		if !ok {
			f = &Field{}
			form.Fields[s.FieldKey] = f
		}
		if f.Value == s.Value && f.ReadOnly && f.Verified {
			continue
		}
		f.Value = s.Value
		f.ReadOnly = true
		f.Verified = true
		changed++
	}
	return changed
}
