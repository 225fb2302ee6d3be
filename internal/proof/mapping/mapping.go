// Package mapping extracts verifiable-credential field mappings from a form
// definition.
//
// A form definition is the loosely-typed JSON document produced by the form
// builder. Components may declare a credential source in one of two shapes:
//
//	modern: component.vcConfig = {credentialType, attributeName, mode}
//	legacy: component.properties.vcMapping = {credentialType, attributeName}
//	        component.properties.credentialMode = "required" | "optional"
//
// Extraction is pure: the input is never mutated and malformed input yields
// an empty result instead of an error.
package mapping

import (
	"encoding/json"
	"strings"
)

// Mode says whether a verified credential is required for a field.
type Mode string

const (
	ModeRequired Mode = "required"
	ModeOptional Mode = "optional"
)

// ParseMode normalises a declared mode; anything unrecognised is optional.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeRequired {
		return ModeRequired
	}
	return ModeOptional
}

// VCMapping ties one form field to one credential attribute.
type VCMapping struct {
	FieldKey       string `json:"fieldKey,omitempty"`
	CredentialType string `json:"credentialType"`
	AttributeName  string `json:"attributeName"`
	Mode           Mode   `json:"mode"`
}

// Required reports whether the field must be satisfied by a credential.
func (m VCMapping) Required() bool {
	return m.Mode == ModeRequired
}

// Extract walks formSchema.components depth-first in document order and
// returns one mapping per component that declares a credential source.
// The result is never nil.
func Extract(form map[string]any) []VCMapping {
	out := []VCMapping{}
	if form == nil {
		return out
	}
	schema, ok := form["formSchema"].(map[string]any)
	if !ok {
		return out
	}
	components, ok := schema["components"].([]any)
	if !ok {
		return out
	}
	return walk(components, out)
}

// ExtractJSON decodes a raw form definition and extracts its mappings.
// Undecodable input yields an empty result.
func ExtractJSON(raw []byte) []VCMapping {
	var form map[string]any
	if err := json.Unmarshal(raw, &form); err != nil {
		return []VCMapping{}
	}
	return Extract(form)
}

func walk(components []any, out []VCMapping) []VCMapping {
	for _, c := range components {
		component, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if m, ok := resolveDeclaration(component); ok {
			out = append(out, m)
		}
		out = walkChildren(component, out)
	}
	return out
}

// walkChildren descends into the container layouts the builder emits:
// panels and fieldsets (components), columns (columns[].components) and
// tables (rows[][].components).
func walkChildren(component map[string]any, out []VCMapping) []VCMapping {
	if children, ok := component["components"].([]any); ok {
		out = walk(children, out)
	}
	if columns, ok := component["columns"].([]any); ok {
		for _, col := range columns {
			if column, ok := col.(map[string]any); ok {
				if children, ok := column["components"].([]any); ok {
					out = walk(children, out)
				}
			}
		}
	}
	if rows, ok := component["rows"].([]any); ok {
		for _, row := range rows {
			cells, ok := row.([]any)
			if !ok {
				continue
			}
			for _, c := range cells {
				if cell, ok := c.(map[string]any); ok {
					if children, ok := cell["components"].([]any); ok {
						out = walk(children, out)
					}
				}
			}
		}
	}
	return out
}

// declarationShape identifies where a component declared its credential source.
type declarationShape int

const (
	shapeNone declarationShape = iota
	shapeModern
	shapeLegacy
)

// declaration is the shape-independent view of a component's VC settings.
type declaration struct {
	shape          declarationShape
	credentialType string
	attributeName  string
	mode           string
}

// resolveDeclaration picks exactly one declaration shape. The modern shape
// wins outright when present; fields are never merged across shapes.
func resolveDeclaration(component map[string]any) (VCMapping, bool) {
	decl := modernDeclaration(component)
	if decl.shape == shapeNone {
		decl = legacyDeclaration(component)
	}
	if decl.shape == shapeNone || decl.credentialType == "" || decl.attributeName == "" {
		return VCMapping{}, false
	}
	return VCMapping{
		FieldKey:       stringField(component, "key"),
		CredentialType: decl.credentialType,
		AttributeName:  decl.attributeName,
		Mode:           ParseMode(decl.mode),
	}, true
}

func modernDeclaration(component map[string]any) declaration {
	cfg, ok := component["vcConfig"].(map[string]any)
	if !ok {
		return declaration{}
	}
	return declaration{
		shape:          shapeModern,
		credentialType: stringField(cfg, "credentialType"),
		attributeName:  stringField(cfg, "attributeName"),
		mode:           stringField(cfg, "mode"),
	}
}

func legacyDeclaration(component map[string]any) declaration {
	props, ok := component["properties"].(map[string]any)
	if !ok {
		return declaration{}
	}
	vm, ok := props["vcMapping"].(map[string]any)
	if !ok {
		return declaration{}
	}
	return declaration{
		shape:          shapeLegacy,
		credentialType: stringField(vm, "credentialType"),
		attributeName:  stringField(vm, "attributeName"),
		mode:           stringField(props, "credentialMode"),
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
