package payload

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry resolves a credential type name to its schema and credential
// definition identifiers.
type Registry interface {
	Resolve(credentialType string) (Restriction, bool)
}

// StaticRegistry is an immutable in-memory registry.
type StaticRegistry map[string]Restriction

// Resolve implements Registry.
func (r StaticRegistry) Resolve(credentialType string) (Restriction, bool) {
	restriction, ok := r[credentialType]
	return restriction, ok
}

// FixtureRegistry returns the credential types used by local development
// forms. Every entry is flagged as fixture data.
func FixtureRegistry() StaticRegistry {
	return StaticRegistry{
		"BC Person Credential": {SchemaID: 1, CredentialID: 1, Fixture: true},
		"BCSC":                 {SchemaID: 2, CredentialID: 2, Fixture: true},
		"unverified_person":    {SchemaID: 3, CredentialID: 3, Fixture: true},
	}
}

// registryFile is the YAML catalog layout:
//
//	credentials:
//	  - type: BC Person Credential
//	    schemaId: 101
//	    credentialId: 202
type registryFile struct {
	Credentials []struct {
		Type         string `yaml:"type"`
		SchemaID     int64  `yaml:"schemaId"`
		CredentialID int64  `yaml:"credentialId"`
	} `yaml:"credentials"`
}

// LoadRegistryFile reads a YAML credential catalog from path.
func LoadRegistryFile(path string) (StaticRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credential registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes a YAML credential catalog. Entries need a type and
// positive identifiers; duplicate types are rejected.
func ParseRegistry(data []byte) (StaticRegistry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode credential registry: %w", err)
	}

	reg := make(StaticRegistry, len(file.Credentials))
	for i, c := range file.Credentials {
		name := strings.TrimSpace(c.Type)
		if name == "" {
			return nil, fmt.Errorf("credential registry entry %d: type is required", i)
		}
		if c.SchemaID <= 0 || c.CredentialID <= 0 {
			return nil, fmt.Errorf("credential registry entry %q: schemaId and credentialId must be positive", name)
		}
		if _, dup := reg[name]; dup {
			return nil, fmt.Errorf("credential registry entry %q: duplicate type", name)
		}
		reg[name] = Restriction{SchemaID: c.SchemaID, CredentialID: c.CredentialID}
	}
	return reg, nil
}
