package resolver

import (
	"github.com/jkaninda/tss-resolver/internal/secrets"
)

// Credential is the platform-facing result: always the eight canonical keys,
// nil meaning "no value". It encodes to JSON with null for absent values.
type Credential map[string]*string

// EmptyCredential returns a Credential with every field absent.
func EmptyCredential() Credential {
	c := make(Credential, len(secrets.CanonicalFields))
	for _, name := range secrets.CanonicalFields {
		c[name] = nil
	}
	return c
}

// Value returns the value of a canonical field and whether it was resolved.
func (c Credential) Value(name string) (string, bool) {
	v := c[name]
	if v == nil {
		return "", false
	}
	return *v, true
}

// Resolved returns the names of the fields that have a value, in canonical order.
func (c Credential) Resolved() []string {
	var names []string
	for _, name := range secrets.CanonicalFields {
		if c[name] != nil {
			names = append(names, name)
		}
	}
	return names
}
