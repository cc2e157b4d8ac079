// Package secrets turns a Secret Server record into the platform's canonical
// credential fields. Secret values only ever live in call-scoped maps: nothing
// here caches, persists or logs them.
package secrets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SecretID identifies one secret in Secret Server.
type SecretID int

// CredentialType selects which rows of the mapping table apply (e.g. "ssh", "snmp", "windows").
type CredentialType string

// Prefix returns the mapping-table key prefix for the type, "<type>.".
func (c CredentialType) Prefix() string { return string(c) + "." }

// Key returns the mapping-table key for a canonical field, "<type>.<field>".
func (c CredentialType) Key(field string) string { return c.Prefix() + field }

// Canonical field names understood by the orchestration platform.
const (
	FieldUser         = "user"
	FieldPassword     = "pswd"
	FieldPrivateKey   = "pkey"
	FieldPassphrase   = "passphrase"
	FieldAuthProtocol = "authprotocol"
	FieldAuthKey      = "authkey"
	FieldPrivProtocol = "privprotocol"
	FieldPrivKey      = "privkey"

	// FieldDomain is not returned to the platform; it qualifies the user field.
	FieldDomain = "domain"
)

// CanonicalFields lists the platform fields in output order.
var CanonicalFields = []string{
	FieldUser,
	FieldPassword,
	FieldPrivateKey,
	FieldPassphrase,
	FieldAuthProtocol,
	FieldAuthKey,
	FieldPrivProtocol,
	FieldPrivKey,
}

// ErrInvalidSecretID is returned for ids that are not positive integers.
var ErrInvalidSecretID = errors.New("secret id must be a positive integer")

// ParseSecretID parses the caller-supplied id.
func ParseSecretID(s string) (SecretID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSecretID, s)
	}
	return SecretID(n), nil
}

// Fields holds mapped values keyed by "<type>.<canonicalField>".
// A missing key means the secret has no such field for the type.
type Fields map[string]string

// Get returns the value of a canonical field for a type.
func (f Fields) Get(ct CredentialType, field string) (string, bool) {
	v, ok := f[ct.Key(field)]
	return v, ok
}
