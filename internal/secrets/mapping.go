package secrets

import (
	"strings"

	"github.com/jkaninda/tss-resolver/internal/config"
)

// Mapping is one row of the mapping table.
type Mapping struct {
	Key       string // "<type>.<canonicalField>"
	Canonical string // The part after the type prefix; set by ForType.
	Field     string // Vendor field name as configured.
}

// Slug returns the vendor field name in the form tss uses: lowercase, spaces as hyphens.
func (m Mapping) Slug() string { return Slug(m.Field) }

// FieldMap is the ordered type/field mapping table.
type FieldMap struct {
	entries []Mapping
	index   map[string]int
}

// NewFieldMap builds a table from ordered key/value pairs.
func NewFieldMap(pairs ...[2]string) *FieldMap {
	fm := &FieldMap{index: make(map[string]int, len(pairs))}
	for _, p := range pairs {
		fm.add(p[0], p[1])
	}
	return fm
}

func (fm *FieldMap) add(key, field string) {
	if i, ok := fm.index[key]; ok {
		fm.entries[i].Field = field
		return
	}
	fm.index[key] = len(fm.entries)
	fm.entries = append(fm.entries, Mapping{Key: key, Field: field})
}

// LoadFieldMap reads the mapping table from a .properties file, keeping file order.
// On error the returned table is empty but usable.
func LoadFieldMap(path string) (*FieldMap, error) {
	props, err := config.LoadProperties(path)
	fm := &FieldMap{index: make(map[string]int, props.Len())}
	for _, key := range props.Keys() {
		fm.add(key, props.GetString(key, ""))
	}
	return fm, err
}

// Len returns the number of rows.
func (fm *FieldMap) Len() int { return len(fm.entries) }

// Lookup returns the configured vendor field name for key.
func (fm *FieldMap) Lookup(key string) (string, bool) {
	i, ok := fm.index[key]
	if !ok {
		return "", false
	}
	return fm.entries[i].Field, true
}

// ForType returns the rows whose key starts with "<type>.".
func (fm *FieldMap) ForType(ct CredentialType) []Mapping {
	prefix := ct.Prefix()
	var out []Mapping
	for _, m := range fm.entries {
		if strings.HasPrefix(m.Key, prefix) {
			m.Canonical = strings.TrimPrefix(m.Key, prefix)
			out = append(out, m)
		}
	}
	return out
}

// Types returns the distinct type prefixes in file order.
func (fm *FieldMap) Types() []CredentialType {
	seen := make(map[string]bool)
	var out []CredentialType
	for _, m := range fm.entries {
		t, _, ok := strings.Cut(m.Key, ".")
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, CredentialType(t))
	}
	return out
}

// Slug normalizes a field name: lowercase, spaces replaced with hyphens.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}
