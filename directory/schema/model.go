package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// DNField is the pseudo-field carrying an entry's distinguished name.
const DNField = "dn"

// Field returns the field named name.
func (m *Model) Field(name string) (FieldSpec, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldByAttribute returns the field backed by the LDAP attribute attr.
// Attribute names compare case-insensitively, as they do on the wire.
func (m *Model) FieldByAttribute(attr string) (FieldSpec, bool) {
	for _, f := range m.Fields {
		if strings.EqualFold(f.Attribute, attr) {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// PrimaryField returns the field holding the entry's RDN value.
func (m *Model) PrimaryField() FieldSpec {
	f, _ := m.Field(m.PrimaryKey)
	return f
}

// Attributes lists every LDAP attribute mapped by the model, in field order.
func (m *Model) Attributes() []string {
	attrs := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		attrs = append(attrs, f.Attribute)
	}
	return attrs
}

// Scoped returns a copy of the model rooted at baseDN, e.g. the accounts held
// below a single person entry.
func (m *Model) Scoped(baseDN string) *Model {
	c := *m
	c.BaseDN = baseDN
	return &c
}

// At returns a copy of the model that addresses exactly the entry dn.
func (m *Model) At(dn string) *Model {
	c := m.Scoped(dn)
	c.Scope = ScopeBase
	return c
}

// RDN builds the relative DN for a primary key value.
func (m *Model) RDN(pk any) (string, error) {
	f := m.PrimaryField()
	values, err := Encode(f, pk)
	if err != nil {
		return "", err
	}
	if IsEmpty(values) {
		return "", fmt.Errorf("empty value for primary key %s of %s", f.Name, m.Name)
	}
	return f.Attribute + "=" + ldap.EscapeDN(string(values[0])), nil
}

// DN builds the distinguished name of the entry whose primary key is pk.
func (m *Model) DN(pk any) (string, error) {
	rdn, err := m.RDN(pk)
	if err != nil {
		return "", err
	}
	if m.BaseDN == "" {
		return rdn, nil
	}
	return rdn + "," + m.BaseDN, nil
}

// Validate checks that the model is internally consistent.
func (m *Model) Validate() error {
	if m.Name == "" {
		return errors.New("model has no name")
	}
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if f.Name == "" || f.Attribute == "" {
			return fmt.Errorf("model %s: field needs both a name and an attribute", m.Name)
		}
		if f.Name == DNField {
			return fmt.Errorf("model %s: field name %q is reserved", m.Name, DNField)
		}
		if seen[f.Name] {
			return fmt.Errorf("model %s: duplicate field %s", m.Name, f.Name)
		}
		seen[f.Name] = true
	}
	pk, ok := m.Field(m.PrimaryKey)
	if !ok {
		return fmt.Errorf("model %s: primary key %q is not a field", m.Name, m.PrimaryKey)
	}
	if pk.Kind != Text && pk.Kind != Integer {
		return fmt.Errorf("model %s: primary key %s must be Text or Integer, got %s", m.Name, pk.Name, pk.Kind)
	}
	return nil
}
