package schema

import (
	"github.com/go-ldap/ldap/v3"
)

// Kind is the closed set of attribute types a model field can have.
type Kind int

const (
	Text Kind = iota
	Integer
	List
	Binary
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "Text"
	case Integer:
		return "Integer"
	case List:
		return "List"
	case Binary:
		return "Binary"
	}
	return "Unknown"
}

// Lookup is a comparison operator usable in a filter leaf.
type Lookup string

const (
	Exact      Lookup = "exact"
	Contains   Lookup = "contains"
	IContains  Lookup = "icontains"
	StartsWith Lookup = "startswith"
	EndsWith   Lookup = "endswith"
	In         Lookup = "in"
	Gte        Lookup = "gte"
	Lte        Lookup = "lte"
)

// Scope is the search depth below a model's base DN.
type Scope int

const (
	ScopeSubtree Scope = iota
	ScopeOneLevel
	ScopeBase
)

// LDAP maps the scope to the go-ldap search scope constant.
func (s Scope) LDAP() int {
	switch s {
	case ScopeOneLevel:
		return ldap.ScopeSingleLevel
	case ScopeBase:
		return ldap.ScopeBaseObject
	}
	return ldap.ScopeWholeSubtree
}

func (s Scope) String() string {
	return ldap.ScopeMap[s.LDAP()]
}

// FieldSpec describes one model field and the directory attribute backing it.
type FieldSpec struct {
	Name      string // field name used in queries and rows
	Attribute string // LDAP attribute name
	Kind      Kind
	Required  bool
}

// Model is the field map of one kind of directory object.
type Model struct {
	Name          string
	BaseDN        string
	Scope         Scope
	ObjectClasses []string
	PrimaryKey    string // field name of the RDN attribute
	Fields        []FieldSpec

	// Identifier, when set, generates a primary key value for inserts that
	// do not carry one.
	Identifier func() string
}
