package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// DefaultSuffix is the directory root the built-in models are defined under.
const DefaultSuffix = "dc=mozillians,dc=org"

// uniqueIdentifierSize is the length of generated person identifiers.
const uniqueIdentifierSize = 8

type Registry struct {
	models map[string]*Model
}

// NewRegistry returns a registry preloaded with the directory's models.
func NewRegistry() *Registry {
	r := &Registry{
		models: make(map[string]*Model),
	}
	r.init()
	return r
}

func (r *Registry) Register(m *Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.models[m.Name] = m
	return nil
}

func (r *Registry) Lookup(name string) (*Model, error) {
	if m, ok := r.models[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("no model named %q", name)
}

// Names returns the registered model names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rebase moves every model defined under DefaultSuffix below suffix
// instead, for directories rooted elsewhere.
func (r *Registry) Rebase(suffix string) {
	if suffix == "" || strings.EqualFold(suffix, DefaultSuffix) {
		return
	}
	for name, m := range r.models {
		if base, ok := strings.CutSuffix(m.BaseDN, DefaultSuffix); ok {
			r.models[name] = m.Scoped(base + suffix)
		}
	}
}

// NewUniqueIdentifier returns a short random identifier for a new person entry.
func NewUniqueIdentifier() string {
	return uuid.NewString()[:uniqueIdentifierSize]
}

func (r *Registry) registerDirectoryModels() {
	r.mustRegister(&Model{
		Name:          "person",
		BaseDN:        "ou=people," + DefaultSuffix,
		ObjectClasses: []string{"inetOrgPerson", "mozilliansPerson"},
		PrimaryKey:    "unique_id",
		Identifier:    NewUniqueIdentifier,
		Fields: []FieldSpec{
			{Name: "unique_id", Attribute: "uniqueIdentifier", Kind: Text, Required: true},
			{Name: "username", Attribute: "uid", Kind: Text},
			{Name: "cn", Attribute: "cn", Kind: Text, Required: true},
			{Name: "name", Attribute: "displayName", Kind: Text},
			{Name: "first_name", Attribute: "givenName", Kind: Text},
			{Name: "last_name", Attribute: "sn", Kind: Text, Required: true},
			{Name: "nickname", Attribute: "domesdayNickName", Kind: Text},
			{Name: "email", Attribute: "mail", Kind: Text},
			{Name: "address", Attribute: "postalAddress", Kind: Text},
			{Name: "locality", Attribute: "l", Kind: Text},
			{Name: "country", Attribute: "co", Kind: Text},
			{Name: "phone", Attribute: "telephoneNumber", Kind: Text},
			{Name: "title", Attribute: "title", Kind: Text},
			{Name: "bio", Attribute: "description", Kind: Text},
			{Name: "urls", Attribute: "labeledURI", Kind: List},
			{Name: "start_year", Attribute: "domesdayStartYear", Kind: Integer},
			{Name: "vouched_by", Attribute: "mozilliansVouchedBy", Kind: Text},
			{Name: "photo", Attribute: "jpegPhoto", Kind: Binary},
		},
	})

	r.mustRegister(&Model{
		Name:          "tag",
		BaseDN:        "ou=tags," + DefaultSuffix,
		ObjectClasses: []string{"groupOfNames"},
		PrimaryKey:    "name",
		Fields: []FieldSpec{
			{Name: "name", Attribute: "cn", Kind: Text, Required: true},
			{Name: "members", Attribute: "member", Kind: List},
			{Name: "description", Attribute: "description", Kind: Text},
		},
	})

	// Accounts live below their owner's entry; use Scoped to narrow the base.
	r.mustRegister(&Model{
		Name:          "account",
		BaseDN:        "ou=people," + DefaultSuffix,
		ObjectClasses: []string{"account"},
		PrimaryKey:    "domain",
		Fields: []FieldSpec{
			{Name: "domain", Attribute: "host", Kind: Text, Required: true},
			{Name: "userid", Attribute: "uid", Kind: Text},
		},
	})
}

func (r *Registry) mustRegister(m *Model) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

func (r *Registry) init() {
	r.registerDirectoryModels()
}
