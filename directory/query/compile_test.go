package query_test

import (
	"errors"
	"reflect"
	"testing"

	"phonebook/ldapdb/directory/filter"
	"phonebook/ldapdb/directory/query"
	"phonebook/ldapdb/directory/schema"

	"github.com/go-ldap/ldap/v3"
)

var people = &schema.Model{
	Name:          "person",
	BaseDN:        "ou=people,dc=example,dc=org",
	ObjectClasses: []string{"inetOrgPerson", "domesdayPerson"},
	PrimaryKey:    "uid",
	Fields: []schema.FieldSpec{
		{Name: "uid", Attribute: "uid", Kind: schema.Text},
		{Name: "name", Attribute: "cn", Kind: schema.Text},
		{Name: "mail", Attribute: "mail", Kind: schema.Text},
		{Name: "year", Attribute: "startYear", Kind: schema.Integer},
		{Name: "urls", Attribute: "labeledURI", Kind: schema.List},
		{Name: "photo", Attribute: "jpegPhoto", Kind: schema.Binary},
	},
}

func TestCompile_ObjectClassesAlwaysRequired(t *testing.T) {
	req, err := query.Compile(query.New(people))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if want := "(&(objectClass=inetOrgPerson)(objectClass=domesdayPerson))"; req.Filter != want {
		t.Errorf("Filter: got %s, want %s", req.Filter, want)
	}
	if req.BaseDN != people.BaseDN || req.Scope != schema.ScopeSubtree {
		t.Errorf("unexpected base/scope: %s %v", req.BaseDN, req.Scope)
	}
	if want := people.Attributes(); !reflect.DeepEqual(req.Attributes, want) {
		t.Errorf("Attributes: got %v, want %v", req.Attributes, want)
	}
}

func TestCompile_WithFilter(t *testing.T) {
	q := query.New(people).
		Where(filter.Where("name", schema.StartsWith, "A")).
		Where(filter.Where("year", schema.Gte, 2010))

	req, err := query.Compile(q)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := "(&(objectClass=inetOrgPerson)(objectClass=domesdayPerson)(&(cn=A*)(startYear>=2010)))"
	if req.Filter != want {
		t.Errorf("Filter: got %s, want %s", req.Filter, want)
	}
	if _, err := ldap.CompileFilter(req.Filter); err != nil {
		t.Errorf("filter does not parse: %v", err)
	}
}

func TestCompile_Projection(t *testing.T) {
	q := query.New(people).Only("mail", "dn").OrderBy(query.Desc("year"))

	req, err := query.Compile(q)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	// Ordering keys and the primary key ride along with the projection.
	if want := []string{"mail", "startYear", "uid"}; !reflect.DeepEqual(req.Attributes, want) {
		t.Errorf("Attributes: got %v, want %v", req.Attributes, want)
	}
}

func TestCompile_CountRequestsOnlyPrimaryKey(t *testing.T) {
	req, err := query.Compile(query.New(people).WithAggregate(query.AggregateCount))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !reflect.DeepEqual(req.Attributes, []string{"uid"}) {
		t.Errorf("Attributes: got %v", req.Attributes)
	}
}

func TestCompile_NoObjectClasses(t *testing.T) {
	bare := &schema.Model{Name: "bare", PrimaryKey: "cn", Fields: []schema.FieldSpec{{Name: "cn", Attribute: "cn"}}}

	req, err := query.Compile(query.New(bare))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if req.Filter != "(objectClass=*)" {
		t.Errorf("Filter: got %s", req.Filter)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := map[string]query.Query{
		"no model":          query.New(nil),
		"unknown field":     query.New(people).Only("nope"),
		"unknown order":     query.New(people).OrderBy(query.Asc("nope")),
		"illegal lookup":    query.New(people).Where(filter.Where("photo", schema.Exact, []byte("x"))),
		"negative slice":    query.New(people).Slice(-1, 3),
		"sum aggregate":     query.New(people).WithAggregate(query.AggregateSum),
		"max aggregate":     query.New(people).WithAggregate(query.AggregateMax),
		"unknown aggregate": query.New(people).WithAggregate(query.Aggregate(42)),
	}

	for name, q := range tests {
		if _, err := query.Compile(q); !errors.Is(err, query.ErrCompile) {
			t.Errorf("%s: expected ErrCompile, got %v", name, err)
		}
	}

	_, err := query.Compile(query.New(people).WithAggregate(query.AggregateMin))
	if !errors.Is(err, query.ErrAggregate) {
		t.Errorf("expected ErrAggregate, got %v", err)
	}
}

func TestSearchRequest_LDAP(t *testing.T) {
	req := query.SearchRequest{
		BaseDN:     "ou=tags,dc=example,dc=org",
		Scope:      schema.ScopeOneLevel,
		Filter:     "(objectClass=groupOfNames)",
		Attributes: []string{"cn"},
	}

	sr := req.LDAP()
	if sr.BaseDN != req.BaseDN || sr.Scope != ldap.ScopeSingleLevel || sr.Filter != req.Filter {
		t.Errorf("unexpected search request: %+v", sr)
	}
	if sr.DerefAliases != ldap.NeverDerefAliases || sr.SizeLimit != 0 {
		t.Errorf("unexpected deref/size limit: %d %d", sr.DerefAliases, sr.SizeLimit)
	}
}

func TestQuery_Immutable(t *testing.T) {
	base := query.New(people).OrderBy(query.Asc("name"))
	_ = base.OrderBy(query.Desc("year")).Slice(0, 1).WithAggregate(query.AggregateCount)

	if got := base.Ordering(); len(got) != 1 || got[0].Field != "name" {
		t.Errorf("base ordering changed: %v", got)
	}
	if low, high := base.Window(); low != 0 || high != -1 {
		t.Errorf("base window changed: %d %d", low, high)
	}
	if base.Counting() {
		t.Error("base became a counting query")
	}
}

func TestParseOrder(t *testing.T) {
	if got := query.ParseOrder("-name"); got != query.Desc("name") {
		t.Errorf("got %+v", got)
	}
	if got := query.ParseOrder("name"); got != query.Asc("name") {
		t.Errorf("got %+v", got)
	}
}
