package filter_test

import (
	"errors"
	"testing"

	"phonebook/ldapdb/directory/filter"
	"phonebook/ldapdb/directory/schema"

	"github.com/go-ldap/ldap/v3"
)

var testModel = &schema.Model{
	Name:          "person",
	BaseDN:        "ou=people,dc=example,dc=org",
	ObjectClasses: []string{"inetOrgPerson"},
	PrimaryKey:    "uid",
	Fields: []schema.FieldSpec{
		{Name: "uid", Attribute: "uid", Kind: schema.Text},
		{Name: "name", Attribute: "cn", Kind: schema.Text},
		{Name: "year", Attribute: "startYear", Kind: schema.Integer},
		{Name: "urls", Attribute: "labeledURI", Kind: schema.List},
		{Name: "photo", Attribute: "jpegPhoto", Kind: schema.Binary},
	},
}

func mustCompile(t *testing.T, n filter.Node) string {
	t.Helper()
	s, err := filter.Compile(testModel, n)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return s
}

func TestCompile_Lookups(t *testing.T) {
	tests := []struct {
		name string
		node filter.Node
		want string
	}{
		{"exact", filter.Eq("name", "bob"), "(cn=bob)"},
		{"contains", filter.Where("name", schema.Contains, "ob"), "(cn=*ob*)"},
		{"icontains", filter.Where("name", schema.IContains, "OB"), "(cn=*OB*)"},
		{"startswith", filter.Where("name", schema.StartsWith, "bo"), "(cn=bo*)"},
		{"endswith", filter.Where("name", schema.EndsWith, "ob"), "(cn=*ob)"},
		{"gte", filter.Where("year", schema.Gte, int64(2010)), "(startYear>=2010)"},
		{"lte", filter.Where("year", schema.Lte, 2012), "(startYear<=2012)"},
		{"integer exact", filter.Eq("year", 7), "(startYear=7)"},
		{"list contains", filter.Where("urls", schema.Contains, "http://x"), "(labeledURI=http://x)"},
		{"list contains is not a substring match", filter.Where("urls", schema.Contains, "a*b"), `(labeledURI=a\2ab)`},
		{"in", filter.In("uid", "a", "b"), "(|(uid=a)(uid=b))"},
		{"in single", filter.Where("uid", schema.In, []any{"a"}), "(|(uid=a))"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := mustCompile(t, test.node)
			if got != test.want {
				t.Errorf("got %s, want %s", got, test.want)
			}
			if _, err := ldap.CompileFilter(got); err != nil {
				t.Errorf("compiled filter %s does not parse: %v", got, err)
			}
		})
	}
}

func TestCompile_EscapesBeforeWildcards(t *testing.T) {
	tests := []struct {
		node filter.Node
		want string
	}{
		{filter.Eq("name", `a*b`), `(cn=a\2ab)`},
		{filter.Eq("name", `(x)`), `(cn=\28x\29)`},
		{filter.Eq("name", `back\slash`), `(cn=back\5cslash)`},
		{filter.Eq("name", "nul\x00byte"), `(cn=nul\00byte)`},
		{filter.Where("name", schema.Contains, `*`), `(cn=*\2a*)`},
		{filter.Where("name", schema.StartsWith, `\`), `(cn=\5c*)`},
		{filter.In("uid", `)(uid=*`), `(|(uid=\29\28uid=\2a))`},
	}

	for _, test := range tests {
		if got := mustCompile(t, test.node); got != test.want {
			t.Errorf("got %s, want %s", got, test.want)
		}
	}
}

func TestCompile_InjectionSafety(t *testing.T) {
	hostile := []string{
		")(uid=x",
		"*)(uid=*))(|(uid=*",
		"*",
		`\`,
		`\2a`,
		"admin)(objectClass=*",
		"a\x00b",
	}

	for _, value := range hostile {
		s := mustCompile(t, filter.Eq("name", value))

		packet, err := ldap.CompileFilter(s)
		if err != nil {
			t.Fatalf("filter for %q does not parse: %v", value, err)
		}
		if packet.Tag != ldap.FilterEqualityMatch {
			t.Errorf("value %q produced %s, not a single equality term", value, ldap.FilterMap[uint64(packet.Tag)])
			continue
		}
		if len(packet.Children) != 2 {
			t.Fatalf("value %q: expected attribute and value children, got %d", value, len(packet.Children))
		}
		if attr := packet.Children[0].Value; attr != "cn" {
			t.Errorf("value %q: term references %v, want cn", value, attr)
		}
		if got := packet.Children[1].Value; got != value {
			t.Errorf("value %q: parsed assertion value %q", value, got)
		}
	}
}

func TestCompile_Tree(t *testing.T) {
	tests := []struct {
		name string
		node filter.Node
		want string
	}{
		{"and", filter.And(filter.Eq("uid", "a"), filter.Eq("name", "b")), "(&(uid=a)(cn=b))"},
		{"or", filter.Or(filter.Eq("uid", "a"), filter.Eq("uid", "b")), "(|(uid=a)(uid=b))"},
		{"not", filter.Not(filter.Eq("uid", "a")), "(!(uid=a))"},
		{"single child collapses", filter.And(filter.Eq("uid", "a")), "(uid=a)"},
		{"nested", filter.And(
			filter.Or(filter.Eq("uid", "a"), filter.Eq("uid", "b")),
			filter.Not(filter.Where("year", schema.Gte, 2000)),
		), "(&(|(uid=a)(uid=b))(!(startYear>=2000)))"},
		{"empty and", filter.And(), ""},
		{"empty or", filter.Or(), ""},
		{"not of empty", filter.Not(filter.And()), ""},
		{"empty child skipped", filter.And(filter.Or(), filter.Eq("uid", "a")), "(uid=a)"},
		{"or drops empty and", filter.Or(filter.And(), filter.Eq("uid", "a")), "(uid=a)"},
		{"nil", nil, ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := mustCompile(t, test.node); got != test.want {
				t.Errorf("got %q, want %q", got, test.want)
			}
		})
	}
}

func TestCompile_EmptyInMatchesNothing(t *testing.T) {
	got := mustCompile(t, filter.In("uid"))
	if got != filter.MatchNothing {
		t.Fatalf("empty in: got %q, want %q", got, filter.MatchNothing)
	}
	if got == "" {
		t.Fatal("empty in must never compile to no constraint")
	}

	packet, err := ldap.CompileFilter(got)
	if err != nil {
		t.Fatalf("MatchNothing does not parse: %v", err)
	}
	if packet.Tag != ldap.FilterNot {
		t.Errorf("expected a negation, got %s", ldap.FilterMap[uint64(packet.Tag)])
	}

	// Inside a disjunction the other branches still apply.
	or := mustCompile(t, filter.Or(filter.In("uid"), filter.Eq("uid", "a")))
	if or != "(|(!(objectClass=*))(uid=a))" {
		t.Errorf("got %s", or)
	}
}

func TestCompile_IllegalLookups(t *testing.T) {
	all := []schema.Lookup{
		schema.Exact, schema.Contains, schema.IContains, schema.StartsWith,
		schema.EndsWith, schema.In, schema.Gte, schema.Lte,
	}
	fields := map[string]schema.Kind{"name": schema.Text, "year": schema.Integer, "urls": schema.List, "photo": schema.Binary}

	for field, kind := range fields {
		for _, op := range all {
			if kind.Supports(op) {
				continue
			}
			_, err := filter.Compile(testModel, filter.Where(field, op, "x"))
			if !errors.Is(err, filter.ErrCompile) {
				t.Errorf("%s on %s field: expected ErrCompile, got %v", op, kind, err)
			}
		}
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := map[string]filter.Node{
		"unknown field":         filter.Eq("nope", "x"),
		"in with scalar":        filter.Where("uid", schema.In, "a"),
		"integer with string":   filter.Where("year", schema.Gte, "2010"),
		"text with integer":     filter.Eq("name", 12),
		"list with list":        filter.Where("urls", schema.Contains, []string{"a"}),
		"in with mixed":         filter.Where("uid", schema.In, []any{"a", 1}),
		"error inside and":      filter.And(filter.Eq("uid", "a"), filter.Eq("nope", "x")),
		"error inside not":      filter.Not(filter.Eq("photo", []byte("x"))),
		"dn is not filterable":  filter.Eq("dn", "uid=a"),
		"unknown lookup string": filter.Where("name", schema.Lookup("regex"), "x"),
	}

	for name, node := range tests {
		if _, err := filter.Compile(testModel, node); !errors.Is(err, filter.ErrCompile) {
			t.Errorf("%s: expected ErrCompile, got %v", name, err)
		}
	}
}

func TestEscape(t *testing.T) {
	if got := filter.Escape(`a\b*c(d)e` + "\x00"); got != `a\5cb\2ac\28d\29e\00` {
		t.Errorf("Escape: got %s", got)
	}
	if got := filter.Escape("Zoë"); got != "Zoë" {
		t.Errorf("Escape must leave other characters alone, got %s", got)
	}
}
