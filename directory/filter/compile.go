package filter

import (
	"errors"
	"fmt"
	"strings"

	"phonebook/ldapdb/directory/schema"
)

// ErrCompile marks a filter or query the caller built incorrectly. It is
// raised before any directory traffic.
var ErrCompile = errors.New("invalid query")

// MatchNothing is a filter no entry can satisfy. Every entry has an
// objectClass, and unlike the RFC 4526 "(|)" form it is accepted by all
// servers.
const MatchNothing = "(!(objectClass=*))"

var filterEscaper = strings.NewReplacer(
	`\`, `\5c`,
	`*`, `\2a`,
	`(`, `\28`,
	`)`, `\29`,
	"\x00", `\00`,
)

// Escape hex-escapes the characters that carry meaning inside a filter
// assertion value. It must run before any wildcard is added.
func Escape(value string) string {
	return filterEscaper.Replace(value)
}

// Compile renders n against model m. A nil tree, or an And/Or without
// children, compiles to the empty string, meaning "no constraint".
// Children that compile to the empty string are dropped from their group,
// so Or(And(), Eq("uid", "a")) compiles to (uid=a) rather than matching
// everything.
func Compile(m *schema.Model, n Node) (string, error) {
	if n == nil {
		return "", nil
	}

	switch n := n.(type) {
	case leafFilter:
		return compileLeaf(m, n)
	case andFilter:
		return compileGroup(m, "&", n.parts)
	case orFilter:
		return compileGroup(m, "|", n.parts)
	case notFilter:
		inner, err := Compile(m, n.part)
		if err != nil || inner == "" {
			return "", err
		}
		return "(!" + inner + ")", nil
	}

	return "", fmt.Errorf("%w: unsupported filter node %T", ErrCompile, n)
}

func compileGroup(m *schema.Model, op string, nodes []Node) (string, error) {
	var parts []string
	for _, child := range nodes {
		s, err := Compile(m, child)
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}

	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	}
	return "(" + op + strings.Join(parts, "") + ")", nil
}

func compileLeaf(m *schema.Model, l leafFilter) (string, error) {
	f, ok := m.Field(l.field)
	if !ok {
		return "", fmt.Errorf("%w: %s has no field %q", ErrCompile, m.Name, l.field)
	}
	if !f.Kind.Supports(l.lookup) {
		return "", fmt.Errorf("%w: lookup %q is not supported on %s field %s", ErrCompile, l.lookup, f.Kind, f.Name)
	}

	if l.lookup == schema.In {
		values, err := inOperands(f, l.value)
		if err != nil {
			return "", err
		}
		if len(values) == 0 {
			return MatchNothing, nil
		}
		var b strings.Builder
		b.WriteString("(|")
		for _, v := range values {
			b.WriteString("(" + f.Attribute + "=" + Escape(v) + ")")
		}
		b.WriteString(")")
		return b.String(), nil
	}

	raw, err := operand(f, l.value)
	if err != nil {
		return "", err
	}
	v := Escape(raw)

	switch l.lookup {
	case schema.Exact:
		return "(" + f.Attribute + "=" + v + ")", nil
	case schema.Contains, schema.IContains:
		if f.Kind == schema.List {
			return "(" + f.Attribute + "=" + v + ")", nil
		}
		return "(" + f.Attribute + "=*" + v + "*)", nil
	case schema.StartsWith:
		return "(" + f.Attribute + "=" + v + "*)", nil
	case schema.EndsWith:
		return "(" + f.Attribute + "=*" + v + ")", nil
	case schema.Gte:
		return "(" + f.Attribute + ">=" + v + ")", nil
	case schema.Lte:
		return "(" + f.Attribute + "<=" + v + ")", nil
	}

	return "", fmt.Errorf("%w: unknown lookup %q", ErrCompile, l.lookup)
}

// operand encodes a single comparison value with the field's codec. List
// lookups test membership, so their operand is one element, not a list.
func operand(f schema.FieldSpec, value any) (string, error) {
	if f.Kind == schema.List {
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s lookup on %s needs a string, got %T", ErrCompile, schema.Contains, f.Name, value)
		}
		return s, nil
	}

	encoded, err := schema.Encode(f, value)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompile, err)
	}
	return string(encoded[0]), nil
}

func inOperands(f schema.FieldSpec, value any) ([]string, error) {
	var items []any
	switch v := value.(type) {
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []any:
		items = v
	case []int64:
		for _, n := range v {
			items = append(items, n)
		}
	case []int:
		for _, n := range v {
			items = append(items, n)
		}
	default:
		return nil, fmt.Errorf("%w: in lookup on %s needs a list operand, got %T", ErrCompile, f.Name, value)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := operand(f, item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
