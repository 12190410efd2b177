package schema

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// ErrFieldType is returned when a value does not have the shape a field's
// Kind requires. Callers passing the wrong Go type have a programming error;
// nothing is coerced.
var ErrFieldType = errors.New("field type mismatch")

// Lookups returns the lookup operators legal on a field of kind k.
func (k Kind) Lookups() []Lookup {
	switch k {
	case Text:
		return []Lookup{Exact, Contains, IContains, StartsWith, EndsWith, In}
	case Integer:
		return []Lookup{Exact, Gte, Lte}
	case List:
		return []Lookup{Contains}
	case Binary:
		return nil
	}
	return nil
}

// Supports reports whether lookup is legal on a field of kind k.
func (k Kind) Supports(lookup Lookup) bool {
	return slices.Contains(k.Lookups(), lookup)
}

// Encode converts a typed value into LDAP attribute values.
// Text and Integer produce exactly one value, List one value per element and
// Binary passes the bytes through untouched.
func Encode(f FieldSpec, value any) ([][]byte, error) {
	switch f.Kind {
	case Text:
		s, ok := value.(string)
		if !ok {
			return nil, mismatch(f, value)
		}
		return [][]byte{[]byte(s)}, nil

	case Integer:
		n, err := toInt64(f, value)
		if err != nil {
			return nil, err
		}
		return [][]byte{[]byte(strconv.FormatInt(n, 10))}, nil

	case List:
		values, ok := value.([]string)
		if !ok {
			return nil, mismatch(f, value)
		}
		out := make([][]byte, 0, len(values))
		for _, v := range values {
			out = append(out, []byte(v))
		}
		return out, nil

	case Binary:
		b, ok := value.([]byte)
		if !ok {
			return nil, mismatch(f, value)
		}
		return [][]byte{b}, nil
	}

	return nil, fmt.Errorf("%w: field %s has unknown kind %d", ErrFieldType, f.Name, f.Kind)
}

// Decode converts raw LDAP attribute values into the field's Go value:
// string, int64, []string or []byte. Scalars take the first value; an absent
// attribute decodes to the zero value.
func Decode(f FieldSpec, raw [][]byte) (any, error) {
	switch f.Kind {
	case Text:
		if len(raw) == 0 {
			return "", nil
		}
		return string(raw[0]), nil

	case Integer:
		if len(raw) == 0 {
			return int64(0), nil
		}
		n, err := strconv.ParseInt(string(raw[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s holds non-integer value %q", ErrFieldType, f.Name, raw[0])
		}
		return n, nil

	case List:
		values := make([]string, 0, len(raw))
		for _, b := range raw {
			values = append(values, string(b))
		}
		return values, nil

	case Binary:
		if len(raw) == 0 {
			return []byte{}, nil
		}
		return raw[0], nil
	}

	return nil, fmt.Errorf("%w: field %s has unknown kind %d", ErrFieldType, f.Name, f.Kind)
}

// IsEmpty reports whether encoded values carry no data. Directories reject
// zero-length values for most syntaxes, so an empty encoding means "no
// attribute".
func IsEmpty(values [][]byte) bool {
	for _, v := range values {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

func toInt64(f FieldSpec, value any) (int64, error) {
	switch n := value.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	}
	return 0, mismatch(f, value)
}

func mismatch(f FieldSpec, value any) error {
	return fmt.Errorf("%w: %s field %s cannot hold %T", ErrFieldType, f.Kind, f.Name, value)
}
