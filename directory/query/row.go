package query

import (
	"fmt"
	"reflect"

	"phonebook/ldapdb/directory/schema"
)

// Row is one decoded entry keyed by field name, plus "dn".
type Row map[string]any

// DN returns the entry's distinguished name, or "" for rows not read from
// the directory.
func (r Row) DN() string {
	dn, _ := r[schema.DNField].(string)
	return dn
}

// Get returns the field value as T. A missing field yields the zero value.
func Get[T any](r Row, field string) (T, error) {
	var zero T
	v, ok := r[field]
	if !ok {
		return zero, nil
	}
	cast, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf(
			"Row.Get[%s]: field %s: type mismatch: got %T",
			reflect.TypeOf(zero),
			field,
			v,
		)
	}
	return cast, nil
}
