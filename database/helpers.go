package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"phonebook/ldapdb/diff"
	"phonebook/ldapdb/directory"

	"github.com/google/uuid"
)

// changeRecords converts the attribute changes of m into journal rows.
func changeRecords(m directory.Mutation) ([]ChangeRecord, error) {
	records := make([]ChangeRecord, 0, len(m.Changes))
	for _, c := range m.Changes {
		binary := !printable(c.Old) || !printable(c.New)

		oldValue, err := encodeValues(c.Old, binary)
		if err != nil {
			return nil, fmt.Errorf("encode old value of %s: %w", c.Name, err)
		}
		newValue, err := encodeValues(c.New, binary)
		if err != nil {
			return nil, fmt.Errorf("encode new value of %s: %w", c.Name, err)
		}

		records = append(records, ChangeRecord{
			ChangeID:      uuid.New(),
			AttributeName: c.Name,
			OldValue:      oldValue,
			NewValue:      newValue,
			IsBinary:      binary,
		})
	}
	return records, nil
}

// encodeValues returns nil for a missing side so it is stored as NULL.
func encodeValues(values [][]byte, binary bool) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	if binary {
		return json.Marshal(values)
	}
	return json.Marshal(diff.Strings(values))
}

// decodeValues reverses encodeValues.
func decodeValues(raw []byte, binary bool) ([][]byte, error) {
	if raw == nil {
		return nil, nil
	}
	if binary {
		var values [][]byte
		err := json.Unmarshal(raw, &values)
		return values, err
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out, nil
}

// printable reports whether values can be stored as JSON text. jsonb
// rejects NUL characters.
func printable(values [][]byte) bool {
	for _, v := range values {
		if !utf8.Valid(v) || bytes.IndexByte(v, 0) >= 0 {
			return false
		}
	}
	return true
}
