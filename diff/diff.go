package diff

import (
	"bytes"
	"sort"
)

// FindChanges compares two attribute snapshots and returns a list of changes,
// ordered by attribute name. Values are compared in order, since multi-valued
// attributes such as lists are ordered sequences.
func FindChanges(prev, curr map[string][][]byte) []AttributeChange {
	var changes []AttributeChange

	// Detect changed or added attributes
	for k, newVal := range curr {
		oldVal, exists := prev[k]
		if !exists || !equalValues(oldVal, newVal) {
			changes = append(changes, AttributeChange{
				Name: k,
				Old:  oldVal,
				New:  newVal,
			})
		}
	}

	// Detect removed attributes
	for k, oldVal := range prev {
		if _, exists := curr[k]; !exists {
			changes = append(changes, AttributeChange{
				Name: k,
				Old:  oldVal,
				New:  nil,
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Name < changes[j].Name })
	return changes
}

func equalValues(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Strings converts raw values for display or JSON storage.
func Strings(values [][]byte) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
