package snapshot

import (
	"strings"
	"time"
)

// Attributes maps LDAP attribute names to their raw values.
type Attributes map[string][][]byte

// Get returns the values of attr. Attribute names compare case-insensitively.
func (a Attributes) Get(attr string) [][]byte {
	if v, ok := a[attr]; ok {
		return v
	}
	for name, v := range a {
		if strings.EqualFold(name, attr) {
			return v
		}
	}
	return nil
}

// Snapshot represents the encoded state of a directory entry at a point in
// time. It is the "before" side of an update.
type Snapshot struct {
	// DN is the Distinguished Name of the entry
	DN string

	// Attributes contains the raw values of every attribute that was read
	Attributes Attributes

	// Timestamp records when this snapshot was taken
	Timestamp time.Time
}
