package snapshot

import (
	"time"

	"github.com/go-ldap/ldap/v3"
)

// FromEntry captures the raw attribute values of an entry returned by a
// search.
func FromEntry(entry *ldap.Entry) *Snapshot {
	attributes := make(Attributes, len(entry.Attributes))
	for _, attr := range entry.Attributes {
		if len(attr.ByteValues) > 0 {
			attributes[attr.Name] = attr.ByteValues
		}
	}

	return &Snapshot{
		DN:         entry.DN,
		Attributes: attributes,
		Timestamp:  time.Now(),
	}
}
