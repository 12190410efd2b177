package directory

import (
	"context"
	"time"

	"phonebook/ldapdb/diff"

	"github.com/go-ldap/ldap/v3"
)

// Operation names a kind of directory write.
type Operation string

const (
	OpAdd    Operation = "add"
	OpModify Operation = "modify"
	OpRename Operation = "rename"
	OpDelete Operation = "delete"
)

// Mutation describes one write the Session sent successfully.
type Mutation struct {
	Operation Operation
	Model     string
	DN        string

	// NewDN is set for renames.
	NewDN string

	// Changes is empty for deletes and renames. For adds every change has a
	// nil Old.
	Changes []diff.AttributeChange

	Time time.Time
}

// Recorder receives every mutation after the directory accepted it.
type Recorder interface {
	Record(ctx context.Context, m Mutation) error
}

func addChanges(req *ldap.AddRequest) []diff.AttributeChange {
	changes := make([]diff.AttributeChange, 0, len(req.Attributes))
	for _, a := range req.Attributes {
		values := make([][]byte, len(a.Vals))
		for i, v := range a.Vals {
			values[i] = []byte(v)
		}
		changes = append(changes, diff.AttributeChange{Name: a.Type, New: values})
	}
	return changes
}
