package database

import (
	"time"

	"github.com/google/uuid"
)

// MutationRecord represents a row in the Mutations table.
type MutationRecord struct {
	MutationID uuid.UUID
	Operation  string
	Model      string
	DN         string
	NewDN      string // empty unless the entry was renamed
	RecordedAt time.Time
	Changes    []ChangeRecord
}

// ChangeRecord represents a row in the AttributeChanges table.
// Old and new values are JSON arrays; binary attributes are stored
// base64-encoded and flagged with IsBinary.
type ChangeRecord struct {
	ChangeID      uuid.UUID
	AttributeName string
	OldValue      []byte // JSON, nil when the attribute was added
	NewValue      []byte // JSON, nil when the attribute was removed
	IsBinary      bool
}
