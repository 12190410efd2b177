package diff

// AttributeChange represents a change between two snapshots of an attribute.
// New is nil when the attribute was removed; Old is nil when it was added.
type AttributeChange struct {
	Name string
	Old  [][]byte
	New  [][]byte
}

// Removed reports whether the change deletes the attribute.
func (c AttributeChange) Removed() bool {
	return len(c.New) == 0
}
