package diff

// ChangeSet describes how a provider's model list in a document differs from
// the freshly fetched list. Section markers are ignored.
type ChangeSet struct {
	Provider        string
	Added           []string
	Removed         []string
	PossibleRenames []RenamePair
	Unchanged       int
	// Reordered is set when the model sets match but the sequence (order or
	// section markers) differs.
	Reordered bool
}

// RenamePair represents a possible rename (old model disappeared, new appeared).
type RenamePair struct {
	OldName string
	NewName string
	Reason  string // e.g., "newer dated snapshot"
}

// HasChanges reports whether applying the fetched list would modify the document.
func (cs *ChangeSet) HasChanges() bool {
	return len(cs.Added) > 0 || len(cs.Removed) > 0 || cs.Reordered
}

// TotalChanged returns the count of added + removed models.
func (cs *ChangeSet) TotalChanged() int {
	return len(cs.Added) + len(cs.Removed)
}
