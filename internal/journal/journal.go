// Package journal records undo steps so a sequence of state mutations can be
// rolled back as a unit.
package journal

// Journal is a stack of undo closures. The zero value is ready to use.
// A nil *Journal accepts appends and discards them.
type Journal struct {
	entries []func()
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{}
}

// Append records the step that reverts the mutation just applied.
func (j *Journal) Append(undo func()) {
	if j == nil || undo == nil {
		return
	}
	j.entries = append(j.entries, undo)
}

// Snapshot returns an identifier for the current journal position.
func (j *Journal) Snapshot() int {
	if j == nil {
		return 0
	}
	return len(j.entries)
}

// RevertToSnapshot undoes every mutation recorded after id, newest first.
func (j *Journal) RevertToSnapshot(id int) {
	if j == nil {
		return
	}
	if id < 0 {
		id = 0
	}
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i]()
	}
	if id < len(j.entries) {
		j.entries = j.entries[:id]
	}
}

// Reset drops all recorded entries, committing the mutations.
func (j *Journal) Reset() {
	if j == nil {
		return
	}
	j.entries = j.entries[:0]
}

// Len returns the number of recorded entries.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.entries)
}
