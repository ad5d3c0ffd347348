package entities

// LinkStatus describes what happened to the canonical link of an entry
type LinkStatus string

const (
	// LinkNone means the copied file already has its canonical name
	LinkNone LinkStatus = "none"
	// LinkCreated means the canonical symlink was written
	LinkCreated LinkStatus = "created"
	// LinkShadowed means a copied file already owns the canonical name
	LinkShadowed LinkStatus = "shadowed"
	// LinkConflict means an earlier entry already linked the canonical name
	LinkConflict LinkStatus = "conflict"
	// LinkFailed means creating the symlink returned an error
	LinkFailed LinkStatus = "failed"
	// LinkSkipped means the copy failed so no link was attempted
	LinkSkipped LinkStatus = "skipped"
)

// MaterializedEntry is the outcome of copying one closure member
type MaterializedEntry struct {
	SourcePath string
	DestPath   string
	LinkName   string // canonical name, empty when LinkStatus is LinkNone
	LinkStatus LinkStatus
	Err        *MaterializationError
}

// Failed reports whether the copy or link creation failed
func (e MaterializedEntry) Failed() bool {
	return e.Err != nil
}

// MaterializationReport collects the entries of one materialization run
type MaterializationReport struct {
	DestDir string
	Entries []MaterializedEntry
}

// Failures returns the entries that carry an error
func (r *MaterializationReport) Failures() []MaterializedEntry {
	failed := make([]MaterializedEntry, 0)
	for _, e := range r.Entries {
		if e.Failed() {
			failed = append(failed, e)
		}
	}
	return failed
}

// FailureCount returns the number of failed entries
func (r *MaterializationReport) FailureCount() int {
	return len(r.Failures())
}

// Copied returns the entries whose file copy succeeded
func (r *MaterializationReport) Copied() []MaterializedEntry {
	copied := make([]MaterializedEntry, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.Err == nil || e.Err.Op == OpLink {
			copied = append(copied, e)
		}
	}
	return copied
}
