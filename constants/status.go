package constants

// RecordStatus is the status stored in a pending-store record file.
type RecordStatus string

// RecordStatusPending marks a dispatched job waiting for its webhook (written to disk).
const RecordStatusPending RecordStatus = "pending"

// EntryKind classifies files found in the pending tree.
type EntryKind string

const (
	EntryPending   EntryKind = "PENDING"
	EntryFinalized EntryKind = "FINALIZED"
	EntryJournal   EntryKind = "JOURNAL" // finalize started but not committed
)
