package domain

import "time"

// ChangeKind describes what changed remotely
type ChangeKind string

const (
	ChangeDocumentWritten ChangeKind = "document_written"
	ChangeSnapshotAdded   ChangeKind = "snapshot_added"
	ChangeHeadMoved       ChangeKind = "head_moved"
)

// ChangeEvent is delivered out of band when a document changes
type ChangeEvent struct {
	Kind       ChangeKind `json:"kind"`
	DocumentID string     `json:"document_id"`
	Origin     string     `json:"origin"` // Session that caused the change
	SnapshotID string     `json:"snapshot_id,omitempty"`
	At         time.Time  `json:"at"`
}
