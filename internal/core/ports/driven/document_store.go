package driven

import (
	"context"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

// DocumentStore persists meal-plan documents and their snapshots (PostgreSQL)
type DocumentStore interface {
	// Read retrieves a document by ID
	Read(ctx context.Context, id string) (*domain.Document, error)

	// Write replaces the stored document (last write wins)
	Write(ctx context.Context, id string, doc *domain.Document) error

	// ReadHistory returns the live snapshots for a document in capture order,
	// with CurrentIndex pointing at the stored head (-1 when none)
	ReadHistory(ctx context.Context, documentID string) (*domain.HistoryStack, error)

	// WriteSnapshot appends a snapshot. The store assigns Seq.
	WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error

	// ReplaceSnapshot overwrites the payload, hash, capture time and
	// description of a live snapshot, keeping its ID and Seq
	ReplaceSnapshot(ctx context.Context, snap *domain.Snapshot) error
}

// HistoryStore tracks the history pointer and branch truncation
type HistoryStore interface {
	// SetHead records which snapshot is active. An empty snapshotID means
	// the pointer sits before the first snapshot.
	SetHead(ctx context.Context, documentID, snapshotID string) error

	// DiscardAfter removes snapshots with Seq greater than afterSeq from the
	// live history. With prune they are deleted; otherwise only unreferenced.
	DiscardAfter(ctx context.Context, documentID string, afterSeq int64, prune bool) error
}
