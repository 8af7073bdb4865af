package driving

import (
	"context"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

// HistoryService owns the undo/redo history of one document
type HistoryService interface {
	// Capture records the current stored document as a new snapshot.
	// Returns nil, nil when the capture was coalesced or suppressed.
	Capture(ctx context.Context, trigger domain.TriggerKind, description string, opts domain.CaptureOptions) (*domain.Snapshot, error)

	// Undo restores the previous snapshot and returns the restored document
	Undo(ctx context.Context) (*domain.Document, error)

	// Redo restores the next snapshot and returns the restored document
	Redo(ctx context.Context) (*domain.Document, error)

	// Refresh reloads the history from the store
	Refresh(ctx context.Context) (*domain.HistoryStack, error)

	// History returns a copy of the in-memory history
	History() *domain.HistoryStack

	CanUndo() bool
	CanRedo() bool

	// IsLoading reports whether a refresh or restore is running
	IsLoading() bool
}
