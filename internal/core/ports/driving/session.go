package driving

import (
	"context"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

// PlanEditor applies edits through the guarded write path
type PlanEditor interface {
	// Apply mutates a copy of the current document, persists it and captures
	// a snapshot with trigger. The local document rolls back if the write fails.
	Apply(ctx context.Context, trigger domain.TriggerKind, description string, mutate func(*domain.Document) error) (*domain.Document, error)

	// ApplyCalculator scales meal quantities of one day by the given factors
	ApplyCalculator(ctx context.Context, dayID string, factors map[string]float64) (*domain.Document, error)

	// Document returns a copy of the current local document
	Document() *domain.Document
}

// Session is the core-facing API for one dietitian editing one document
type Session interface {
	Capture(ctx context.Context, trigger domain.TriggerKind, description string, opts domain.CaptureOptions) (*domain.Snapshot, error)
	Undo(ctx context.Context) (*domain.Document, error)
	Redo(ctx context.Context) (*domain.Document, error)
	CanUndo() bool
	CanRedo() bool
	History() *domain.HistoryStack

	CopyMeal(meal *domain.MealNode, dayID string, orderIndex int) error
	PasteMeal(ctx context.Context, targetDayID string) (*domain.MealNode, error)
	CopyDay(day *domain.DayNode) error
	PasteDay(ctx context.Context, opts domain.DayPasteOptions) (*domain.DayNode, error)
	ClearClipboard()

	// IsActive reports whether either clipboard holds a copy
	IsActive() bool
	// IsLoading reports whether history is loading or a restore is running
	IsLoading() bool

	Editor() PlanEditor
	DocumentID() string
	Close() error
}
