package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driven"
	"github.com/dietdesk/planner-core/internal/core/ports/driving"
)

// Ensure planEditor implements the interface
var _ driving.PlanEditor = (*planEditor)(nil)

// PlanEditorConfig holds configuration for the guarded write path
type PlanEditorConfig struct {
	DocumentID string
	Store      driven.DocumentStore
	Guard      *RestoreGuard
	Queue      *OperationQueue
	History    *HistoryManager
	Meals      *MealClipboard
	Days       *DayClipboard

	// Publisher announces document writes (optional)
	Publisher driven.ChangePublisher
	Origin    string

	Now    func() time.Time
	Logger *slog.Logger
}

// planEditor keeps the local copy of the document and funnels every edit
// through the OperationQueue, followed by a snapshot capture.
type planEditor struct {
	documentID string
	store      driven.DocumentStore
	guard      *RestoreGuard
	queue      *OperationQueue
	history    *HistoryManager
	meals      *MealClipboard
	days       *DayClipboard
	publisher  driven.ChangePublisher
	origin     string
	now        func() time.Time
	logger     *slog.Logger

	mu  sync.RWMutex
	doc *domain.Document
}

func newPlanEditor(cfg PlanEditorConfig) *planEditor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &planEditor{
		documentID: cfg.DocumentID,
		store:      cfg.Store,
		guard:      cfg.Guard,
		queue:      cfg.Queue,
		history:    cfg.History,
		meals:      cfg.Meals,
		days:       cfg.Days,
		publisher:  cfg.Publisher,
		origin:     cfg.Origin,
		now:        now,
		logger:     logger.With("document_id", cfg.DocumentID),
		doc:        domain.EmptyDocument(cfg.DocumentID),
	}
}

// Load reads the stored document. A document that does not exist yet
// starts out empty.
func (e *planEditor) Load(ctx context.Context) error {
	doc, err := e.store.Read(ctx, e.documentID)
	if errors.Is(err, domain.ErrNotFound) {
		doc = domain.EmptyDocument(e.documentID)
	} else if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	e.setDocument(doc)
	return nil
}

// setDocument replaces the local document, e.g. after a restore
func (e *planEditor) setDocument(doc *domain.Document) {
	if doc.Days == nil {
		doc.Days = []*domain.DayNode{}
	}
	e.mu.Lock()
	e.doc = doc
	e.mu.Unlock()
}

// Document returns a copy of the local document
func (e *planEditor) Document() *domain.Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.CloneDocument(e.doc, domain.KeepKeys)
}

// Apply mutates a copy of the local document, writes it and captures a
// snapshot. The mutated tree must pass Document.Validate; meal order
// indices are renumbered per day before the write. The local document
// rolls back when the write fails.
func (e *planEditor) Apply(ctx context.Context, trigger domain.TriggerKind, description string, mutate func(*domain.Document) error) (*domain.Document, error) {
	if !trigger.IsValid() {
		return nil, fmt.Errorf("%w: trigger %q", domain.ErrInvalidInput, trigger)
	}
	if !e.guard.IsIdle() {
		return nil, domain.ErrRestoreInProgress
	}

	e.mu.Lock()
	prev := e.doc
	next := domain.CloneDocument(prev, domain.KeepKeys)
	if err := mutate(next); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err := next.Validate(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	for _, day := range next.Days {
		domain.RenumberMeals(day.Meals)
	}
	next.UpdatedAt = e.now()
	e.doc = next
	e.mu.Unlock()

	err := e.queue.Do(ctx, func(opCtx context.Context) error {
		if !e.guard.IsIdle() {
			return domain.ErrRestoreInProgress
		}
		if err := e.store.Write(opCtx, e.documentID, next); err != nil {
			if errors.Is(err, domain.ErrPersistence) {
				return fmt.Errorf("write document: %w", err)
			}
			return fmt.Errorf("write document: %w: %v", domain.ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		e.mu.Lock()
		if e.doc == next {
			e.doc = prev
		}
		e.mu.Unlock()
		e.logger.Warn("edit rolled back", "trigger", trigger, "error", err)
		return nil, err
	}

	e.publishWrite(ctx)

	if _, err := e.history.Capture(ctx, trigger, description, domain.CaptureOptions{}); err != nil {
		// The edit is stored; only its history entry is missing
		e.logger.Error("capture after edit failed", "trigger", trigger, "error", err)
	}
	return domain.CloneDocument(next, domain.KeepKeys), nil
}

func (e *planEditor) publishWrite(ctx context.Context) {
	if e.publisher == nil {
		return
	}
	event := domain.ChangeEvent{
		Kind:       domain.ChangeDocumentWritten,
		DocumentID: e.documentID,
		Origin:     e.origin,
		At:         e.now(),
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("failed to publish change", "kind", event.Kind, "error", err)
	}
}

// PasteMeal inserts the copied meal into targetDayID at its original order
// index, shifting later meals. Returns nil, nil when nothing is copied.
func (e *planEditor) PasteMeal(ctx context.Context, targetDayID string) (*domain.MealNode, error) {
	meal := e.meals.Paste(targetDayID)
	if meal == nil {
		return nil, nil
	}

	var placed *domain.MealNode
	_, err := e.Apply(ctx, domain.TriggerMealAdded, "Pasted meal "+meal.Name, func(doc *domain.Document) error {
		day, _ := doc.Day(targetDayID)
		if day == nil {
			return fmt.Errorf("day %s: %w", targetDayID, domain.ErrNotFound)
		}
		day.InsertMeal(meal)
		placed = domain.CloneMeal(meal, domain.KeepKeys)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// PasteDay places the copied day according to opts. Returns the new or
// merged day, or nil, nil when nothing is copied.
func (e *planEditor) PasteDay(ctx context.Context, opts domain.DayPasteOptions) (*domain.DayNode, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	day := e.days.Paste()
	if day == nil {
		return nil, nil
	}

	var placed *domain.DayNode
	_, err := e.Apply(ctx, domain.TriggerManual, "Pasted day "+day.Name, func(doc *domain.Document) error {
		if opts.Mode == domain.DayPasteNew {
			doc.InsertDay(day, opts.Position)
			placed = domain.CloneDay(day, domain.KeepKeys)
			return nil
		}

		target, _ := doc.Day(opts.TargetDayID)
		if target == nil {
			return fmt.Errorf("day %s: %w", opts.TargetDayID, domain.ErrNotFound)
		}
		mergeDay(target, day, opts)
		placed = domain.CloneDay(target, domain.KeepKeys)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// mergeDay folds the pasted day's meals and targets into target
func mergeDay(target, pasted *domain.DayNode, opts domain.DayPasteOptions) {
	domain.RenumberMeals(pasted.Meals)

	switch opts.MealMode {
	case domain.MealMergeReplace:
		target.Meals = pasted.Meals
	case domain.MealMergeAppend:
		domain.RenumberMeals(target.Meals)
		offset := len(target.Meals)
		for _, meal := range pasted.Meals {
			meal.OrderIndex += offset
			target.Meals = append(target.Meals, meal)
		}
	}

	if opts.Targets == domain.TargetsReplace {
		target.Targets = pasted.Targets
	}
}

// ApplyCalculator scales ingredient quantities of the given meals. Meal
// macros follow the ingredients; meals without ingredients scale directly.
func (e *planEditor) ApplyCalculator(ctx context.Context, dayID string, factors map[string]float64) (*domain.Document, error) {
	if len(factors) == 0 {
		return nil, fmt.Errorf("%w: no scale factors", domain.ErrInvalidInput)
	}
	for mealID, f := range factors {
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: factor %v for meal %s", domain.ErrInvalidInput, f, mealID)
		}
	}

	return e.Apply(ctx, domain.TriggerCalculator, "Calculator adjustment", func(doc *domain.Document) error {
		day, _ := doc.Day(dayID)
		if day == nil {
			return fmt.Errorf("day %s: %w", dayID, domain.ErrNotFound)
		}
		for mealID, f := range factors {
			meal, _ := day.Meal(mealID)
			if meal == nil {
				return fmt.Errorf("meal %s: %w", mealID, domain.ErrNotFound)
			}
			if len(meal.Ingredients) == 0 {
				meal.Macros = meal.Macros.Scale(f)
				continue
			}
			for _, ing := range meal.Ingredients {
				ing.Quantity *= f
				ing.Macros = ing.Macros.Scale(f)
			}
			meal.RecomputeMacros()
		}
		return nil
	})
}
