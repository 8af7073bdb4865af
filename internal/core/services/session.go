package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driven"
	"github.com/dietdesk/planner-core/internal/core/ports/driving"
)

// Ensure session implements the interface
var _ driving.Session = (*session)(nil)

// SessionConfig holds the collaborators for one editing session
type SessionConfig struct {
	DocumentID string
	UserID     string

	Store   driven.DocumentStore
	History driven.HistoryStore

	// Optional collaborators
	Notifier  driven.ChangeNotifier
	Publisher driven.ChangePublisher
	Lock      driven.DistributedLock

	CaptureWindow  time.Duration
	RestoreTimeout time.Duration
	PruneDiscarded bool

	IDGen  domain.IDGenerator
	Now    func() time.Time
	Logger *slog.Logger
}

// session wires the history engine, both clipboards and the editor for one
// (user, document) pair around a shared RestoreGuard and OperationQueue.
type session struct {
	id         string
	documentID string
	userID     string

	guard    *RestoreGuard
	queue    *OperationQueue
	history  *HistoryManager
	meals    *MealClipboard
	days     *DayClipboard
	editor   *planEditor
	notifier driven.ChangeNotifier
	sub      driven.Subscription
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// OpenSession builds a session, loads the document and its history
// concurrently and subscribes to remote changes.
func OpenSession(ctx context.Context, cfg SessionConfig) (driving.Session, error) {
	if cfg.DocumentID == "" {
		return nil, fmt.Errorf("%w: document id required", domain.ErrInvalidInput)
	}
	if cfg.Store == nil || cfg.History == nil {
		return nil, fmt.Errorf("%w: store required", domain.ErrInvalidInput)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = domain.UUIDv7()
	}

	s := &session{
		id:         idGen(),
		documentID: cfg.DocumentID,
		userID:     cfg.UserID,
		guard:      NewRestoreGuard(),
		notifier:   cfg.Notifier,
	}
	s.logger = logger.With("session_id", s.id, "document_id", cfg.DocumentID, "user_id", cfg.UserID)

	s.queue = NewOperationQueue(OperationQueueConfig{
		Name:   cfg.DocumentID,
		Lock:   cfg.Lock,
		Logger: s.logger,
	})
	s.meals = NewMealClipboard(idGen, s.logger)
	s.days = NewDayClipboard(idGen, s.logger)

	s.history = NewHistoryManager(HistoryManagerConfig{
		DocumentID:     cfg.DocumentID,
		Store:          cfg.Store,
		History:        cfg.History,
		Guard:          s.guard,
		Queue:          s.queue,
		Publisher:      cfg.Publisher,
		Policy:         NewCapturePolicy(cfg.CaptureWindow),
		Origin:         s.id,
		PruneDiscarded: cfg.PruneDiscarded,
		RestoreTimeout: cfg.RestoreTimeout,
		IDGen:          idGen,
		Now:            cfg.Now,
		OnRestore:      s.onRestore,
		OnRemoteChange: s.onRemoteChange,
		Logger:         logger,
	})

	s.editor = newPlanEditor(PlanEditorConfig{
		DocumentID: cfg.DocumentID,
		Store:      cfg.Store,
		Guard:      s.guard,
		Queue:      s.queue,
		History:    s.history,
		Meals:      s.meals,
		Days:       s.days,
		Publisher:  cfg.Publisher,
		Origin:     s.id,
		Now:        cfg.Now,
		Logger:     logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.editor.Load(gctx)
	})
	g.Go(func() error {
		_, err := s.history.Refresh(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.queue.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}

	if s.notifier != nil {
		sub, err := s.notifier.Subscribe(ctx, cfg.DocumentID, s.history.HandleChange)
		if err != nil {
			s.queue.Close()
			return nil, fmt.Errorf("subscribe to changes: %w", err)
		}
		s.sub = sub
	}

	s.logger.Info("session opened", "snapshots", s.history.History().Len())
	return s, nil
}

func (s *session) onRestore(doc *domain.Document) {
	s.editor.setDocument(doc)
}

// onRemoteChange reloads the local document after another session wrote it
func (s *session) onRemoteChange(event domain.ChangeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.editor.Load(ctx); err != nil {
		s.logger.Warn("reload after remote change failed", "kind", event.Kind, "error", err)
	}
}

func (s *session) Capture(ctx context.Context, trigger domain.TriggerKind, description string, opts domain.CaptureOptions) (*domain.Snapshot, error) {
	return s.history.Capture(ctx, trigger, description, opts)
}

func (s *session) Undo(ctx context.Context) (*domain.Document, error) {
	return s.history.Undo(ctx)
}

func (s *session) Redo(ctx context.Context) (*domain.Document, error) {
	return s.history.Redo(ctx)
}

func (s *session) CanUndo() bool {
	return s.history.CanUndo()
}

func (s *session) CanRedo() bool {
	return s.history.CanRedo()
}

func (s *session) History() *domain.HistoryStack {
	return s.history.History()
}

func (s *session) CopyMeal(meal *domain.MealNode, dayID string, orderIndex int) error {
	return s.meals.Copy(meal, dayID, orderIndex)
}

func (s *session) PasteMeal(ctx context.Context, targetDayID string) (*domain.MealNode, error) {
	return s.editor.PasteMeal(ctx, targetDayID)
}

func (s *session) CopyDay(day *domain.DayNode) error {
	return s.days.Copy(day)
}

func (s *session) PasteDay(ctx context.Context, opts domain.DayPasteOptions) (*domain.DayNode, error) {
	return s.editor.PasteDay(ctx, opts)
}

// ClearClipboard empties both clipboards
func (s *session) ClearClipboard() {
	s.meals.Clear()
	s.days.Clear()
}

func (s *session) IsActive() bool {
	return s.meals.IsActive() || s.days.IsActive()
}

func (s *session) IsLoading() bool {
	return s.history.IsLoading() || !s.guard.IsIdle()
}

func (s *session) Editor() driving.PlanEditor {
	return s.editor
}

func (s *session) DocumentID() string {
	return s.documentID
}

// Close unsubscribes from changes and drains the queue
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		if s.sub != nil {
			if err := s.notifier.Unsubscribe(s.sub); err != nil {
				s.closeErr = fmt.Errorf("unsubscribe: %w", err)
			}
		}
		s.queue.Close()
		s.logger.Info("session closed")
	})
	return s.closeErr
}
