package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driven"
	"github.com/dietdesk/planner-core/internal/core/ports/driving"
	"github.com/dietdesk/planner-core/internal/metrics"
)

// Ensure HistoryManager implements the interface
var _ driving.HistoryService = (*HistoryManager)(nil)

// DefaultRestoreTimeout bounds a single undo or redo
const DefaultRestoreTimeout = 10 * time.Second

// HistoryManagerConfig holds configuration for a HistoryManager
type HistoryManagerConfig struct {
	DocumentID string
	Store      driven.DocumentStore
	History    driven.HistoryStore
	Guard      *RestoreGuard
	Queue      *OperationQueue

	// Publisher announces snapshots and head moves to other sessions (optional)
	Publisher driven.ChangePublisher

	// Policy decides coalescing. Defaults to NewCapturePolicy(DefaultCaptureWindow).
	Policy *CapturePolicy

	// Baseline is restored when undo moves before the first snapshot.
	// Defaults to an empty document.
	Baseline *domain.Document

	// Origin tags published events so the session can ignore its own echoes
	Origin string

	// PruneDiscarded deletes truncated snapshots instead of unreferencing them
	PruneDiscarded bool

	RestoreTimeout time.Duration
	IDGen          domain.IDGenerator
	Now            func() time.Time

	// OnRestore receives the document written by a successful undo or redo
	OnRestore func(doc *domain.Document)

	// OnRemoteChange runs after a notification from another session
	// refreshed the history
	OnRemoteChange func(event domain.ChangeEvent)

	Logger *slog.Logger
}

// HistoryManager keeps the snapshot history of one document and moves its
// pointer for undo and redo. Every write goes through the OperationQueue.
type HistoryManager struct {
	documentID     string
	store          driven.DocumentStore
	history        driven.HistoryStore
	guard          *RestoreGuard
	queue          *OperationQueue
	publisher      driven.ChangePublisher
	policy         *CapturePolicy
	baseline       *domain.Document
	origin         string
	prune          bool
	restoreTimeout time.Duration
	idGen          domain.IDGenerator
	now            func() time.Time
	onRestore      func(*domain.Document)
	onRemoteChange func(domain.ChangeEvent)
	logger         *slog.Logger

	mu    sync.RWMutex
	stack *domain.HistoryStack

	inFlight atomic.Bool
	loading  atomic.Int32
	ready    atomic.Bool
}

// NewHistoryManager creates a HistoryManager. Call Refresh before use.
func NewHistoryManager(cfg HistoryManagerConfig) *HistoryManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.Policy
	if policy == nil {
		policy = NewCapturePolicy(DefaultCaptureWindow)
	}
	baseline := cfg.Baseline
	if baseline == nil {
		baseline = domain.EmptyDocument(cfg.DocumentID)
	}
	restoreTimeout := cfg.RestoreTimeout
	if restoreTimeout <= 0 {
		restoreTimeout = DefaultRestoreTimeout
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = domain.UUIDv7()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &HistoryManager{
		documentID:     cfg.DocumentID,
		store:          cfg.Store,
		history:        cfg.History,
		guard:          cfg.Guard,
		queue:          cfg.Queue,
		publisher:      cfg.Publisher,
		policy:         policy,
		baseline:       domain.CloneDocument(baseline, domain.KeepKeys),
		origin:         cfg.Origin,
		prune:          cfg.PruneDiscarded,
		restoreTimeout: restoreTimeout,
		idGen:          idGen,
		now:            now,
		onRestore:      cfg.OnRestore,
		onRemoteChange: cfg.OnRemoteChange,
		logger:         logger.With("document_id", cfg.DocumentID),
		stack:          domain.NewHistoryStack(cfg.DocumentID),
	}
}

// Capture snapshots the stored document. A coalesced capture returns the
// overwritten head. Returns nil, nil when the capture was suppressed by a
// restore or identical to the head.
func (m *HistoryManager) Capture(ctx context.Context, trigger domain.TriggerKind, description string, opts domain.CaptureOptions) (*domain.Snapshot, error) {
	if !trigger.IsValid() {
		return nil, fmt.Errorf("%w: trigger %q", domain.ErrInvalidInput, trigger)
	}
	if !m.guard.IsIdle() {
		metrics.RecordCapture(string(trigger), metrics.CaptureSuppressed)
		m.logger.Debug("capture suppressed during restore", "trigger", trigger)
		return nil, nil
	}

	var snap *domain.Snapshot
	err := m.queue.Do(ctx, func(opCtx context.Context) error {
		var err error
		snap, err = m.capture(opCtx, trigger, description, opts)
		return err
	})
	if err != nil {
		metrics.RecordCapture(string(trigger), metrics.CaptureError)
		return nil, err
	}
	return snap, nil
}

func (m *HistoryManager) capture(ctx context.Context, trigger domain.TriggerKind, description string, opts domain.CaptureOptions) (*domain.Snapshot, error) {
	// A restore may have started while this op waited in the queue
	if !m.guard.IsIdle() {
		metrics.RecordCapture(string(trigger), metrics.CaptureSuppressed)
		return nil, nil
	}

	doc, err := m.store.Read(ctx, m.documentID)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	payload, err := domain.EncodePayload(doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	hash := domain.HashPayload(payload)

	m.mu.RLock()
	head := m.stack.Current()
	truncate := m.stack.CanRedo()
	m.mu.RUnlock()

	var headSeq int64
	if head != nil {
		headSeq = head.Seq
	}

	switch m.policy.Decide(trigger, hash, head, truncate, opts) {
	case CaptureCoalesced:
		return m.coalesce(ctx, head, description, hash, payload)
	case CaptureDuplicate:
		metrics.RecordCapture(string(trigger), metrics.CaptureSuppressed)
		m.logger.Debug("capture identical to head", "trigger", trigger)
		return nil, nil
	}

	if truncate {
		if err := m.history.DiscardAfter(ctx, m.documentID, headSeq, m.prune); err != nil {
			return nil, fmt.Errorf("truncate history: %w", err)
		}
	}

	snap := &domain.Snapshot{
		ID:          m.idGen(),
		DocumentID:  m.documentID,
		CapturedAt:  m.now(),
		Trigger:     trigger,
		Description: description,
		VersionName: opts.VersionName,
		PayloadHash: hash,
		Payload:     payload,
	}
	if err := m.store.WriteSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	if err := m.history.SetHead(ctx, m.documentID, snap.ID); err != nil {
		return nil, fmt.Errorf("set history head: %w", err)
	}

	m.mu.Lock()
	m.stack.Push(snap)
	index := m.stack.CurrentIndex
	m.mu.Unlock()

	metrics.RecordCapture(string(trigger), metrics.CaptureCreated)
	m.logger.Info("snapshot captured", "trigger", trigger, "index", index, "truncated", truncate)
	m.publish(ctx, domain.ChangeSnapshotAdded, snap.ID)
	return snap, nil
}

// coalesce overwrites the head snapshot with the latest content. The
// pointer does not move.
func (m *HistoryManager) coalesce(ctx context.Context, head *domain.Snapshot, description, hash string, payload []byte) (*domain.Snapshot, error) {
	snap := copySnapshot(head)
	snap.CapturedAt = m.now()
	snap.Description = description
	snap.PayloadHash = hash
	snap.Payload = payload
	if err := m.store.ReplaceSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("replace snapshot: %w", err)
	}

	m.mu.Lock()
	index := m.stack.IndexOf(snap.ID)
	if index >= 0 {
		m.stack.Entries[index] = snap
	}
	m.mu.Unlock()

	metrics.RecordCapture(string(snap.Trigger), metrics.CaptureCoalesced)
	m.logger.Debug("capture coalesced into head", "trigger", snap.Trigger, "index", index)
	m.publish(ctx, domain.ChangeSnapshotAdded, snap.ID)
	return copySnapshot(snap), nil
}

func copySnapshot(snap *domain.Snapshot) *domain.Snapshot {
	out := *snap
	out.Payload = append([]byte(nil), snap.Payload...)
	return &out
}

// Undo restores the previous snapshot, or the baseline from the first one
func (m *HistoryManager) Undo(ctx context.Context) (*domain.Document, error) {
	return m.move(ctx, "undo", -1)
}

// Redo restores the next snapshot
func (m *HistoryManager) Redo(ctx context.Context) (*domain.Document, error) {
	return m.move(ctx, "redo", 1)
}

func (m *HistoryManager) move(ctx context.Context, direction string, step int) (*domain.Document, error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%s: %w", direction, domain.ErrOperationInFlight)
	}

	m.mu.RLock()
	canMove := m.stack.CanUndo()
	if step > 0 {
		canMove = m.stack.CanRedo()
	}
	m.mu.RUnlock()
	if !canMove {
		m.inFlight.Store(false)
		if step > 0 {
			return nil, domain.ErrNothingToRedo
		}
		return nil, domain.ErrNothingToUndo
	}

	if err := m.guard.Begin(); err != nil {
		m.inFlight.Store(false)
		return nil, fmt.Errorf("%s: %w", direction, err)
	}
	m.loading.Add(1)
	started := m.now()

	finish := func() {
		m.loading.Add(-1)
		m.guard.End()
		m.inFlight.Store(false)
	}

	var restored *domain.Document
	ticket := m.queue.Enqueue(func(opCtx context.Context) error {
		restoreCtx, cancel := context.WithTimeout(opCtx, m.restoreTimeout)
		defer cancel()
		var err error
		restored, err = m.restore(restoreCtx, step)
		return err
	})

	select {
	case <-ticket.Done():
	case <-ctx.Done():
		// The restore keeps its guard until the queued op has finished
		go func() {
			<-ticket.Done()
			finish()
		}()
		return nil, fmt.Errorf("%s: %w", direction, ctx.Err())
	}
	finish()

	err := ticket.Err()
	metrics.RecordRestore(direction, err, m.now().Sub(started))
	if err != nil {
		m.logger.Error("restore failed", "direction", direction, "error", err)
		return nil, fmt.Errorf("%s: %w", direction, err)
	}
	return restored, nil
}

// restore writes the target snapshot's document and moves the pointer.
// The pointer is left unchanged on any failure.
func (m *HistoryManager) restore(ctx context.Context, step int) (*domain.Document, error) {
	m.mu.RLock()
	target := m.stack.CurrentIndex + step
	snap := m.stack.At(target)
	m.mu.RUnlock()
	if target < -1 {
		return nil, domain.ErrNothingToUndo
	}

	prev, err := m.store.Read(ctx, m.documentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, restoreFailed("read document", err)
	}

	var doc *domain.Document
	snapshotID := ""
	if target < 0 {
		doc = domain.CloneDocument(m.baseline, domain.KeepKeys)
		doc.ID = m.documentID
		// The baseline empties the day tree but stays attached to its client
		if prev != nil {
			doc.ClientID = prev.ClientID
			doc.Notes = prev.Notes
		}
	} else {
		if snap == nil {
			return nil, fmt.Errorf("%w: no snapshot at index %d", domain.ErrNotFound, target)
		}
		decoded, err := domain.DecodePayload(snap.Payload)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
		}
		doc = domain.CloneDocument(decoded, domain.FillMissingKeys(m.idGen))
		snapshotID = snap.ID
	}
	doc.UpdatedAt = m.now()

	if err := m.store.Write(ctx, m.documentID, doc); err != nil {
		return nil, restoreFailed("write document", err)
	}

	if err := m.guard.Flush(); err != nil {
		m.rollback(ctx, prev, doc)
		return nil, err
	}

	if err := m.history.SetHead(ctx, m.documentID, snapshotID); err != nil {
		m.rollback(ctx, prev, doc)
		return nil, restoreFailed("set history head", err)
	}

	m.mu.Lock()
	m.stack.CurrentIndex = target
	m.mu.Unlock()
	m.policy.Reset()

	if m.onRestore != nil {
		m.onRestore(domain.CloneDocument(doc, domain.KeepKeys))
	}
	m.logger.Info("history restored", "index", target, "snapshot_id", snapshotID)
	m.publish(ctx, domain.ChangeHeadMoved, snapshotID)
	return doc, nil
}

// rollback puts back the document a failed restore replaced, so the store
// matches the unmoved pointer again. When that write fails too the local
// copy follows the store instead.
func (m *HistoryManager) rollback(ctx context.Context, prev, written *domain.Document) {
	if prev != nil {
		err := m.store.Write(ctx, m.documentID, prev)
		if err == nil {
			return
		}
		m.logger.Error("restore rollback failed", "error", err)
	} else {
		m.logger.Warn("restore rollback skipped: no previous document")
	}
	if m.onRestore != nil {
		m.onRestore(domain.CloneDocument(written, domain.KeepKeys))
	}
}

func restoreFailed(step string, err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		return fmt.Errorf("%w: %s: %w", domain.ErrRestoreFailed, step, err)
	}
	return fmt.Errorf("%w: %s: %w: %v", domain.ErrRestoreFailed, step, domain.ErrPersistence, err)
}

// Refresh reloads the history from the store
func (m *HistoryManager) Refresh(ctx context.Context) (*domain.HistoryStack, error) {
	var stack *domain.HistoryStack
	err := m.queue.Do(ctx, func(opCtx context.Context) error {
		var err error
		stack, err = m.refresh(opCtx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stack, nil
}

func (m *HistoryManager) refresh(ctx context.Context) (*domain.HistoryStack, error) {
	m.loading.Add(1)
	defer m.loading.Add(-1)

	stack, err := m.store.ReadHistory(ctx, m.documentID)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if stack.CurrentIndex < -1 || stack.CurrentIndex >= stack.Len() {
		stack.CurrentIndex = stack.Len() - 1
	}

	m.mu.Lock()
	m.stack = stack
	m.mu.Unlock()
	m.ready.Store(true)

	m.logger.Debug("history refreshed", "entries", stack.Len(), "index", stack.CurrentIndex)
	return stack.Clone(), nil
}

// HandleChange is the ChangeNotifier callback. Events arriving during a
// restore, events from this session, and events for other documents are
// ignored. Others refresh the history asynchronously.
func (m *HistoryManager) HandleChange(event domain.ChangeEvent) {
	if !m.guard.IsIdle() {
		metrics.RecordNotification(metrics.NotificationSuppressed)
		return
	}
	if event.DocumentID != m.documentID || (m.origin != "" && event.Origin == m.origin) {
		metrics.RecordNotification(metrics.NotificationIgnored)
		return
	}
	metrics.RecordNotification(metrics.NotificationHandled)

	m.queue.Enqueue(func(ctx context.Context) error {
		if !m.guard.IsIdle() {
			return nil
		}
		if _, err := m.refresh(ctx); err != nil {
			m.logger.Warn("refresh after remote change failed", "kind", event.Kind, "error", err)
			return err
		}
		if m.onRemoteChange != nil {
			m.onRemoteChange(event)
		}
		return nil
	})
}

func (m *HistoryManager) publish(ctx context.Context, kind domain.ChangeKind, snapshotID string) {
	if m.publisher == nil {
		return
	}
	event := domain.ChangeEvent{
		Kind:       kind,
		DocumentID: m.documentID,
		Origin:     m.origin,
		SnapshotID: snapshotID,
		At:         m.now(),
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("failed to publish change", "kind", kind, "error", err)
	}
}

// History returns a copy of the in-memory history
func (m *HistoryManager) History() *domain.HistoryStack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stack.Clone()
}

// CanUndo reports whether the pointer can move back
func (m *HistoryManager) CanUndo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stack.CanUndo()
}

// CanRedo reports whether the pointer can move forward
func (m *HistoryManager) CanRedo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stack.CanRedo()
}

// IsLoading reports whether a refresh or restore is running
func (m *HistoryManager) IsLoading() bool {
	return m.loading.Load() > 0
}

// IsReady reports whether the history has been loaded at least once
func (m *HistoryManager) IsReady() bool {
	return m.ready.Load()
}
