package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driven"
)

var (
	_ driven.DocumentStore = (*MockPlanStore)(nil)
	_ driven.HistoryStore  = (*MockPlanStore)(nil)
)

// MockPlanStore is an in-memory DocumentStore and HistoryStore for testing.
// Documents and snapshots are deep-copied on the way in and out.
type MockPlanStore struct {
	mu        sync.Mutex
	documents map[string]*domain.Document
	snapshots map[string][]*domain.Snapshot // live history per document, Seq order
	discarded map[string][]*domain.Snapshot
	heads     map[string]string
	seqs      map[string]int64

	writes       int
	historyReads int
	replaced     int

	// Failure injection (optional)
	ReadFn          func(id string) (*domain.Document, error)
	WriteFn         func(id string, doc *domain.Document) error
	WriteSnapshotFn func(snap *domain.Snapshot) error
	SetHeadFn       func(documentID, snapshotID string) error
}

// NewMockPlanStore creates an empty store
func NewMockPlanStore() *MockPlanStore {
	return &MockPlanStore{
		documents: make(map[string]*domain.Document),
		snapshots: make(map[string][]*domain.Snapshot),
		discarded: make(map[string][]*domain.Snapshot),
		heads:     make(map[string]string),
		seqs:      make(map[string]int64),
	}
}

func (m *MockPlanStore) Read(ctx context.Context, id string) (*domain.Document, error) {
	if m.ReadFn != nil {
		return m.ReadFn(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return domain.CloneDocument(doc, domain.KeepKeys), nil
}

func (m *MockPlanStore) Write(ctx context.Context, id string, doc *domain.Document) error {
	if m.WriteFn != nil {
		if err := m.WriteFn(id, doc); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[id] = domain.CloneDocument(doc, domain.KeepKeys)
	m.writes++
	return nil
}

func (m *MockPlanStore) ReadHistory(ctx context.Context, documentID string) (*domain.HistoryStack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyReads++

	stack := domain.NewHistoryStack(documentID)
	for _, snap := range m.snapshots[documentID] {
		stack.Entries = append(stack.Entries, copySnapshot(snap))
	}
	if head := m.heads[documentID]; head != "" {
		stack.CurrentIndex = stack.IndexOf(head)
	}
	return stack, nil
}

func (m *MockPlanStore) WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if m.WriteSnapshotFn != nil {
		if err := m.WriteSnapshotFn(snap); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[snap.DocumentID]++
	snap.Seq = m.seqs[snap.DocumentID]
	m.snapshots[snap.DocumentID] = append(m.snapshots[snap.DocumentID], copySnapshot(snap))
	return nil
}

func (m *MockPlanStore) ReplaceSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, stored := range m.snapshots[snap.DocumentID] {
		if stored.ID != snap.ID {
			continue
		}
		replaced := copySnapshot(snap)
		replaced.Seq = stored.Seq
		replaced.VersionName = stored.VersionName
		m.snapshots[snap.DocumentID][i] = replaced
		snap.Seq = stored.Seq
		m.replaced++
		return nil
	}
	return fmt.Errorf("replace snapshot %s: %w", snap.ID, domain.ErrNotFound)
}

func (m *MockPlanStore) SetHead(ctx context.Context, documentID, snapshotID string) error {
	if m.SetHeadFn != nil {
		if err := m.SetHeadFn(documentID, snapshotID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heads[documentID] = snapshotID
	return nil
}

func (m *MockPlanStore) DiscardAfter(ctx context.Context, documentID string, afterSeq int64, prune bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []*domain.Snapshot
	for _, snap := range m.snapshots[documentID] {
		if snap.Seq <= afterSeq {
			kept = append(kept, snap)
			continue
		}
		if !prune {
			m.discarded[documentID] = append(m.discarded[documentID], snap)
		}
	}
	m.snapshots[documentID] = kept
	return nil
}

// Replaced returns how many snapshots were overwritten in place
func (m *MockPlanStore) Replaced() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaced
}

// Seed stores a document without counting it as a write
func (m *MockPlanStore) Seed(doc *domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ID] = domain.CloneDocument(doc, domain.KeepKeys)
}

// Writes returns how many document writes succeeded
func (m *MockPlanStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// HistoryReads returns how many times ReadHistory was called
func (m *MockPlanStore) HistoryReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyReads
}

// Snapshots returns the live snapshots of a document
func (m *MockPlanStore) Snapshots(documentID string) []*domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Snapshot, 0, len(m.snapshots[documentID]))
	for _, snap := range m.snapshots[documentID] {
		out = append(out, copySnapshot(snap))
	}
	return out
}

// Discarded returns the snapshots dropped from the live history but kept
func (m *MockPlanStore) Discarded(documentID string) []*domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Snapshot(nil), m.discarded[documentID]...)
}

// Head returns the stored head snapshot ID
func (m *MockPlanStore) Head(documentID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heads[documentID]
}

// CorruptSnapshot overwrites a stored payload
func (m *MockPlanStore) CorruptSnapshot(documentID, snapshotID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, snap := range m.snapshots[documentID] {
		if snap.ID == snapshotID {
			snap.Payload = payload
			return nil
		}
	}
	return fmt.Errorf("snapshot %s: %w", snapshotID, domain.ErrNotFound)
}

func copySnapshot(snap *domain.Snapshot) *domain.Snapshot {
	out := *snap
	out.Payload = append([]byte(nil), snap.Payload...)
	if snap.VersionName != nil {
		name := *snap.VersionName
		out.VersionName = &name
	}
	return &out
}
