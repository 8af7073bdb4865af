package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// TriggerKind records which event caused a snapshot to be captured.
// Persisted as metadata; new kinds may be added.
type TriggerKind string

const (
	TriggerManual          TriggerKind = "manual"
	TriggerCalculator      TriggerKind = "calculator"
	TriggerMealAdded       TriggerKind = "meal_added"
	TriggerClientCreated   TriggerKind = "client_created"
	TriggerNotesEdit       TriggerKind = "notes_edit"
	TriggerTemplateApplied TriggerKind = "template_applied"
)

// IsValid reports whether the trigger kind is non-empty and printable
func (t TriggerKind) IsValid() bool {
	if t == "" || len(t) > 64 {
		return false
	}
	for _, r := range t {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}

// LowSignificance reports whether captures of this kind may be coalesced
func (t TriggerKind) LowSignificance() bool {
	return t == TriggerCalculator || t == TriggerNotesEdit
}

// Snapshot is an immutable, fully serialized copy of a document
type Snapshot struct {
	ID          string      `json:"id"`
	DocumentID  string      `json:"document_id"`
	Seq         int64       `json:"seq"` // Monotonic per document, assigned by the store
	CapturedAt  time.Time   `json:"captured_at"`
	Trigger     TriggerKind `json:"trigger"`
	Description string      `json:"description"`
	VersionName *string     `json:"version_name,omitempty"`
	PayloadHash string      `json:"payload_hash"`
	Payload     []byte      `json:"-"`
}

// CaptureOptions tunes a single capture call
type CaptureOptions struct {
	// SkipThrottle bypasses coalescing and duplicate suppression
	SkipThrottle bool

	// VersionName optionally labels the snapshot for the history list
	VersionName *string
}

// PayloadSchemaVersion is written into every payload
const PayloadSchemaVersion = 1

// SnapshotPayload is the serialized form stored in Snapshot.Payload
type SnapshotPayload struct {
	SchemaVersion int                   `json:"schema_version"`
	Document      *Document             `json:"document"`
	Targets       map[string]DayTargets `json:"targets"` // Keyed by day ID
	Notes         string                `json:"notes"`
}

// EncodePayload serializes a document, its per-day targets and notes
func EncodePayload(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidInput)
	}
	targets := make(map[string]DayTargets, len(doc.Days))
	for i, day := range doc.Days {
		if day == nil {
			return nil, fmt.Errorf("%w: day %d is null", ErrInvalidInput, i)
		}
		targets[day.ID] = day.Targets
	}
	return json.Marshal(SnapshotPayload{
		SchemaVersion: PayloadSchemaVersion,
		Document:      doc,
		Targets:       targets,
		Notes:         doc.Notes,
	})
}

// DecodePayload restores the document held in a snapshot payload.
// Any decode problem is reported as ErrCorruptSnapshot.
func DecodePayload(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorruptSnapshot)
	}

	var p SnapshotPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if p.SchemaVersion > PayloadSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrCorruptSnapshot, p.SchemaVersion)
	}
	if p.Document == nil {
		return nil, fmt.Errorf("%w: payload has no document", ErrCorruptSnapshot)
	}

	doc := p.Document
	if doc.Days == nil {
		doc.Days = []*DayNode{}
	}
	for _, day := range doc.Days {
		if day == nil {
			return nil, fmt.Errorf("%w: nil day in payload", ErrCorruptSnapshot)
		}
		if t, ok := p.Targets[day.ID]; ok {
			day.Targets = t
		}
		if day.Meals == nil {
			day.Meals = []*MealNode{}
		}
	}
	doc.Notes = p.Notes
	return doc, nil
}

// HashPayload returns a stable content hash used for duplicate detection
func HashPayload(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HistoryStack is the ordered list of snapshots for one document plus the
// pointer to the active entry. CurrentIndex is -1 when the pointer sits
// before the first snapshot.
type HistoryStack struct {
	DocumentID   string      `json:"document_id"`
	Entries      []*Snapshot `json:"entries"`
	CurrentIndex int         `json:"current_index"`
}

// NewHistoryStack creates an empty stack
func NewHistoryStack(documentID string) *HistoryStack {
	return &HistoryStack{
		DocumentID:   documentID,
		Entries:      []*Snapshot{},
		CurrentIndex: -1,
	}
}

// Len returns the number of entries
func (h *HistoryStack) Len() int {
	return len(h.Entries)
}

// CanUndo reports whether the pointer can move back
func (h *HistoryStack) CanUndo() bool {
	return h.CurrentIndex > -1
}

// CanRedo reports whether the pointer can move forward
func (h *HistoryStack) CanRedo() bool {
	return h.CurrentIndex < len(h.Entries)-1
}

// Current returns the active snapshot or nil
func (h *HistoryStack) Current() *Snapshot {
	return h.At(h.CurrentIndex)
}

// At returns the snapshot at i or nil when out of range
func (h *HistoryStack) At(i int) *Snapshot {
	if i < 0 || i >= len(h.Entries) {
		return nil
	}
	return h.Entries[i]
}

// IndexOf returns the position of a snapshot ID, or -1
func (h *HistoryStack) IndexOf(snapshotID string) int {
	for i, s := range h.Entries {
		if s.ID == snapshotID {
			return i
		}
	}
	return -1
}

// Truncate drops every entry after the pointer and returns what was dropped
func (h *HistoryStack) Truncate() []*Snapshot {
	if !h.CanRedo() {
		return nil
	}
	dropped := append([]*Snapshot(nil), h.Entries[h.CurrentIndex+1:]...)
	h.Entries = h.Entries[:h.CurrentIndex+1]
	return dropped
}

// Push truncates the redo branch, appends snap and points at it
func (h *HistoryStack) Push(snap *Snapshot) {
	h.Truncate()
	h.Entries = append(h.Entries, snap)
	h.CurrentIndex = len(h.Entries) - 1
}

// Clone returns a copy that shares snapshots but not the entry slice
func (h *HistoryStack) Clone() *HistoryStack {
	return &HistoryStack{
		DocumentID:   h.DocumentID,
		Entries:      append([]*Snapshot{}, h.Entries...),
		CurrentIndex: h.CurrentIndex,
	}
}
