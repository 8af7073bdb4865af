package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.DocumentStore = (*PlanStore)(nil)
	_ driven.HistoryStore  = (*PlanStore)(nil)
)

// PlanStore implements DocumentStore and HistoryStore using PostgreSQL
type PlanStore struct {
	db *DB
}

// NewPlanStore creates a new PlanStore
func NewPlanStore(db *DB) *PlanStore {
	return &PlanStore{db: db}
}

// Read retrieves a plan document by ID
func (s *PlanStore) Read(ctx context.Context, id string) (*domain.Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM plans WHERE id = $1`, id).Scan(&raw)
	if err != nil {
		return nil, storeError("read plan", err)
	}

	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w: %v", id, domain.ErrPersistence, err)
	}
	doc.ID = id
	if doc.Days == nil {
		doc.Days = []*domain.DayNode{}
	}
	return &doc, nil
}

// Write upserts the plan document
func (s *PlanStore) Write(ctx context.Context, id string, doc *domain.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode plan %s: %w", id, err)
	}

	query := `
		INSERT INTO plans (id, client_id, document, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			client_id = EXCLUDED.client_id,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, id, doc.ClientID, raw, doc.UpdatedAt)
	return storeError("write plan", err)
}

// ReadHistory loads the live snapshots of a plan in Seq order together
// with the stored head
func (s *PlanStore) ReadHistory(ctx context.Context, documentID string) (*domain.HistoryStack, error) {
	stack := domain.NewHistoryStack(documentID)

	// Entries and head are read in one transaction so a concurrent capture
	// cannot leave the head pointing past the entries read
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, plan_id, seq, captured_at, trigger_kind, description, version_name, payload_hash, payload
			FROM plan_snapshots
			WHERE plan_id = $1 AND discarded_at IS NULL
			ORDER BY seq ASC
		`, documentID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			snap, err := scanSnapshot(rows)
			if err != nil {
				return fmt.Errorf("scan snapshot: %w", err)
			}
			stack.Entries = append(stack.Entries, snap)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		var head sql.NullString
		err = tx.QueryRowContext(ctx,
			`SELECT snapshot_id FROM plan_history_heads WHERE plan_id = $1`, documentID,
		).Scan(&head)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// No head recorded yet: the newest snapshot is current
			stack.CurrentIndex = stack.Len() - 1
		case err != nil:
			return fmt.Errorf("read head: %w", err)
		case head.Valid:
			stack.CurrentIndex = stack.IndexOf(head.String)
		}
		return nil
	})
	if err != nil {
		return nil, storeError("read history", err)
	}
	return stack, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	var trigger string
	var versionName sql.NullString
	err := row.Scan(
		&snap.ID,
		&snap.DocumentID,
		&snap.Seq,
		&snap.CapturedAt,
		&trigger,
		&snap.Description,
		&versionName,
		&snap.PayloadHash,
		&snap.Payload,
	)
	if err != nil {
		return nil, err
	}
	snap.Trigger = domain.TriggerKind(trigger)
	snap.VersionName = StringPtr(versionName)
	return &snap, nil
}

// WriteSnapshot appends a snapshot and assigns the next Seq for its plan.
// Seq keeps counting across discarded rows.
func (s *PlanStore) WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	query := `
		INSERT INTO plan_snapshots (id, plan_id, seq, captured_at, trigger_kind, description, version_name, payload_hash, payload)
		VALUES ($1, $2, (SELECT COALESCE(MAX(seq), 0) + 1 FROM plan_snapshots WHERE plan_id = $2), $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`
	err := s.db.QueryRowContext(ctx, query,
		snap.ID,
		snap.DocumentID,
		snap.CapturedAt,
		string(snap.Trigger),
		snap.Description,
		NullString(snap.VersionName),
		snap.PayloadHash,
		snap.Payload,
	).Scan(&snap.Seq)
	return storeError("write snapshot", err)
}

// ReplaceSnapshot overwrites the content of a live snapshot in place.
// ID, Seq and version name are kept.
func (s *PlanStore) ReplaceSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	query := `
		UPDATE plan_snapshots
		SET captured_at = $3, description = $4, payload_hash = $5, payload = $6
		WHERE id = $1 AND plan_id = $2 AND discarded_at IS NULL
		RETURNING seq
	`
	err := s.db.QueryRowContext(ctx, query,
		snap.ID,
		snap.DocumentID,
		snap.CapturedAt,
		snap.Description,
		snap.PayloadHash,
		snap.Payload,
	).Scan(&snap.Seq)
	return storeError("replace snapshot", err)
}

// SetHead records the active snapshot. An empty ID stores NULL.
func (s *PlanStore) SetHead(ctx context.Context, documentID, snapshotID string) error {
	var head sql.NullString
	if snapshotID != "" {
		head = sql.NullString{String: snapshotID, Valid: true}
	}
	query := `
		INSERT INTO plan_history_heads (plan_id, snapshot_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (plan_id) DO UPDATE SET
			snapshot_id = EXCLUDED.snapshot_id,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, documentID, head)
	return storeError("set history head", err)
}

// DiscardAfter removes snapshots past afterSeq from the live history.
// With prune the rows are deleted; otherwise they are only marked discarded.
func (s *PlanStore) DiscardAfter(ctx context.Context, documentID string, afterSeq int64, prune bool) error {
	query := `
		UPDATE plan_snapshots SET discarded_at = NOW()
		WHERE plan_id = $1 AND seq > $2 AND discarded_at IS NULL
	`
	if prune {
		query = `DELETE FROM plan_snapshots WHERE plan_id = $1 AND seq > $2`
	}
	_, err := s.db.ExecContext(ctx, query, documentID, afterSeq)
	return storeError("discard snapshots", err)
}
