package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldUpdate describes a partial update to a single entry. Nil fields are
// left untouched; updated_at is always refreshed by the store.
type FieldUpdate struct {
	ID          string
	Position    *int
	Status      *Status
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	Notes       *string
}

// Batch is the unit of atomic mutation against one associate's queue. All
// inserts, updates, and deletes in a batch land in a single transaction or
// not at all. Revision must carry the revision the caller observed when it
// read the queue; the batch is rejected with ErrStaleRevision when another
// writer has applied a batch since.
type Batch struct {
	AssociateID string
	Revision    int64
	Updates     []FieldUpdate
	Inserts     []*Entry
	DeleteIDs   []string
}

func (b Batch) empty() bool {
	return len(b.Updates) == 0 && len(b.Inserts) == 0 && len(b.DeleteIDs) == 0
}

// Apply runs a batch atomically. Entries referenced by Updates or DeleteIDs
// must exist and belong to the batch's associate; a miss rolls back the whole
// batch with ErrNotFound.
func (s *Store) Apply(ctx context.Context, batch Batch) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(batch.AssociateID) == "" {
		return errors.New("batch requires an associate id")
	}
	if batch.empty() {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		return s.applyOnce(ctx, batch)
	})
}

func (s *Store) applyOnce(ctx context.Context, batch Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := bumpRevision(ctx, tx, batch.AssociateID, batch.Revision); err != nil {
		return err
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	for _, entry := range batch.Inserts {
		if err := prepareInsert(entry, batch.AssociateID, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO queue_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID,
			entry.AssociateID,
			entry.StudentID,
			entry.SessionRef,
			entry.Position,
			entry.Status,
			entry.Priority,
			entry.Campus,
			entry.AddedAt.UTC().Format(time.RFC3339Nano),
			nullableTime(entry.StartedAt),
			nullableTime(entry.CompletedAt),
			nullableTime(entry.CancelledAt),
			nullableString(entry.Notes),
			entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	for _, update := range batch.Updates {
		sets := []string{"updated_at = ?"}
		args := []any{timestamp}

		if update.Position != nil {
			sets = append(sets, "position = ?")
			args = append(args, *update.Position)
		}
		if update.Status != nil {
			sets = append(sets, "status = ?")
			args = append(args, *update.Status)
		}
		if update.StartedAt != nil {
			sets = append(sets, "started_at = ?")
			args = append(args, update.StartedAt.UTC().Format(time.RFC3339Nano))
		}
		if update.CompletedAt != nil {
			sets = append(sets, "completed_at = ?")
			args = append(args, update.CompletedAt.UTC().Format(time.RFC3339Nano))
		}
		if update.CancelledAt != nil {
			sets = append(sets, "cancelled_at = ?")
			args = append(args, update.CancelledAt.UTC().Format(time.RFC3339Nano))
		}
		if update.Notes != nil {
			sets = append(sets, "notes = ?")
			args = append(args, nullableString(*update.Notes))
		}

		args = append(args, update.ID, batch.AssociateID)
		res, err := tx.ExecContext(
			ctx,
			`UPDATE queue_entries SET `+strings.Join(sets, ", ")+` WHERE id = ? AND associate_id = ?`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("update entry %s: %w", update.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, update.ID)
		}
	}

	for _, id := range batch.DeleteIDs {
		res, err := tx.ExecContext(
			ctx,
			`DELETE FROM queue_entries WHERE id = ? AND associate_id = ?`,
			id,
			batch.AssociateID,
		)
		if err != nil {
			return fmt.Errorf("delete entry %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func bumpRevision(ctx context.Context, tx *sql.Tx, associateID string, observed int64) error {
	res, err := tx.ExecContext(
		ctx,
		`UPDATE queue_revisions SET revision = revision + 1 WHERE associate_id = ? AND revision = ?`,
		associateID,
		observed,
	)
	if err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revision rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}
	if observed != 0 {
		return fmt.Errorf("%w: associate %s", ErrStaleRevision, associateID)
	}
	// First mutation for this associate; a constraint failure here means a
	// concurrent writer created the row after our read.
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO queue_revisions (associate_id, revision) VALUES (?, 1)`,
		associateID,
	); err != nil {
		return fmt.Errorf("%w: associate %s", ErrStaleRevision, associateID)
	}
	return nil
}

func prepareInsert(entry *Entry, associateID string, now time.Time) error {
	if entry == nil {
		return errors.New("insert entry is nil")
	}
	if entry.AssociateID != associateID {
		return fmt.Errorf("insert entry belongs to associate %q, batch targets %q", entry.AssociateID, associateID)
	}
	if entry.Position < 1 {
		return fmt.Errorf("%w: insert at %d", ErrInvalidPosition, entry.Position)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = StatusWaiting
	}
	if entry.Priority == "" {
		entry.Priority = PriorityMedium
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = now
	}
	entry.UpdatedAt = now
	return nil
}
