package queue

import (
	"context"
	"fmt"
)

// Allocator owns every position computation that preserves the contiguous
// 1..N ordering of an associate's queue. Each mutating method reads a fresh
// snapshot, composes a single batch, and applies it; the revision check in
// Apply turns a lost read-then-write race into ErrStaleRevision.
type Allocator struct {
	store *Store
}

// NewAllocator returns an allocator bound to a store.
func NewAllocator(store *Store) *Allocator {
	return &Allocator{store: store}
}

// NextPosition returns the next free position for an associate: max+1, or 1
// for an empty queue. The value is computed from a fresh read immediately
// before use; the window between this read and the following insert is
// covered by the insert batch's revision check, not by isolation.
func (a *Allocator) NextPosition(ctx context.Context, associateID string) (int, error) {
	var max int
	err := a.store.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(position), 0) FROM queue_entries WHERE associate_id = ?`,
		associateID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	return max + 1, nil
}

// ShiftDown decrements the position of every entry above fromPosition by one,
// closing the gap left by a removal. Applied as a single batch.
func (a *Allocator) ShiftDown(ctx context.Context, associateID string, fromPosition int) error {
	entries, revision, err := a.snapshot(ctx, associateID)
	if err != nil {
		return err
	}
	updates := ShiftUpdates(entries, func(position int) bool { return position > fromPosition }, -1)
	if len(updates) == 0 {
		return nil
	}
	return a.store.Apply(ctx, Batch{AssociateID: associateID, Revision: revision, Updates: updates})
}

// ShiftUpRange increments the position of every entry within
// [fromPosition, toPosition] by one, opening a gap for an insertion.
// Applied as a single batch.
func (a *Allocator) ShiftUpRange(ctx context.Context, associateID string, fromPosition, toPosition int) error {
	entries, revision, err := a.snapshot(ctx, associateID)
	if err != nil {
		return err
	}
	updates := ShiftUpdates(entries, func(position int) bool {
		return position >= fromPosition && position <= toPosition
	}, 1)
	if len(updates) == 0 {
		return nil
	}
	return a.store.Apply(ctx, Batch{AssociateID: associateID, Revision: revision, Updates: updates})
}

// RenumberForMove moves one entry to newPosition and shifts the entries
// between its old and new positions, all in one batch. newPosition must lie in
// [1, N] for the associate's current entry count.
func (a *Allocator) RenumberForMove(ctx context.Context, associateID, entryID string, oldPosition, newPosition int) error {
	entries, revision, err := a.snapshot(ctx, associateID)
	if err != nil {
		return err
	}
	if newPosition < 1 || newPosition > len(entries) {
		return fmt.Errorf("%w: %d, queue size %d", ErrInvalidPosition, newPosition, len(entries))
	}
	if oldPosition == newPosition {
		return nil
	}

	var updates []FieldUpdate
	if oldPosition < newPosition {
		// Moving down the list: everything in between steps up one slot.
		updates = ShiftUpdates(entries, func(position int) bool {
			return position > oldPosition && position <= newPosition
		}, -1)
	} else {
		// Moving up the list: everything in between steps down one slot.
		updates = ShiftUpdates(entries, func(position int) bool {
			return position >= newPosition && position < oldPosition
		}, 1)
	}
	moved := newPosition
	updates = append(updates, FieldUpdate{ID: entryID, Position: &moved})

	return a.store.Apply(ctx, Batch{AssociateID: associateID, Revision: revision, Updates: updates})
}

// ShiftUpdates composes position updates, offset by delta, for every entry
// whose current position satisfies include. The moved entry itself is the
// caller's responsibility.
func ShiftUpdates(entries []*Entry, include func(position int) bool, delta int) []FieldUpdate {
	var updates []FieldUpdate
	for _, entry := range entries {
		if !include(entry.Position) {
			continue
		}
		shifted := entry.Position + delta
		updates = append(updates, FieldUpdate{ID: entry.ID, Position: &shifted})
	}
	return updates
}

func (a *Allocator) snapshot(ctx context.Context, associateID string) ([]*Entry, int64, error) {
	revision, err := a.store.Revision(ctx, associateID)
	if err != nil {
		return nil, 0, err
	}
	entries, err := a.store.ListByAssociate(ctx, associateID)
	if err != nil {
		return nil, 0, err
	}
	return entries, revision, nil
}
