package rolling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rollq/internal/directory"
	"rollq/internal/logging"
	"rollq/internal/queue"
)

// Manager is the rolling queue API. All operations act on a single
// associate's queue unless noted.
type Manager struct {
	store  *queue.Store
	alloc  *queue.Allocator
	dir    directory.Directory
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// RequeueOptions controls where a requeued session lands.
type RequeueOptions struct {
	Priority queue.Priority
	// InsertAtTop places the entry directly behind the current in_progress
	// entry (or at position 1 when nothing is in progress) instead of
	// appending to the end of the queue.
	InsertAtTop bool
}

// NewManager wires the rolling queue manager. A nil logger logs nowhere.
func NewManager(store *queue.Store, dir directory.Directory, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		alloc:  queue.NewAllocator(store),
		dir:    dir,
		logger: logging.WithComponent(logger, "rolling-queue"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Allocator exposes the manager's position allocator, mainly for tests and
// maintenance tooling.
func (m *Manager) Allocator() *queue.Allocator {
	return m.alloc
}

// CreateEntry appends a new waiting entry to the end of an associate's queue
// and returns its id.
func (m *Manager) CreateEntry(ctx context.Context, associateID, studentID, sessionRef, campus string, priority queue.Priority) (string, error) {
	lock := m.associateLock(associateID)
	lock.Lock()
	defer lock.Unlock()

	position, err := m.alloc.NextPosition(ctx, associateID)
	if err != nil {
		return "", err
	}

	entry := &queue.Entry{
		AssociateID: associateID,
		StudentID:   studentID,
		SessionRef:  sessionRef,
		Campus:      campus,
		Priority:    priority,
		Position:    position,
		Status:      queue.StatusWaiting,
	}
	id, err := m.store.Insert(ctx, entry)
	if err != nil {
		return "", err
	}

	m.logger.Info("queue entry created",
		slog.String(logging.FieldEntryID, id),
		slog.String(logging.FieldAssociateID, associateID),
		slog.String(logging.FieldSessionRef, sessionRef),
		slog.Int(logging.FieldPosition, position),
	)
	return id, nil
}

// ListQueue returns an associate's entries ordered by position ascending.
func (m *Manager) ListQueue(ctx context.Context, associateID string) ([]*queue.Entry, error) {
	return m.store.ListByAssociate(ctx, associateID)
}

// GetNext returns the lowest-position waiting entry, or nil when nothing is
// waiting. An empty queue is not an error.
func (m *Manager) GetNext(ctx context.Context, associateID string) (*queue.Entry, error) {
	waiting, err := m.store.ListByAssociateAndStatus(ctx, associateID, queue.StatusWaiting)
	if err != nil {
		return nil, err
	}
	if len(waiting) == 0 {
		return nil, nil
	}
	return waiting[0], nil
}

// GetCurrent returns the in_progress entry, or nil when none exists. Finding
// more than one is a structural inconsistency.
func (m *Manager) GetCurrent(ctx context.Context, associateID string) (*queue.Entry, error) {
	inProgress, err := m.store.ListByAssociateAndStatus(ctx, associateID, queue.StatusInProgress)
	if err != nil {
		return nil, err
	}
	switch len(inProgress) {
	case 0:
		return nil, nil
	case 1:
		return inProgress[0], nil
	default:
		return nil, fmt.Errorf("%w: associate %s has %d in_progress entries",
			queue.ErrInvariantViolation, associateID, len(inProgress))
	}
}

// Advance completes the entry tracking sessionRef and promotes the entry at
// the next position to in_progress, both in one atomic batch. Completed
// entries keep their position; the queue is never compacted by advancement.
// A session with no queue entry is a logged no-op, not an error.
func (m *Manager) Advance(ctx context.Context, sessionRef string) error {
	entry, err := m.store.FindBySession(ctx, sessionRef)
	if err != nil {
		return err
	}
	if entry == nil {
		m.logger.Warn("advance skipped, no queue entry for session",
			slog.String(logging.FieldSessionRef, sessionRef))
		return nil
	}

	lock := m.associateLock(entry.AssociateID)
	lock.Lock()
	defer lock.Unlock()

	revision, err := m.store.Revision(ctx, entry.AssociateID)
	if err != nil {
		return err
	}
	next, err := m.store.GetByPosition(ctx, entry.AssociateID, entry.Position+1)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	completed := queue.StatusCompleted
	updates := []queue.FieldUpdate{{
		ID:          entry.ID,
		Status:      &completed,
		CompletedAt: &now,
	}}
	if next != nil {
		inProgress := queue.StatusInProgress
		updates = append(updates, queue.FieldUpdate{
			ID:        next.ID,
			Status:    &inProgress,
			StartedAt: &now,
		})
	}

	if err := m.store.Apply(ctx, queue.Batch{
		AssociateID: entry.AssociateID,
		Revision:    revision,
		Updates:     updates,
	}); err != nil {
		return err
	}

	m.logger.Info("queue advanced",
		slog.String(logging.FieldAssociateID, entry.AssociateID),
		slog.String(logging.FieldSessionRef, sessionRef),
		slog.Int(logging.FieldPosition, entry.Position),
		slog.Bool("promoted_next", next != nil),
	)
	return nil
}

// Remove deletes an entry and closes the position gap it leaves. The delete
// and the shift are two separate batches; if the shift fails the queue is
// left with a gap the caller must reconcile.
func (m *Manager) Remove(ctx context.Context, entryID string) error {
	entry, err := m.store.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, entryID)
	}

	lock := m.associateLock(entry.AssociateID)
	lock.Lock()
	defer lock.Unlock()

	found, err := m.store.Delete(ctx, entryID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, entryID)
	}

	if err := m.alloc.ShiftDown(ctx, entry.AssociateID, entry.Position); err != nil {
		m.logger.Warn("entry removed but gap not closed, queue needs compaction",
			slog.String(logging.FieldEntryID, entryID),
			slog.String(logging.FieldAssociateID, entry.AssociateID),
			slog.Int(logging.FieldPosition, entry.Position),
		)
		return fmt.Errorf("close gap after removing %s: %w", entryID, err)
	}

	m.logger.Info("queue entry removed",
		slog.String(logging.FieldEntryID, entryID),
		slog.String(logging.FieldAssociateID, entry.AssociateID),
		slog.Int(logging.FieldPosition, entry.Position),
	)
	return nil
}

// Cancel marks a waiting or in_progress entry cancelled. The entry keeps its
// position, matching the no-compaction policy for completed entries.
func (m *Manager) Cancel(ctx context.Context, entryID string) error {
	entry, err := m.store.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, entryID)
	}
	if entry.IsTerminal() {
		return fmt.Errorf("cannot cancel entry %s: status is already %s", entryID, entry.Status)
	}

	lock := m.associateLock(entry.AssociateID)
	lock.Lock()
	defer lock.Unlock()

	revision, err := m.store.Revision(ctx, entry.AssociateID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	cancelled := queue.StatusCancelled
	if err := m.store.Apply(ctx, queue.Batch{
		AssociateID: entry.AssociateID,
		Revision:    revision,
		Updates: []queue.FieldUpdate{{
			ID:          entryID,
			Status:      &cancelled,
			CancelledAt: &now,
		}},
	}); err != nil {
		return err
	}

	m.logger.Info("queue entry cancelled",
		slog.String(logging.FieldEntryID, entryID),
		slog.String(logging.FieldAssociateID, entry.AssociateID),
	)
	return nil
}

// Reorder moves an entry to newPosition within its associate's queue.
// Positions outside [1, N] fail with queue.ErrInvalidPosition and leave the
// queue unchanged.
func (m *Manager) Reorder(ctx context.Context, entryID string, newPosition int) error {
	entry, err := m.store.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, entryID)
	}

	lock := m.associateLock(entry.AssociateID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.alloc.RenumberForMove(ctx, entry.AssociateID, entryID, entry.Position, newPosition); err != nil {
		return err
	}

	m.logger.Info("queue entry reordered",
		slog.String(logging.FieldEntryID, entryID),
		slog.String(logging.FieldAssociateID, entry.AssociateID),
		slog.Int("old_position", entry.Position),
		slog.Int("new_position", newPosition),
	)
	return nil
}

// Requeue re-inserts a session into an associate's queue. Without
// InsertAtTop it appends like CreateEntry; with it, the entry lands directly
// behind the current in_progress entry so it bypasses the waiting line
// without displacing work already underway. The shift and the insert land in
// one atomic batch.
func (m *Manager) Requeue(ctx context.Context, sessionRef, studentID, associateID, campus string, opts RequeueOptions) (string, error) {
	if !opts.InsertAtTop {
		return m.CreateEntry(ctx, associateID, studentID, sessionRef, campus, opts.Priority)
	}

	lock := m.associateLock(associateID)
	lock.Lock()
	defer lock.Unlock()

	revision, err := m.store.Revision(ctx, associateID)
	if err != nil {
		return "", err
	}
	entries, err := m.store.ListByAssociate(ctx, associateID)
	if err != nil {
		return "", err
	}

	insertPosition := 1
	for _, entry := range entries {
		if entry.Status == queue.StatusInProgress {
			insertPosition = entry.Position + 1
			break
		}
	}

	updates := queue.ShiftUpdates(entries, func(position int) bool {
		return position >= insertPosition
	}, 1)

	entry := &queue.Entry{
		AssociateID: associateID,
		StudentID:   studentID,
		SessionRef:  sessionRef,
		Campus:      campus,
		Priority:    opts.Priority,
		Position:    insertPosition,
		Status:      queue.StatusWaiting,
	}

	if err := m.store.Apply(ctx, queue.Batch{
		AssociateID: associateID,
		Revision:    revision,
		Updates:     updates,
		Inserts:     []*queue.Entry{entry},
	}); err != nil {
		return "", err
	}

	m.logger.Info("session requeued at top",
		slog.String(logging.FieldEntryID, entry.ID),
		slog.String(logging.FieldAssociateID, associateID),
		slog.String(logging.FieldSessionRef, sessionRef),
		slog.Int(logging.FieldPosition, insertPosition),
	)
	return entry.ID, nil
}

// UpdateNotes replaces the free-form annotation on an entry.
func (m *Manager) UpdateNotes(ctx context.Context, entryID, notes string) error {
	entry, err := m.store.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, entryID)
	}

	lock := m.associateLock(entry.AssociateID)
	lock.Lock()
	defer lock.Unlock()

	revision, err := m.store.Revision(ctx, entry.AssociateID)
	if err != nil {
		return err
	}
	return m.store.Apply(ctx, queue.Batch{
		AssociateID: entry.AssociateID,
		Revision:    revision,
		Updates:     []queue.FieldUpdate{{ID: entryID, Notes: &notes}},
	})
}

// GetStats aggregates an associate's queue snapshot.
func (m *Manager) GetStats(ctx context.Context, associateID string) (queue.Stats, error) {
	entries, err := m.store.ListByAssociate(ctx, associateID)
	if err != nil {
		return queue.Stats{}, err
	}
	return queue.AggregateStats(associateID, entries, time.Now().UTC())
}

// GetStatsByCampus aggregates stats for every associate the directory places
// in a campus.
func (m *Manager) GetStatsByCampus(ctx context.Context, campus string) ([]queue.Stats, error) {
	associateIDs, err := m.dir.AssociatesForCampus(ctx, campus)
	if err != nil {
		return nil, fmt.Errorf("resolve associates for campus %q: %w", campus, err)
	}

	stats := make([]queue.Stats, 0, len(associateIDs))
	for _, associateID := range associateIDs {
		s, err := m.GetStats(ctx, associateID)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// ClearCompleted bulk-deletes an associate's completed entries and renumbers
// the survivors in the same batch, so positions stay contiguous across every
// status. It returns the number of entries removed.
func (m *Manager) ClearCompleted(ctx context.Context, associateID string) (int, error) {
	lock := m.associateLock(associateID)
	lock.Lock()
	defer lock.Unlock()

	revision, err := m.store.Revision(ctx, associateID)
	if err != nil {
		return 0, err
	}
	entries, err := m.store.ListByAssociate(ctx, associateID)
	if err != nil {
		return 0, err
	}

	var deleteIDs []string
	var updates []queue.FieldUpdate
	nextPosition := 1
	for _, entry := range entries {
		if entry.Status == queue.StatusCompleted {
			deleteIDs = append(deleteIDs, entry.ID)
			continue
		}
		if entry.Position != nextPosition {
			position := nextPosition
			updates = append(updates, queue.FieldUpdate{ID: entry.ID, Position: &position})
		}
		nextPosition++
	}

	if len(deleteIDs) == 0 {
		return 0, nil
	}

	if err := m.store.Apply(ctx, queue.Batch{
		AssociateID: associateID,
		Revision:    revision,
		Updates:     updates,
		DeleteIDs:   deleteIDs,
	}); err != nil {
		return 0, err
	}

	m.logger.Info("completed entries cleared",
		slog.String(logging.FieldAssociateID, associateID),
		slog.Int("removed", len(deleteIDs)),
	)
	return len(deleteIDs), nil
}

func (m *Manager) associateLock(associateID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[associateID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[associateID] = lock
	}
	return lock
}
