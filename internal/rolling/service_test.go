package rolling_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"rollq/internal/directory"
	"rollq/internal/queue"
	"rollq/internal/rolling"
	"rollq/internal/testsupport"
)

func newManager(t *testing.T, dir directory.Directory) (*rolling.Manager, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if dir == nil {
		dir = directory.Static{}
	}
	return rolling.NewManager(store, dir, nil), store
}

func createEntries(t *testing.T, m *rolling.Manager, associateID string, count int) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		id, err := m.CreateEntry(ctx, associateID,
			fmt.Sprintf("student-%d", i),
			fmt.Sprintf("session-%s-%d", associateID, i),
			"campus-main", queue.PriorityMedium)
		if err != nil {
			t.Fatalf("CreateEntry failed: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func mustList(t *testing.T, m *rolling.Manager, associateID string) []*queue.Entry {
	t.Helper()
	entries, err := m.ListQueue(context.Background(), associateID)
	if err != nil {
		t.Fatalf("ListQueue failed: %v", err)
	}
	if err := queue.CheckContiguity(entries); err != nil {
		t.Fatalf("contiguity broken: %v", err)
	}
	return entries
}

func statusAt(entries []*queue.Entry, position int) queue.Status {
	for _, entry := range entries {
		if entry.Position == position {
			return entry.Status
		}
	}
	return ""
}

func TestCreateEntryAssignsSequentialPositions(t *testing.T) {
	m, _ := newManager(t, nil)
	createEntries(t, m, "aa-1", 3)

	entries := mustList(t, m, "aa-1")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Position != i+1 {
			t.Fatalf("expected position %d, got %d", i+1, entry.Position)
		}
		if entry.Status != queue.StatusWaiting {
			t.Fatalf("expected waiting status, got %s", entry.Status)
		}
	}
}

func TestGetNextAndCurrent(t *testing.T) {
	m, store := newManager(t, nil)
	ctx := context.Background()

	next, err := m.GetNext(ctx, "aa-1")
	if err != nil {
		t.Fatalf("GetNext failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil next on empty queue, got %+v", next)
	}
	current, err := m.GetCurrent(ctx, "aa-1")
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if current != nil {
		t.Fatalf("expected nil current on empty queue, got %+v", current)
	}

	createEntries(t, m, "aa-1", 2)
	entries := mustList(t, m, "aa-1")
	testsupport.SetStatus(t, store, entries[0], queue.StatusInProgress)

	current, err = m.GetCurrent(ctx, "aa-1")
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if current == nil || current.Position != 1 {
		t.Fatalf("expected in_progress entry at position 1, got %+v", current)
	}
	next, err = m.GetNext(ctx, "aa-1")
	if err != nil {
		t.Fatalf("GetNext failed: %v", err)
	}
	if next == nil || next.Position != 2 {
		t.Fatalf("expected waiting entry at position 2, got %+v", next)
	}
}

func TestAdvancePromotesNextEntry(t *testing.T) {
	m, store := newManager(t, nil)
	ctx := context.Background()
	createEntries(t, m, "aa-1", 3)

	// Shape the live queue: 1=in_progress, 2=waiting, 3=waiting.
	entries := mustList(t, m, "aa-1")
	testsupport.SetStatus(t, store, entries[0], queue.StatusInProgress)

	if err := m.Advance(ctx, "session-aa-1-1"); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	entries = mustList(t, m, "aa-1")
	if got := statusAt(entries, 1); got != queue.StatusCompleted {
		t.Fatalf("expected position 1 completed, got %s", got)
	}
	if got := statusAt(entries, 2); got != queue.StatusInProgress {
		t.Fatalf("expected position 2 in_progress, got %s", got)
	}
	if got := statusAt(entries, 3); got != queue.StatusWaiting {
		t.Fatalf("expected position 3 waiting, got %s", got)
	}

	for _, entry := range entries {
		switch entry.Position {
		case 1:
			if entry.CompletedAt == nil {
				t.Fatal("expected completed_at on finished entry")
			}
		case 2:
			if entry.StartedAt == nil {
				t.Fatal("expected started_at on promoted entry")
			}
		}
	}
}

func TestAdvanceLastEntryLeavesNoCurrent(t *testing.T) {
	m, _ := newManager(t, nil)
	ctx := context.Background()
	createEntries(t, m, "aa-1", 1)

	if err := m.Advance(ctx, "session-aa-1-1"); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	current, err := m.GetCurrent(ctx, "aa-1")
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if current != nil {
		t.Fatalf("expected no current after advancing last entry, got %+v", current)
	}
}

func TestAdvanceUnknownSessionIsNoOp(t *testing.T) {
	m, _ := newManager(t, nil)
	ctx := context.Background()
	createEntries(t, m, "aa-1", 2)

	before := mustList(t, m, "aa-1")
	if err := m.Advance(ctx, "session-not-queued"); err != nil {
		t.Fatalf("Advance should be a no-op, got %v", err)
	}
	after := mustList(t, m, "aa-1")

	for i := range before {
		if before[i].Status != after[i].Status || before[i].Position != after[i].Position {
			t.Fatalf("expected queue unchanged, entry %d differs", i)
		}
	}
}

func TestRemoveCompactsPositions(t *testing.T) {
	m, _ := newManager(t, nil)
	ctx := context.Background()
	ids := createEntries(t, m, "aa-1", 4)

	if err := m.Remove(ctx, ids[1]); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	entries := mustList(t, m, "aa-1")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Original relative order preserved: 1, 3, 4 now occupy 1, 2, 3.
	wantSessions := []string{"session-aa-1-1", "session-aa-1-3", "session-aa-1-4"}
	for i, entry := range entries {
		if entry.SessionRef != wantSessions[i] {
			t.Fatalf("position %d: expected %s, got %s", i+1, wantSessions[i], entry.SessionRef)
		}
	}
}

func TestRemoveUnknownEntry(t *testing.T) {
	m, _ := newManager(t, nil)
	err := m.Remove(context.Background(), "ghost")
	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReorderBoundaries(t *testing.T) {
	m, _ := newManager(t, nil)
	ctx := context.Background()
	ids := createEntries(t, m, "aa-1", 3)

	for _, target := range []int{0, 4} {
		err := m.Reorder(ctx, ids[0], target)
		if !errors.Is(err, queue.ErrInvalidPosition) {
			t.Fatalf("target %d: expected ErrInvalidPosition, got %v", target, err)
		}
	}

	entries := mustList(t, m, "aa-1")
	for i, entry := range entries {
		if entry.Position != i+1 {
			t.Fatalf("expected positions unchanged, got %d at index %d", entry.Position, i)
		}
	}
}

func TestReorderMovesEntry(t *testing.T) {
	m, _ := newManager(t, nil)
	ctx := context.Background()
	ids := createEntries(t, m, "aa-1", 3)

	if err := m.Reorder(ctx, ids[2], 1); err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}

	entries := mustList(t, m, "aa-1")
	if entries[0].ID != ids[2] || entries[1].ID != ids[0] || entries[2].ID != ids[1] {
		t.Fatalf("unexpected order after reorder: %v, %v, %v", entries[0].ID, entries[1].ID, entries[2].ID)
	}
}

func TestRequeueAppendsByDefault(t *testing.T) {
	m, _ := newManager(t, nil)
	ctx := context.Background()
	createEntries(t, m, "aa-1", 2)

	id, err := m.Requeue(ctx, "session-back", "student-9", "aa-1", "campus-main", rolling.RequeueOptions{})
	if err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}

	entries := mustList(t, m, "aa-1")
	if entries[len(entries)-1].ID != id || entries[len(entries)-1].Position != 3 {
		t.Fatalf("expected requeued entry appended at position 3, got %+v", entries[len(entries)-1])
	}
}

func TestRequeueToTopBypassesWaitingLine(t *testing.T) {
	m, store := newManager(t, nil)
	ctx := context.Background()
	ids := createEntries(t, m, "aa-1", 3)

	// Shape: 1=in_progress, 2=waiting, 3=waiting.
	shaped := mustList(t, m, "aa-1")
	testsupport.SetStatus(t, store, shaped[0], queue.StatusInProgress)

	id, err := m.Requeue(ctx, "session-returning", "student-9", "aa-1", "campus-main",
		rolling.RequeueOptions{InsertAtTop: true, Priority: queue.PriorityHigh})
	if err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}

	entries := mustList(t, m, "aa-1")
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	byID := make(map[string]*queue.Entry, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry
	}
	if byID[ids[0]].Position != 1 || byID[ids[0]].Status != queue.StatusInProgress {
		t.Fatalf("in_progress entry displaced: %+v", byID[ids[0]])
	}
	if byID[id].Position != 2 || byID[id].Status != queue.StatusWaiting {
		t.Fatalf("expected requeued entry waiting at position 2, got %+v", byID[id])
	}
	if byID[ids[1]].Position != 3 || byID[ids[2]].Position != 4 {
		t.Fatalf("expected old waiting entries shifted to 3 and 4, got %d and %d",
			byID[ids[1]].Position, byID[ids[2]].Position)
	}
}

func TestRequeueToTopEmptyQueueInsertsFirst(t *testing.T) {
	m, _ := newManager(t, nil)
	ctx := context.Background()

	id, err := m.Requeue(ctx, "session-only", "student-1", "aa-1", "campus-main",
		rolling.RequeueOptions{InsertAtTop: true})
	if err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}

	entries := mustList(t, m, "aa-1")
	if len(entries) != 1 || entries[0].ID != id || entries[0].Position != 1 {
		t.Fatalf("expected single entry at position 1, got %+v", entries)
	}
}

func TestCancelKeepsPosition(t *testing.T) {
	m, _ := newManager(t, nil)
	ctx := context.Background()
	ids := createEntries(t, m, "aa-1", 3)

	if err := m.Cancel(ctx, ids[1]); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	entries := mustList(t, m, "aa-1")
	if got := statusAt(entries, 2); got != queue.StatusCancelled {
		t.Fatalf("expected position 2 cancelled, got %s", got)
	}

	// Terminal entries cannot be cancelled again.
	if err := m.Cancel(ctx, ids[1]); err == nil {
		t.Fatal("expected error cancelling a cancelled entry")
	}
}

func TestUpdateNotes(t *testing.T) {
	m, store := newManager(t, nil)
	ctx := context.Background()
	ids := createEntries(t, m, "aa-1", 1)

	if err := m.UpdateNotes(ctx, ids[0], "student prefers mornings"); err != nil {
		t.Fatalf("UpdateNotes failed: %v", err)
	}

	entry, err := store.GetByID(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if entry.Notes != "student prefers mornings" {
		t.Fatalf("unexpected notes: %q", entry.Notes)
	}
}

func TestGetStats(t *testing.T) {
	m, store := newManager(t, nil)
	ctx := context.Background()
	createEntries(t, m, "aa-1", 6)

	entries := mustList(t, m, "aa-1")
	for _, entry := range entries {
		switch {
		case entry.Position <= 3:
			testsupport.SetStatus(t, store, entry, queue.StatusCompleted)
		case entry.Position == 4:
			testsupport.SetStatus(t, store, entry, queue.StatusInProgress)
		}
	}

	stats, err := m.GetStats(ctx, "aa-1")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Waiting != 2 || stats.InProgress != 1 || stats.Completed != 3 || stats.QueueLength != 6 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Current == nil || stats.Current.Position != 4 {
		t.Fatalf("expected current at position 4, got %+v", stats.Current)
	}
}

func TestGetStatsByCampus(t *testing.T) {
	dir := directory.Static{"campus-main": {"aa-1", "aa-2"}}
	m, _ := newManager(t, dir)
	ctx := context.Background()

	createEntries(t, m, "aa-1", 2)
	createEntries(t, m, "aa-2", 1)

	stats, err := m.GetStatsByCampus(ctx, "campus-main")
	if err != nil {
		t.Fatalf("GetStatsByCampus failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected stats for 2 associates, got %d", len(stats))
	}
	if stats[0].AssociateID != "aa-1" || stats[0].QueueLength != 2 {
		t.Fatalf("unexpected stats for aa-1: %+v", stats[0])
	}
	if stats[1].AssociateID != "aa-2" || stats[1].QueueLength != 1 {
		t.Fatalf("unexpected stats for aa-2: %+v", stats[1])
	}
}

func TestClearCompletedCompacts(t *testing.T) {
	m, store := newManager(t, nil)
	ctx := context.Background()
	createEntries(t, m, "aa-1", 5)

	entries := mustList(t, m, "aa-1")
	for _, entry := range entries {
		if entry.Position == 1 || entry.Position == 3 {
			testsupport.SetStatus(t, store, entry, queue.StatusCompleted)
		}
	}

	removed, err := m.ClearCompleted(ctx, "aa-1")
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	after := mustList(t, m, "aa-1")
	if len(after) != 3 {
		t.Fatalf("expected 3 survivors, got %d", len(after))
	}
	wantSessions := []string{"session-aa-1-2", "session-aa-1-4", "session-aa-1-5"}
	for i, entry := range after {
		if entry.SessionRef != wantSessions[i] || entry.Position != i+1 {
			t.Fatalf("survivor %d: expected %s at position %d, got %s at %d",
				i, wantSessions[i], i+1, entry.SessionRef, entry.Position)
		}
	}
}

func TestClearCompletedNothingToClear(t *testing.T) {
	m, _ := newManager(t, nil)
	removed, err := m.ClearCompleted(context.Background(), "aa-1")
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected 0 removed, got %d", removed)
	}
}

func TestInvariantsHoldAcrossMixedOperations(t *testing.T) {
	m, _ := newManager(t, nil)
	ctx := context.Background()
	ids := createEntries(t, m, "aa-1", 5)

	if err := m.Advance(ctx, "session-aa-1-1"); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if err := m.Remove(ctx, ids[3]); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := m.Reorder(ctx, ids[4], 2); err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}
	if _, err := m.Requeue(ctx, "session-return", "student-9", "aa-1", "campus-main",
		rolling.RequeueOptions{InsertAtTop: true}); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}

	// mustList checks contiguity (invariant 1) on every read.
	entries := mustList(t, m, "aa-1")

	inProgress := 0
	for _, entry := range entries {
		if entry.Status == queue.StatusInProgress {
			inProgress++
		}
	}
	if inProgress > 1 {
		t.Fatalf("expected at most one in_progress entry, got %d", inProgress)
	}
}
