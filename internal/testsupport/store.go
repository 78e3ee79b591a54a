package testsupport

import (
	"context"
	"testing"

	"rollq/internal/config"
	"rollq/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedEntry inserts a waiting entry at the end of an associate's queue.
func SeedEntry(t testing.TB, store *queue.Store, associateID, studentID, sessionRef string) *queue.Entry {
	t.Helper()

	ctx := context.Background()
	alloc := queue.NewAllocator(store)
	position, err := alloc.NextPosition(ctx, associateID)
	if err != nil {
		t.Fatalf("NextPosition: %v", err)
	}
	entry := &queue.Entry{
		AssociateID: associateID,
		StudentID:   studentID,
		SessionRef:  sessionRef,
		Campus:      "campus-main",
		Position:    position,
		Status:      queue.StatusWaiting,
	}
	if _, err := store.Insert(ctx, entry); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return entry
}

// SetStatus forces an entry's status, bypassing manager transition rules.
func SetStatus(t testing.TB, store *queue.Store, entry *queue.Entry, status queue.Status) {
	t.Helper()

	ctx := context.Background()
	revision, err := store.Revision(ctx, entry.AssociateID)
	if err != nil {
		t.Fatalf("store.Revision: %v", err)
	}
	if err := store.Apply(ctx, queue.Batch{
		AssociateID: entry.AssociateID,
		Revision:    revision,
		Updates:     []queue.FieldUpdate{{ID: entry.ID, Status: &status}},
	}); err != nil {
		t.Fatalf("store.Apply: %v", err)
	}
	entry.Status = status
}
