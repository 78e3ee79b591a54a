package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"rollq/internal/config"
)

// Store manages queue persistence backed by SQLite.
type Store struct {
	db       *sql.DB
	path     string
	lock     *flock.Flock
	lockPath string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "rollq.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "rollq.lock")
	store := &Store{
		db:       db,
		path:     dbPath,
		lock:     flock.New(lockPath),
		lockPath: lockPath,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AcquireLock takes the process-level mutation lock next to the database.
// Mutating callers hold it for the duration of their work so two processes
// never interleave read-then-write sequences on the same database.
func (s *Store) AcquireLock() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire queue lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("queue database %s is locked by another rollq process", s.path)
	}
	return nil
}

// ReleaseLock releases the process-level mutation lock.
func (s *Store) ReleaseLock() error {
	return s.lock.Unlock()
}

// GetByID fetches a queue entry by identifier. A missing id yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// GetByPosition fetches the entry at a position in an associate's queue.
func (s *Store) GetByPosition(ctx context.Context, associateID string, position int) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE associate_id = ? AND position = ?`,
		associateID,
		position,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry by position: %w", err)
	}
	return entry, nil
}

// FindBySession returns the lowest-position entry tracking a session reference.
func (s *Store) FindBySession(ctx context.Context, sessionRef string) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE session_ref = ? ORDER BY position LIMIT 1`,
		sessionRef,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by session: %w", err)
	}
	return entry, nil
}

// ListByAssociate returns every entry in an associate's queue, position ascending.
func (s *Store) ListByAssociate(ctx context.Context, associateID string) ([]*Entry, error) {
	return s.listEntries(
		ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE associate_id = ? ORDER BY position`,
		associateID,
	)
}

// ListByAssociateAndStatus returns an associate's entries with a status, position ascending.
func (s *Store) ListByAssociateAndStatus(ctx context.Context, associateID string, status Status) ([]*Entry, error) {
	return s.listEntries(
		ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE associate_id = ? AND status = ? ORDER BY position`,
		associateID,
		status,
	)
}

// Associates returns every associate id that currently has queue entries.
func (s *Store) Associates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT associate_id FROM queue_entries ORDER BY associate_id`)
	if err != nil {
		return nil, fmt.Errorf("list associates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Revision returns the current revision counter for an associate's queue.
// An associate with no recorded mutations has revision 0.
func (s *Store) Revision(ctx context.Context, associateID string) (int64, error) {
	var revision int64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE((SELECT revision FROM queue_revisions WHERE associate_id = ?), 0)`,
		associateID,
	).Scan(&revision)
	if err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return revision, nil
}

// Insert stores a new entry, assigning an id and timestamps when unset.
func (s *Store) Insert(ctx context.Context, entry *Entry) (string, error) {
	if entry == nil {
		return "", errors.New("entry is nil")
	}
	revision, err := s.Revision(ctx, entry.AssociateID)
	if err != nil {
		return "", err
	}
	if err := s.Apply(ctx, Batch{
		AssociateID: entry.AssociateID,
		Revision:    revision,
		Inserts:     []*Entry{entry},
	}); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// Delete removes an entry by identifier. It reports whether the entry existed.
// Deletion does not close the position gap; callers use Allocator.ShiftDown.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	entry, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	revision, err := s.Revision(ctx, entry.AssociateID)
	if err != nil {
		return false, err
	}
	if err := s.Apply(ctx, Batch{
		AssociateID: entry.AssociateID,
		Revision:    revision,
		DeleteIDs:   []string{id},
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) listEntries(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

const entryColumns = "id, associate_id, student_id, session_ref, position, status, priority, campus, added_at, started_at, completed_at, cancelled_at, notes, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id           string
		associateID  string
		studentID    string
		sessionRef   string
		position     int
		statusStr    string
		priorityStr  string
		campus       string
		addedRaw     sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		cancelledRaw sql.NullString
		notes        sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&associateID,
		&studentID,
		&sessionRef,
		&position,
		&statusStr,
		&priorityStr,
		&campus,
		&addedRaw,
		&startedRaw,
		&completedRaw,
		&cancelledRaw,
		&notes,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:          id,
		AssociateID: associateID,
		StudentID:   studentID,
		SessionRef:  sessionRef,
		Position:    position,
		Status:      Status(statusStr),
		Priority:    Priority(priorityStr),
		Campus:      campus,
		Notes:       notes.String,
	}

	if added, err := parseTimeString(addedRaw.String); err == nil {
		entry.AddedAt = added
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			entry.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			entry.CompletedAt = &completed
		}
	}
	if cancelledRaw.Valid {
		if cancelled, err := parseTimeString(cancelledRaw.String); err == nil {
			entry.CancelledAt = &cancelled
		}
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
