package queue

import (
	"fmt"
	"math"
	"time"
)

// Stats summarizes one associate's queue snapshot.
type Stats struct {
	AssociateID string
	Waiting     int
	InProgress  int
	Completed   int
	QueueLength int
	// AvgWaitMinutes is the mean wait of waiting entries, rounded to whole
	// minutes. Nil when nothing is waiting.
	AvgWaitMinutes *int
	// Current is the single in_progress entry, if any.
	Current *Entry
}

// AggregateStats derives queue statistics from an already-fetched snapshot.
// It performs no I/O. A snapshot with more than one in_progress entry, or an
// in_progress entry that is not first among non-terminal entries, signals a
// structural inconsistency and yields ErrInvariantViolation.
func AggregateStats(associateID string, entries []*Entry, now time.Time) (Stats, error) {
	stats := Stats{
		AssociateID: associateID,
		QueueLength: len(entries),
	}

	var totalWait time.Duration
	for _, entry := range entries {
		switch entry.Status {
		case StatusWaiting:
			stats.Waiting++
			totalWait += now.Sub(entry.AddedAt)
		case StatusInProgress:
			stats.InProgress++
			if stats.Current != nil {
				return Stats{}, fmt.Errorf("%w: associate %s has in_progress entries at positions %d and %d",
					ErrInvariantViolation, associateID, stats.Current.Position, entry.Position)
			}
			stats.Current = entry
		case StatusCompleted:
			stats.Completed++
		}
	}

	if stats.Current != nil {
		for _, entry := range entries {
			if entry.Status == StatusWaiting && entry.Position < stats.Current.Position {
				return Stats{}, fmt.Errorf("%w: associate %s has waiting entry at position %d ahead of in_progress at %d",
					ErrInvariantViolation, associateID, entry.Position, stats.Current.Position)
			}
		}
	}

	if stats.Waiting > 0 {
		minutes := int(math.Round(totalWait.Minutes() / float64(stats.Waiting)))
		stats.AvgWaitMinutes = &minutes
	}

	return stats, nil
}

// CheckContiguity verifies that the snapshot's positions form exactly 1..N
// with no duplicates or gaps, across every status.
func CheckContiguity(entries []*Entry) error {
	seen := make(map[int]struct{}, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.Position]; dup {
			return fmt.Errorf("%w: duplicate position %d", ErrInvariantViolation, entry.Position)
		}
		seen[entry.Position] = struct{}{}
	}
	for position := 1; position <= len(entries); position++ {
		if _, ok := seen[position]; !ok {
			return fmt.Errorf("%w: missing position %d of %d", ErrInvariantViolation, position, len(entries))
		}
	}
	return nil
}
