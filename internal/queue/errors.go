package queue

import "errors"

var (
	// ErrNotFound indicates a referenced entry id does not exist.
	ErrNotFound = errors.New("queue entry not found")

	// ErrInvalidPosition indicates a target position outside [1, N] for the
	// associate's current entry count. No partial mutation is applied.
	ErrInvalidPosition = errors.New("position out of range")

	// ErrInvariantViolation indicates structural inconsistency discovered
	// during a read, such as two in_progress entries for one associate. It is
	// surfaced as a hard error to prompt manual reconciliation rather than
	// guessed-at auto-repair.
	ErrInvariantViolation = errors.New("queue invariant violation")

	// ErrStaleRevision indicates the associate's queue changed between the
	// read that computed a batch and the write that tried to apply it. The
	// batch was not applied; the caller may re-read and retry.
	ErrStaleRevision = errors.New("queue revision is stale")
)
