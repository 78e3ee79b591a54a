package queue

import (
	"context"
	"fmt"
)

// Assign records that an associate serves a campus. Assigning twice is a no-op.
func (s *Store) Assign(ctx context.Context, associateID, campus string) error {
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO associate_assignments (associate_id, campus) VALUES (?, ?)`,
		associateID,
		campus,
	); err != nil {
		return fmt.Errorf("assign associate: %w", err)
	}
	return nil
}

// Unassign removes an associate's campus assignment. It reports whether the
// assignment existed.
func (s *Store) Unassign(ctx context.Context, associateID, campus string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM associate_assignments WHERE associate_id = ? AND campus = ?`,
		associateID,
		campus,
	)
	if err != nil {
		return false, fmt.Errorf("unassign associate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// AssociatesForCampus returns the associates assigned to a campus. It
// satisfies directory.Directory.
func (s *Store) AssociatesForCampus(ctx context.Context, campus string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT associate_id FROM associate_assignments WHERE campus = ? ORDER BY associate_id`,
		campus,
	)
	if err != nil {
		return nil, fmt.Errorf("associates for campus: %w", err)
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
