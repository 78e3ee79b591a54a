// Package directory resolves which associates serve a campus.
//
// The rolling queue manager only needs the lookup; where the assignment data
// lives is a deployment detail. The queue store provides a database-backed
// implementation, and Static serves fixed assignments for tests and
// config-driven setups.
package directory

import "context"

// Directory resolves the associates active in a campus.
type Directory interface {
	AssociatesForCampus(ctx context.Context, campus string) ([]string, error)
}

// Static is a fixed campus-to-associates mapping.
type Static map[string][]string

// AssociatesForCampus returns a copy of the configured associate ids.
func (s Static) AssociatesForCampus(_ context.Context, campus string) ([]string, error) {
	ids := s[campus]
	cp := make([]string, len(ids))
	copy(cp, ids)
	return cp, nil
}
