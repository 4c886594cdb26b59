package postgres

import (
	"context"
	"fmt"
)

// TruncateForTest removes all rows from every table. It lives in the
// postgres package (not the _test package) so it has access to the
// unexported db field, and is only compiled into test binaries.
func (s *Store) TruncateForTest(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"TRUNCATE TABLE speakers, participations, attributes, audit_log, embeddings CASCADE")
	if err != nil {
		return fmt.Errorf("postgres: failed to truncate tables: %w", err)
	}
	return nil
}
