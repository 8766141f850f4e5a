package directory

import (
	"context"
	"database/sql"
)

// Exec runs raw SQL so tests can corrupt or inspect state directly.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.execWithRetry(ctx, query, args...)
}
