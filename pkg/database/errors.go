// Package database re-exports the persistence sentinels repository
// callers match on (defined in pkg/compact so pkg/validator can see them
// too without an import cycle) and provides the Postgres-specific
// detection helper that produces them.

package database

import (
	"errors"

	"github.com/lib/pq"

	"github.com/the-compact/allocator-core/pkg/compact"
)

// Sentinel errors for database operations.
var (
	ErrNonceTaken      = compact.ErrNonceTaken
	ErrCompactExists   = compact.ErrCompactExists
	ErrCompactNotFound = compact.ErrCompactNotFound
)

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), the signal that distinguishes a benign race on the
// nonce or compact primary key from a genuine storage failure.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
