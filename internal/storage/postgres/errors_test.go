package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"libraryservice/internal/circulation"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestSQLStateClassification(t *testing.T) {
	pqLock := &pq.Error{Code: pq.ErrorCode(pgerrcode.LockNotAvailable)}
	pgxLock := &pgconn.PgError{Code: pgerrcode.LockNotAvailable}
	pqUnique := &pq.Error{Code: pq.ErrorCode(pgerrcode.UniqueViolation)}
	pgxUnique := &pgconn.PgError{Code: pgerrcode.UniqueViolation}

	for name, err := range map[string]error{"pq": pqUnique, "pgx": pgxUnique} {
		assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", err)), name)
		assert.False(t, isLockNotAvailable(err), name)
	}
	for name, err := range map[string]error{"pq": pqLock, "pgx": pgxLock} {
		assert.True(t, isLockNotAvailable(err), name)
		assert.ErrorIs(t, lockError("book", "1", err), circulation.ErrLockTimeout, name)
	}

	assert.Empty(t, sqlState(errors.New("plain")))
	assert.ErrorIs(t, lockError("book", "1", sql.ErrNoRows), circulation.ErrNotFound)
	assert.NotErrorIs(t, lockError("book", "1", errors.New("boom")), circulation.ErrLockTimeout)
}
