package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Constraint violations reported by the database, normalised across drivers.
var (
	// ErrDuplicate signals a unique constraint rejected the write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrForeignKey signals a referenced row no longer exists.
	ErrForeignKey = errors.New("referenced record missing")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// classify maps driver constraint errors to ErrDuplicate or ErrForeignKey.
// Other errors yield nil.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return ErrDuplicate
		case pqForeignKeyViolation:
			return ErrForeignKey
		}
		return nil
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ErrDuplicate
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ErrForeignKey
		}
	}
	return nil
}

// wrapWrite annotates a write failure, keeping any constraint sentinel
// reachable through errors.Is.
func wrapWrite(op string, err error) error {
	if kind := classify(err); kind != nil {
		return fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
