package database

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/noah-isme/enrollment-ledger/pkg/config"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// NewSQLite opens a SQLite database file with foreign keys enforced.
//
// The pool is pinned to a single connection: SQLite serialises writers anyway,
// and an in-memory database only lives as long as its connection.
func NewSQLite(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sqlx.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

func sqliteDSN(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == MemoryPath {
		return "file::memory:?" + pragmas
	}
	return "file:" + filepath.Clean(path) + "?" + pragmas + "&_pragma=journal_mode(WAL)"
}
