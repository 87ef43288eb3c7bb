// Package store is the single local relational store: a database/sql handle
// over modernc.org/sqlite in WAL-journal mode, with one file per table/concern
// holding typed Go structs and hand-written SQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the single writer/reader pool to the catalog database. There is
// one physical connection per process, so reads and writes from this process
// are serialized through it; reads do not run concurrently with a write.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database file under dataDir,
// enables WAL journal mode and foreign-key enforcement, and applies schema.
func Open(ctx context.Context, dataDir, dbFile string) (*Store, error) {
	path := filepath.Join(dataDir, dbFile)
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// sqlite allows only one writer; a single physical connection avoids
	// SQLITE_BUSY storms under WAL; reads share that connection and wait
	// for any statement already running on it.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for packages (config.Store in particular)
// that need direct access without duplicating connection setup.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}
