// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	_ "embed"

	"database/sql"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// Store is a thin wrapper over *sql.DB exposing the CRUD operations
// the engine needs. Like the teacher's pg backend RemoteClient, it
// holds no in-process state beyond the connection pool: every
// invariant is enforced by a constraint or a single parameterized
// statement, never by in-memory bookkeeping that could drift from
// the database.
type Store struct {
	db *sql.DB
}

// Open connects to dsn (a standard libpq connection string) and
// returns a Store. It does not apply the schema; call InitSchema for
// that (the `init_db` CLI command does both).
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema applies schema.sql. It is idempotent and safe to call on
// every process start, the same way the teacher's pg backend creates
// its state table lazily in Workspaces().
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}
