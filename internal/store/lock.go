// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"database/sql"
	"hash/fnv"
)

// AdvisoryLock is a held session-level Postgres advisory lock. Callers
// must keep the *sql.Conn it was acquired on alive for as long as the
// lock is held, and Release it (which also returns the connection to
// the pool) when done.
type AdvisoryLock struct {
	conn *sql.Conn
	key  int64
}

// lockKey hashes name into the int64 keyspace pg_try_advisory_lock
// expects, the same approach the teacher's pg backend uses to turn a
// workspace name into a lock id (internal/backend/remote-state/pg/client.go).
func lockKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

// TryAcquireDaemonLock attempts to take a named, best-effort singleton
// lock (spec.md §4.8: "daemons should use a best-effort
// single-instance lock so duplicate runs don't race"). It returns
// (nil, false, nil) without blocking if another process already holds
// it, matching the teacher's non-blocking pg_try_advisory_lock use
// rather than the blocking pg_advisory_lock.
func (s *Store) TryAcquireDaemonLock(ctx context.Context, name string) (*AdvisoryLock, bool, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}
	key := lockKey(name)
	var got bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&got); err != nil {
		conn.Close()
		return nil, false, err
	}
	if !got {
		conn.Close()
		return nil, false, nil
	}
	return &AdvisoryLock{conn: conn, key: key}, true, nil
}

// Release unlocks the advisory lock and returns the connection to the
// pool.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	defer l.conn.Close()
	_, err := l.conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, l.key)
	return err
}
