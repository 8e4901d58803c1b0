// Package localdb is the teacher device's embedded database. It keeps the
// offline notes, their sync queue and the optimistic cache snapshots in a
// SQLite file.
package localdb

import (
	"context"

	"github.com/pkg/errors"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const defaultPoolSize = 4

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
	"PRAGMA temp_store=MEMORY",
}

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id          TEXT PRIMARY KEY,
	school_id   TEXT NOT NULL,
	class_id    TEXT NOT NULL,
	subject_id  TEXT NOT NULL,
	term_id     TEXT NOT NULL,
	teacher_id  TEXT NOT NULL,
	title       TEXT NOT NULL,
	type        TEXT NOT NULL,
	weight      INTEGER NOT NULL DEFAULT 1,
	description TEXT NOT NULL DEFAULT '',
	grade_date  TEXT NOT NULL,
	is_published INTEGER NOT NULL DEFAULT 0,
	is_dirty    INTEGER NOT NULL DEFAULT 1,
	is_deleted  INTEGER NOT NULL DEFAULT 0,
	last_sync_at INTEGER,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS notes_class_idx ON notes (class_id, subject_id, term_id);

CREATE TABLE IF NOT EXISTS note_details (
	id           TEXT PRIMARY KEY,
	note_id      TEXT NOT NULL REFERENCES notes (id) ON DELETE CASCADE,
	student_id   TEXT NOT NULL,
	value        REAL NOT NULL,
	graded_at    INTEGER,
	is_dirty     INTEGER NOT NULL DEFAULT 1,
	is_deleted   INTEGER NOT NULL DEFAULT 0,
	last_sync_at INTEGER,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS note_details_note_idx ON note_details (note_id, student_id);

CREATE TABLE IF NOT EXISTS sync_queue (
	id           TEXT PRIMARY KEY,
	operation    TEXT NOT NULL,
	table_name   TEXT NOT NULL,
	record_id    TEXT NOT NULL,
	data         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	attempts     INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	last_attempt INTEGER,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sync_queue_status_idx ON sync_queue (status, created_at);

CREATE TABLE IF NOT EXISTS cache_snapshots (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Open opens the database file at path, creating it and its schema if needed.
// The parent directory must exist.
func Open(path string, poolSize int) (*Store, error) {
	if path == "" {
		return nil, errors.New("localdb: path is required")
	}
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "localdb: opening %s", path)
	}
	return &Store{pool: pool}, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return errors.Wrapf(err, "localdb: %s", pragma)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return errors.Wrap(err, "localdb: creating schema")
	}
	return nil
}

func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return errors.Wrap(err, "localdb: take")
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// inTx runs fn in an IMMEDIATE transaction, rolled back when fn fails.
func (s *Store) inTx(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endFn, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return errors.Wrap(err, "localdb: begin transaction")
		}
		defer endFn(&err)
		return fn(conn)
	})
}
