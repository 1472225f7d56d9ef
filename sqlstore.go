package kvsession

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Expiration is kept as Unix milliseconds; NULL means the key never expires.
const sqlSchema = `
CREATE TABLE IF NOT EXISTS kv_sessions (
	id TEXT PRIMARY KEY,
	data %s NOT NULL,
	expires_at BIGINT
);
CREATE INDEX IF NOT EXISTS idx_kv_sessions_expires_at ON kv_sessions(expires_at);
`

// Queries are written with $n placeholders; SQLite gets ?n.
const (
	sqlGet = `SELECT data FROM kv_sessions WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)`

	sqlSet = `
		INSERT INTO kv_sessions (id, data, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			expires_at = excluded.expires_at`

	// An expired row that the cleanup has not removed yet counts as absent.
	sqlSetNX = `
		INSERT INTO kv_sessions (id, data, expires_at)
		VALUES ($1, $2, NULL)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			expires_at = excluded.expires_at
		WHERE kv_sessions.expires_at IS NOT NULL AND kv_sessions.expires_at <= $3`

	sqlExpire  = `UPDATE kv_sessions SET expires_at = $2 WHERE id = $1 AND (expires_at IS NULL OR expires_at > $3)`
	sqlExists  = `SELECT 1 FROM kv_sessions WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)`
	sqlCleanup = `DELETE FROM kv_sessions WHERE expires_at IS NOT NULL AND expires_at <= $1`
)

// sqlStore is the database/sql implementation shared by the PostgreSQL and
// SQLite stores.
type sqlStore struct {
	db          *sql.DB
	writeMu     *sync.Mutex // Serializes writes when the driver needs it (SQLite).
	getStmt     *sql.Stmt
	setStmt     *sql.Stmt
	setNXStmt   *sql.Stmt
	expireStmt  *sql.Stmt
	existsStmt  *sql.Stmt
	cleanupStmt *sql.Stmt
	now         func() time.Time
}

func newSQLStore(db *sql.DB, blobType string, placeholder func(string) string, writeMu *sync.Mutex) (*sqlStore, error) {
	if _, err := db.Exec(fmt.Sprintf(sqlSchema, blobType)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv_sessions table: %w", err)
	}

	s := &sqlStore{db: db, writeMu: writeMu, now: time.Now}

	stmts := []struct {
		dst   **sql.Stmt
		query string
		name  string
	}{
		{&s.getStmt, sqlGet, "get"},
		{&s.setStmt, sqlSet, "set"},
		{&s.setNXStmt, sqlSetNX, "setnx"},
		{&s.expireStmt, sqlExpire, "expire"},
		{&s.existsStmt, sqlExists, "exists"},
		{&s.cleanupStmt, sqlCleanup, "cleanup"},
	}
	for _, st := range stmts {
		stmt, err := db.Prepare(placeholder(st.query))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to prepare %s statement: %w", st.name, err)
		}
		*st.dst = stmt
	}

	return s, nil
}

func dollarPlaceholders(q string) string { return q }

func questionPlaceholders(q string) string { return strings.ReplaceAll(q, "$", "?") }

func (s *sqlStore) lock() func() {
	if s.writeMu == nil {
		return func() {}
	}
	s.writeMu.Lock()
	return s.writeMu.Unlock
}

func (s *sqlStore) nowMilli() int64 {
	return s.now().UnixMilli()
}

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.getStmt.QueryRowContext(ctx, key, s.nowMilli()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query session: %v", ErrStoreUnavailable, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *sqlStore) Set(ctx context.Context, key string, value []byte) error {
	return s.save(ctx, key, value, sql.NullInt64{})
}

func (s *sqlStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := s.now().Add(ttl).UnixMilli()
	return s.save(ctx, key, value, sql.NullInt64{Int64: expiresAt, Valid: true})
}

func (s *sqlStore) save(ctx context.Context, key string, value []byte, expiresAt sql.NullInt64) error {
	defer s.lock()()
	if _, err := s.setStmt.ExecContext(ctx, key, value, expiresAt); err != nil {
		return fmt.Errorf("%w: failed to save session: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *sqlStore) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	defer s.lock()()
	res, err := s.setNXStmt.ExecContext(ctx, key, value, s.nowMilli())
	if err != nil {
		return false, fmt.Errorf("%w: failed to reserve session: %v", ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

func (s *sqlStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	now := s.now()
	defer s.lock()()
	if _, err := s.expireStmt.ExecContext(ctx, key, now.Add(ttl).UnixMilli(), now.UnixMilli()); err != nil {
		return fmt.Errorf("%w: failed to refresh session: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *sqlStore) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.existsStmt.QueryRowContext(ctx, key, s.nowMilli()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: failed to query session: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}

// Cleanup removes expired rows.
func (s *sqlStore) Cleanup(ctx context.Context) error {
	defer s.lock()()
	if _, err := s.cleanupStmt.ExecContext(ctx, s.nowMilli()); err != nil {
		return fmt.Errorf("%w: failed to cleanup expired sessions: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.getStmt, s.setStmt, s.setNXStmt, s.expireStmt, s.existsStmt, s.cleanupStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
