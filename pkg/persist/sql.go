package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
)

// SQLStorage is a database/sql backed Storage.
// Requires a table with schema (see EnsureSchema):
//
//	CREATE TABLE filter_snapshots (
//	    filter_key VARCHAR(255) PRIMARY KEY,
//	    data       BYTEA NOT NULL,
//	    updated_at TIMESTAMP WITH TIME ZONE NOT NULL
//	);
type SQLStorage struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	ownsDB    bool

	mu     sync.RWMutex
	closed bool
}

// SQLDialect represents the SQL dialect for query generation.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// SQLStorageOption configures SQLStorage behavior.
type SQLStorageOption func(*sqlStorageConfig)

type sqlStorageConfig struct {
	tableName string
	dialect   SQLDialect
	ownsDB    bool
}

// WithSQLTableName sets the table name.
// Default: "filter_snapshots".
func WithSQLTableName(name string) SQLStorageOption {
	return func(c *sqlStorageConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLStorageOption {
	return func(c *sqlStorageConfig) {
		c.dialect = dialect
	}
}

// withOwnedDB makes Close also close the database handle.
func withOwnedDB() SQLStorageOption {
	return func(c *sqlStorageConfig) {
		c.ownsDB = true
	}
}

// NewSQLStorage creates a SQL-backed Storage over db. The caller keeps
// ownership of db.
func NewSQLStorage(db *sql.DB, opts ...SQLStorageOption) *SQLStorage {
	cfg := &sqlStorageConfig{
		tableName: "filter_snapshots",
		dialect:   DialectPostgreSQL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &SQLStorage{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
		ownsDB:    cfg.ownsDB,
	}
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQLStorage) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *SQLStorage) EnsureSchema(ctx context.Context) error {
	var query string
	switch s.dialect {
	case DialectSQLite:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				filter_key TEXT PRIMARY KEY,
				data BLOB NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)
		`, s.tableName)
	default:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				filter_key VARCHAR(255) PRIMARY KEY,
				data BYTEA NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			)
		`, s.tableName)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return ferrors.New("S004").WithDetailf("create table %s", s.tableName).Wrap(err)
	}
	return nil
}

func (s *SQLStorage) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Save upserts the record for key.
func (s *SQLStorage) Save(ctx context.Context, key string, data []byte) error {
	if s.isClosed() {
		return errClosed()
	}

	var query string
	switch s.dialect {
	case DialectSQLite:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (filter_key, data, updated_at)
			VALUES (?, ?, ?)
		`, s.tableName)
	default:
		query = fmt.Sprintf(`
			INSERT INTO %s (filter_key, data, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (filter_key) DO UPDATE SET
				data = EXCLUDED.data,
				updated_at = EXCLUDED.updated_at
		`, s.tableName)
	}

	if _, err := s.db.ExecContext(ctx, query, key, data, time.Now().UTC()); err != nil {
		return ferrors.New("S004").WithDetailf("key %q", key).Wrap(err)
	}
	return nil
}

// Load returns the record for key, or nil if there is none.
func (s *SQLStorage) Load(ctx context.Context, key string) ([]byte, error) {
	if s.isClosed() {
		return nil, errClosed()
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE filter_key = %s`, s.tableName, s.placeholder(1))

	var data []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.New("S005").WithDetailf("key %q", key).Wrap(err)
	}
	return data, nil
}

// Delete removes the record for key.
func (s *SQLStorage) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return errClosed()
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE filter_key = %s`, s.tableName, s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return ferrors.New("S006").WithDetailf("key %q", key).Wrap(err)
	}
	return nil
}

// Close marks the storage closed. The database handle is closed only when
// the storage opened it itself (OpenSQLite).
func (s *SQLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
