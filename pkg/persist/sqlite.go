package persist

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
)

// OpenSQLite opens (or creates) a SQLite database at path and returns a
// SQLStorage with its schema in place. Closing the storage closes the
// database.
func OpenSQLite(ctx context.Context, path string, opts ...SQLStorageOption) (*SQLStorage, error) {
	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, ferrors.New("S005").WithDetailf("open %s", path).Wrap(err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, ferrors.New("S005").WithDetailf("open %s", path).Wrap(err)
	}

	opts = append([]SQLStorageOption{WithSQLDialect(DialectSQLite), withOwnedDB()}, opts...)
	storage := NewSQLStorage(db, opts...)
	if err := storage.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}
