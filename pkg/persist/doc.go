// Package persist saves filter entries outside the process so that
// persistent bindings survive restarts.
//
// A Persister tracks a set of store keys and writes one JSON record per key
// to a Storage backend. Restore hydrates keys that are not in the store yet
// and never overwrites live edits.
//
// Backends:
//   - MemoryStorage: in-process, for tests and single-run tools
//   - SQLStorage: database/sql (PostgreSQL or SQLite via OpenSQLite)
//   - S3Storage: one object per key in an S3 bucket
//
// Usage:
//
//	storage, _ := persist.OpenSQLite(ctx, "filters.db")
//	p := persist.NewPersister(store, storage, persist.WithKeys("reserve-list"))
//	if _, err := p.Restore(ctx); err != nil {
//	    return err
//	}
//	go p.Run(ctx, 30*time.Second)
package persist
