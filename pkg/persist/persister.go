package persist

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
)

// Persister mirrors tracked store keys into a Storage.
type Persister struct {
	store       *filters.Store
	storage     Storage
	logger      *slog.Logger
	concurrency int
	now         func() time.Time

	mu    sync.Mutex
	keys  map[string]struct{}
	dirty map[string]struct{}

	unsubscribe func()
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithKeys tracks the given keys from the start.
func WithKeys(keys ...string) PersisterOption {
	return func(p *Persister) {
		for _, k := range keys {
			p.keys[k] = struct{}{}
		}
	}
}

// WithConcurrency bounds the number of parallel storage calls.
// Default: 4.
func WithConcurrency(n int) PersisterOption {
	return func(p *Persister) {
		p.concurrency = n
	}
}

// WithPersisterLogger sets the logger.
// Default: slog.Default().
func WithPersisterLogger(logger *slog.Logger) PersisterOption {
	return func(p *Persister) {
		p.logger = logger
	}
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) PersisterOption {
	return func(p *Persister) {
		p.now = now
	}
}

// NewPersister creates a Persister and starts recording which tracked keys
// change. Call Close to stop watching the store.
func NewPersister(store *filters.Store, storage Storage, opts ...PersisterOption) *Persister {
	p := &Persister{
		store:       store,
		storage:     storage,
		concurrency: 4,
		now:         time.Now,
		keys:        make(map[string]struct{}),
		dirty:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}

	p.unsubscribe = store.Subscribe(p.observe)
	return p
}

// observe marks tracked keys dirty. Restored entries already match their
// record and are not marked.
func (p *Persister) observe(c filters.Change) {
	if c.Op == filters.OpHydrate {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.keys[c.Key]; ok {
		p.dirty[c.Key] = struct{}{}
	}
}

// Track adds keys to the tracked set.
func (p *Persister) Track(keys ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		p.keys[k] = struct{}{}
		p.dirty[k] = struct{}{}
	}
}

// Untrack removes key from the tracked set. Its stored record is kept.
func (p *Persister) Untrack(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keys, key)
	delete(p.dirty, key)
}

// Tracked returns the tracked keys, sorted.
func (p *Persister) Tracked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedKeys(p.keys)
}

// Pending returns the tracked keys changed since the last save, sorted.
func (p *Persister) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedKeys(p.dirty)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Restore loads every tracked key that has a stored record and is absent
// from the store. Keys already in the store are left alone, and writes made
// while Restore runs stay pending. It returns the number of entries restored.
func (p *Persister) Restore(ctx context.Context) (int, error) {
	keys := p.Tracked()
	var restored atomic.Int64

	workers := pool.New().WithMaxGoroutines(p.concurrency).WithContext(ctx)
	for _, key := range keys {
		workers.Go(func(ctx context.Context) error {
			data, err := p.storage.Load(ctx, key)
			if err != nil {
				return err
			}
			if data == nil {
				return nil
			}
			rec, err := DecodeRecord(data)
			if err != nil {
				p.logger.Warn("skipping unreadable filter snapshot", "key", key, "error", err)
				return nil
			}
			st := rec.State()
			if rec.Query != "" && rec.Query != filters.Encode(rec.Filters) {
				p.logger.Warn("stored filter query differs from its filters", "key", key, "query", rec.Query)
			}
			if p.store.Hydrate(key, st) {
				restored.Add(1)
			}
			return nil
		})
	}
	err := workers.Wait()

	n := int(restored.Load())
	p.logger.Info("filter snapshots restored", "tracked", len(keys), "restored", n)
	return n, err
}

// Save writes every tracked key. Keys without an entry have their record
// deleted so that a reset is persisted too.
func (p *Persister) Save(ctx context.Context) error {
	return p.save(ctx, p.Tracked())
}

// Flush writes only the tracked keys that changed since the last save.
func (p *Persister) Flush(ctx context.Context) error {
	return p.save(ctx, p.Pending())
}

func (p *Persister) save(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	p.mu.Lock()
	for _, key := range keys {
		delete(p.dirty, key)
	}
	p.mu.Unlock()

	now := p.now()
	workers := pool.New().WithMaxGoroutines(p.concurrency).WithContext(ctx)
	for _, key := range keys {
		workers.Go(func(ctx context.Context) error {
			err := p.saveKey(ctx, key, now)
			if err != nil {
				// Retry on the next flush.
				p.mu.Lock()
				p.dirty[key] = struct{}{}
				p.mu.Unlock()
			}
			return err
		})
	}
	if err := workers.Wait(); err != nil {
		p.logger.Error("filter snapshot save failed", "keys", len(keys), "error", err)
		return err
	}

	p.logger.Debug("filter snapshots saved", "keys", len(keys))
	return nil
}

func (p *Persister) saveKey(ctx context.Context, key string, now time.Time) error {
	st, ok := p.store.Lookup(key)
	if !ok {
		return p.storage.Delete(ctx, key)
	}
	data, err := EncodeRecord(key, st, now)
	if err != nil {
		return err
	}
	return p.storage.Save(ctx, key, data)
}

// Run flushes pending changes every interval until ctx is done, then
// flushes once more.
func (p *Persister) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.Flush(ctx); err != nil {
				p.logger.Warn("periodic filter flush failed", "error", err)
			}
		case <-ctx.Done():
			return p.Flush(context.WithoutCancel(ctx))
		}
	}
}

// Close stops watching the store. It does not close the Storage.
func (p *Persister) Close() {
	p.unsubscribe()
}
