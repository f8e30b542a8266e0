package persist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPersisterSaveRestore(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	src := filters.NewStore(filters.WithLogger(quietLogger()))
	src.SetFilters("users", filters.NewValues(filters.F("name", "ana"), filters.F("page", 1)), true)
	src.SetFilter("users", "role", "admin", false)
	src.SetFilter("untracked", "q", "x", true)

	saver := NewPersister(src, storage, WithKeys("users", "events"), WithPersisterLogger(quietLogger()))
	defer saver.Close()

	if err := saver.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if storage.Len() != 1 {
		t.Fatalf("Expected 1 record (users), got %d", storage.Len())
	}

	dst := filters.NewStore(filters.WithLogger(quietLogger()))
	loader := NewPersister(dst, storage, WithKeys("users", "events"), WithPersisterLogger(quietLogger()))
	defer loader.Close()

	n, err := loader.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 restored entry, got %d", n)
	}

	st, ok := dst.Lookup("users")
	if !ok {
		t.Fatal("Expected users to be restored")
	}
	if st.Query != "name=ana&page=1" {
		t.Errorf("Expected query name=ana&page=1, got %s", st.Query)
	}
	if got := filters.Encode(st.Values); got != "name=ana&page=1&role=admin" {
		t.Errorf("Expected staged role to survive, got %s", got)
	}
	if _, ok := dst.Lookup("untracked"); ok {
		t.Error("Untracked key should not be restored")
	}
	if pending := loader.Pending(); len(pending) != 0 {
		t.Errorf("Expected no pending keys after Restore, got %v", pending)
	}
}

func TestPersisterRestoreKeepsQuery(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	from := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	src := filters.NewStore(filters.WithLogger(quietLogger()))
	src.SetFilters("events", filters.NewValues(
		filters.F("status", filters.Undefined),
		filters.F("min", 1e-7),
		filters.F("from", from),
		filters.F("page", 0),
		filters.F("ids", []float64{0.5, 1e21}),
		filters.F("owner", nil),
	), true)
	src.SetFilter("events", "draft", filters.Undefined, false)
	before, _ := src.Lookup("events")

	saver := NewPersister(src, storage, WithKeys("events"), WithPersisterLogger(quietLogger()))
	defer saver.Close()
	if err := saver.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	dst := filters.NewStore(filters.WithLogger(quietLogger()))
	loader := NewPersister(dst, storage, WithKeys("events"), WithPersisterLogger(quietLogger()))
	defer loader.Close()
	if _, err := loader.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	after, ok := dst.Lookup("events")
	if !ok {
		t.Fatal("Expected events to be restored")
	}
	if after.Query != before.Query {
		t.Errorf("Expected query %q, got %q", before.Query, after.Query)
	}
	if got := filters.Encode(after.Filters); got != before.Query {
		t.Errorf("Expected filters to encode to %q, got %q", before.Query, got)
	}
	if got, want := filters.Encode(after.Values), filters.Encode(before.Values); got != want {
		t.Errorf("Expected staged values %q, got %q", want, got)
	}
	if v, _ := after.Values.Get("draft"); v != filters.Undefined {
		t.Errorf("Expected draft to stay undefined, got %v", v)
	}
	if !after.Filters.Has("owner") {
		t.Error("Expected null owner field to be kept")
	}

	t.Run("CommitAfterRestore", func(t *testing.T) {
		dst.ApplyValues("events")
		src.ApplyValues("events")
		got, _ := dst.Lookup("events")
		want, _ := src.Lookup("events")
		if got.Query != want.Query {
			t.Errorf("Expected %q after applying, got %q", want.Query, got.Query)
		}
	})
}

func TestPersisterRestoreKeepsExisting(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	rec, _ := EncodeRecord("users", filters.State{
		Values:  filters.NewValues(filters.F("name", "stored")),
		Filters: filters.NewValues(filters.F("name", "stored")),
	}, time.Now())
	_ = storage.Save(ctx, "users", rec)

	store := filters.NewStore(filters.WithLogger(quietLogger()))
	store.SetFilter("users", "name", "live", true)

	p := NewPersister(store, storage, WithKeys("users"), WithPersisterLogger(quietLogger()))
	defer p.Close()

	n, err := p.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 restored entries, got %d", n)
	}
	if st, _ := store.Lookup("users"); st.Query != "name=live" {
		t.Errorf("Expected live entry to win, got %s", st.Query)
	}
}

// gatedStorage blocks Load until release is closed.
type gatedStorage struct {
	*MemoryStorage
	once    sync.Once
	loading chan struct{}
	release chan struct{}
}

func (g *gatedStorage) Load(ctx context.Context, key string) ([]byte, error) {
	g.once.Do(func() { close(g.loading) })
	<-g.release
	return g.MemoryStorage.Load(ctx, key)
}

func TestPersisterRestoreKeepsConcurrentWritesPending(t *testing.T) {
	ctx := context.Background()
	storage := &gatedStorage{
		MemoryStorage: NewMemoryStorage(),
		loading:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	rec, _ := EncodeRecord("users", filters.State{
		Values:  filters.NewValues(filters.F("name", "stored")),
		Filters: filters.NewValues(filters.F("name", "stored")),
		Query:   "name=stored",
	}, time.Now())
	_ = storage.Save(ctx, "users", rec)

	store := filters.NewStore(filters.WithLogger(quietLogger()))
	p := NewPersister(store, storage, WithKeys("users", "events"), WithPersisterLogger(quietLogger()))
	defer p.Close()

	done := make(chan error, 1)
	go func() {
		_, err := p.Restore(ctx)
		done <- err
	}()

	<-storage.loading
	store.SetFilter("events", "page", 2, true)
	close(storage.release)

	if err := <-done; err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	pending := p.Pending()
	if len(pending) != 1 || pending[0] != "events" {
		t.Errorf("Expected [events] pending, got %v", pending)
	}
	if st, _ := store.Lookup("users"); st.Query != "name=stored" {
		t.Errorf("Expected users restored, got %q", st.Query)
	}
}

func TestPersisterSkipsUnreadableRecords(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	_ = storage.Save(ctx, "users", []byte("{broken"))

	store := filters.NewStore(filters.WithLogger(quietLogger()))
	p := NewPersister(store, storage, WithKeys("users"), WithPersisterLogger(quietLogger()))
	defer p.Close()

	n, err := p.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore should skip bad records, got %v", err)
	}
	if n != 0 || store.Len() != 0 {
		t.Errorf("Expected nothing restored, got n=%d len=%d", n, store.Len())
	}
}

func TestPersisterFlush(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store := filters.NewStore(filters.WithLogger(quietLogger()))

	p := NewPersister(store, storage, WithKeys("users"), WithPersisterLogger(quietLogger()))
	defer p.Close()

	store.SetFilter("users", "name", "ana", true)
	store.SetFilter("other", "name", "bob", true)

	pending := p.Pending()
	if len(pending) != 1 || pending[0] != "users" {
		t.Fatalf("Expected [users] pending, got %v", pending)
	}

	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if storage.Len() != 1 {
		t.Errorf("Expected 1 record, got %d", storage.Len())
	}
	if len(p.Pending()) != 0 {
		t.Errorf("Expected nothing pending after Flush, got %v", p.Pending())
	}

	t.Run("DeletePersistsRemoval", func(t *testing.T) {
		store.DeleteFilter("users")
		if err := p.Flush(ctx); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
		data, _ := storage.Load(ctx, "users")
		if data != nil {
			t.Error("Expected record removed after the entry was deleted")
		}
	})
}

func TestPersisterTrack(t *testing.T) {
	store := filters.NewStore(filters.WithLogger(quietLogger()))
	p := NewPersister(store, NewMemoryStorage(), WithPersisterLogger(quietLogger()))
	defer p.Close()

	p.Track("b", "a")
	if got := p.Tracked(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Expected [a b], got %v", got)
	}
	p.Untrack("a")
	if got := p.Tracked(); len(got) != 1 || got[0] != "b" {
		t.Errorf("Expected [b], got %v", got)
	}
	if got := p.Pending(); len(got) != 1 || got[0] != "b" {
		t.Errorf("Expected newly tracked key pending, got %v", got)
	}
}

// failingStorage fails every Save.
type failingStorage struct {
	*MemoryStorage
}

func (failingStorage) Save(ctx context.Context, key string, data []byte) error {
	return errors.New("disk full")
}

func TestPersisterFlushRetriesFailedKeys(t *testing.T) {
	store := filters.NewStore(filters.WithLogger(quietLogger()))
	p := NewPersister(store, failingStorage{NewMemoryStorage()}, WithKeys("users"), WithPersisterLogger(quietLogger()))
	defer p.Close()

	store.SetFilter("users", "name", "ana", true)
	if err := p.Flush(context.Background()); err == nil {
		t.Fatal("Expected Flush to fail")
	}
	if got := p.Pending(); len(got) != 1 {
		t.Errorf("Expected failed key to stay pending, got %v", got)
	}
}

func TestPersisterRunFlushesOnShutdown(t *testing.T) {
	storage := NewMemoryStorage()
	store := filters.NewStore(filters.WithLogger(quietLogger()))
	p := NewPersister(store, storage, WithKeys("users"), WithPersisterLogger(quietLogger()))
	defer p.Close()

	store.SetFilter("users", "name", "ana", true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, time.Hour)
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	if storage.Len() != 1 {
		t.Errorf("Expected final flush to write users, got %d records", storage.Len())
	}
}

func TestPersisterClock(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store := filters.NewStore(filters.WithLogger(quietLogger()))
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	p := NewPersister(store, storage, WithKeys("users"), withClock(func() time.Time { return fixed }), WithPersisterLogger(quietLogger()))
	defer p.Close()

	store.SetFilter("users", "name", "ana", true)
	if err := p.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, _ := storage.Load(ctx, "users")
	rec, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if !rec.SavedAt.Equal(fixed) {
		t.Errorf("Expected savedAt %v, got %v", fixed, rec.SavedAt)
	}
}
