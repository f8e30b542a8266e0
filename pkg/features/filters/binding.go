package filters

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Binding adapts a Store to one consumer. It holds no state of its own, only
// the resolved key and the defaults it was created with, so bindings sharing
// a key always observe the same entry.
type Binding struct {
	store          *Store
	key            string
	initial        Values
	commitOnChange bool

	mu       sync.Mutex
	persist  bool
	attached bool
	// armed means Detach will delete the entry.
	armed bool
}

// BindingOption configures a Binding.
type BindingOption func(*bindingConfig)

type bindingConfig struct {
	key            string
	initial        Values
	commitOnChange bool
	persist        bool
}

// WithKey sets the store key. Without it the binding generates a key once
// and keeps it for its whole life.
func WithKey(key string) BindingOption {
	return func(c *bindingConfig) {
		c.key = key
	}
}

// WithInitialFilters sets the values a fresh or reset entry starts from.
func WithInitialFilters(initial Values) BindingOption {
	return func(c *bindingConfig) {
		c.initial = initial
	}
}

// WithCommitOnChange sets whether edits apply immediately.
// Default: true.
func WithCommitOnChange(commit bool) BindingOption {
	return func(c *bindingConfig) {
		c.commitOnChange = commit
	}
}

// WithPersist sets whether the entry survives Detach.
// Default: false.
func WithPersist(persist bool) BindingOption {
	return func(c *bindingConfig) {
		c.persist = persist
	}
}

// NewBinding creates a detached Binding over store.
func NewBinding(store *Store, opts ...BindingOption) *Binding {
	if store == nil {
		panic("filters: NewBinding requires a non-nil Store")
	}

	cfg := bindingConfig{commitOnChange: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.key == "" {
		cfg.key = uuid.NewString()
	}

	return &Binding{
		store:          store,
		key:            cfg.key,
		initial:        cfg.initial,
		commitOnChange: cfg.commitOnChange,
		persist:        cfg.persist,
	}
}

// Use creates a Binding over the Store carried by ctx and attaches it.
// The returned func detaches; it is meant to be deferred.
func Use(ctx context.Context, opts ...BindingOption) (*Binding, func()) {
	store := FromContext(ctx)
	if store == nil {
		panic("filters: no Store in context (use filters.WithStore)")
	}
	b := NewBinding(store, opts...)
	b.Attach()
	return b, b.Detach
}

// Key returns the resolved store key.
func (b *Binding) Key() string {
	return b.key
}

// State returns the current triple, or the would-be default when the entry
// does not exist.
func (b *Binding) State() State {
	return b.store.GetFilterState(b.key, b.initial, b.commitOnChange)
}

// Values returns the staged values.
func (b *Binding) Values() Values {
	return b.State().Values
}

// Filters returns the applied filters.
func (b *Binding) Filters() Values {
	return b.State().Filters
}

// Query returns the encoded applied filters.
func (b *Binding) Query() string {
	return b.State().Query
}

// SetOption overrides binding defaults for a single write.
type SetOption func(*setConfig)

type setConfig struct {
	commit bool
}

// Commit overrides the binding's commit-on-change behavior for one call.
func Commit(commit bool) SetOption {
	return func(c *setConfig) {
		c.commit = commit
	}
}

func (b *Binding) resolve(opts []SetOption) setConfig {
	cfg := setConfig{commit: b.commitOnChange}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// SetFilter sets one field.
func (b *Binding) SetFilter(field string, value any, opts ...SetOption) {
	cfg := b.resolve(opts)
	b.store.SetFilter(b.key, field, value, cfg.commit)
}

// SetFilters merges several fields in one transition.
func (b *Binding) SetFilters(partial Values, opts ...SetOption) {
	cfg := b.resolve(opts)
	b.store.SetFilters(b.key, partial, cfg.commit)
}

// ApplyValues commits the staged values.
func (b *Binding) ApplyValues() {
	b.store.ApplyValues(b.key)
}

// Reset drops the entry and, while attached, recreates it from the initial
// filters. A detached binding only drops it; reads still return the initial
// filters and the next Attach recreates the entry.
func (b *Binding) Reset() {
	b.store.DeleteFilter(b.key)

	b.mu.Lock()
	attached := b.attached
	b.mu.Unlock()
	if attached {
		b.store.InitFilterState(b.key, b.initial, b.commitOnChange)
	}
}

// Attach initializes the entry and arms cleanup unless the binding persists.
// Attaching an attached binding is a no-op.
func (b *Binding) Attach() {
	b.mu.Lock()
	if b.attached {
		b.mu.Unlock()
		return
	}
	b.attached = true
	b.armed = !b.persist
	b.mu.Unlock()

	b.store.InitFilterState(b.key, b.initial, b.commitOnChange)
}

// Detach releases the binding. The entry is deleted unless the binding
// persists. Detaching a detached binding is a no-op.
func (b *Binding) Detach() {
	b.mu.Lock()
	if !b.attached {
		b.mu.Unlock()
		return
	}
	armed := b.armed
	b.attached = false
	b.armed = false
	b.mu.Unlock()

	if armed {
		b.store.DeleteFilter(b.key)
	}
}

// SetPersist changes whether the entry survives Detach. While attached the
// cleanup is re-armed or disarmed to match; nothing is deleted here.
func (b *Binding) SetPersist(persist bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.persist = persist
	if b.attached {
		b.armed = !persist
	}
}

// Persist reports the current persist flag.
func (b *Binding) Persist() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.persist
}

// Attached reports whether the binding is attached.
func (b *Binding) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attached
}
