package filters

import (
	"log/slog"
	"sort"
	"sync"
)

// State is the filter triple held for one key.
type State struct {
	// Values are the staged, editable fields.
	Values Values `json:"values"`

	// Filters are the applied fields that drive requests.
	Filters Values `json:"filters"`

	// Query is the encoded form of Filters as of the last commit.
	Query string `json:"query"`
}

// Op identifies the store operation that produced a Change.
type Op uint8

const (
	OpInit Op = iota + 1
	OpSetFilter
	OpSetFilters
	OpApply
	OpDelete
	OpHydrate
)

// String returns a human-readable name for the operation.
func (o Op) String() string {
	switch o {
	case OpInit:
		return "init"
	case OpSetFilter:
		return "set_filter"
	case OpSetFilters:
		return "set_filters"
	case OpApply:
		return "apply"
	case OpDelete:
		return "delete"
	case OpHydrate:
		return "hydrate"
	default:
		return "unknown"
	}
}

// Change describes one state transition of a key.
type Change struct {
	Op  Op
	Key string

	// State is the entry after the operation. Zero when Deleted is true.
	State State

	// Committed is true when the operation rewrote Filters and Query.
	Committed bool

	// Deleted is true when the entry was removed.
	Deleted bool
}

// Store is a keyed container of filter states. All operations are total:
// unknown keys behave like an empty entry, deletions are idempotent.
// A Store is safe for concurrent use; every operation replaces the whole
// entry for its key in one step.
type Store struct {
	mu     sync.RWMutex
	states map[string]State
	logger *slog.Logger

	// pending holds changes not yet delivered, in commit order. It is
	// guarded by mu; draining is set while one goroutine delivers them.
	pending  []Change
	draining bool

	subsMu  sync.RWMutex
	subs    []subscriber
	nextSub uint64
}

type subscriber struct {
	id uint64
	fn func(Change)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for entry lifecycle messages.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		states: make(map[string]State),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func defaultState(initial Values, commit bool) State {
	st := State{Values: initial}
	if commit {
		st.Filters = initial
		st.Query = Encode(initial)
	}
	return st
}

// stage replaces Values and, when commit is set, copies them into Filters.
func stage(cur State, values Values, commit bool) State {
	next := State{Values: values, Filters: cur.Filters, Query: cur.Query}
	if commit {
		next.Filters = values
		next.Query = Encode(values)
	}
	return next
}

// SetFilter merges one field into the staged values of key. With commit the
// values are also applied and the query recomputed; without it Filters and
// Query are left untouched.
func (s *Store) SetFilter(key, field string, value any, commit bool) {
	s.update(OpSetFilter, key, commit, func(cur State) State {
		return stage(cur, cur.Values.With(field, value), commit)
	})
}

// SetFilters merges several fields into the staged values of key in a single
// transition. Commit behaves as in SetFilter.
func (s *Store) SetFilters(key string, partial Values, commit bool) {
	s.update(OpSetFilters, key, commit, func(cur State) State {
		return stage(cur, cur.Values.Merge(partial), commit)
	})
}

// ApplyValues copies the staged values of key into Filters and recomputes
// the query.
func (s *Store) ApplyValues(key string) {
	s.update(OpApply, key, true, func(cur State) State {
		return stage(cur, cur.Values, true)
	})
}

// DeleteFilter removes the entry for key. Deleting a missing key is a no-op.
func (s *Store) DeleteFilter(key string) {
	s.mu.Lock()
	_, ok := s.states[key]
	if ok {
		delete(s.states, key)
		s.enqueue(Change{Op: OpDelete, Key: key, Deleted: true})
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	s.logger.Debug("filter state deleted", "key", key)
	s.deliver()
}

// GetFilterState returns the entry for key. A missing key yields, without
// being stored, the state key would get from InitFilterState.
func (s *Store) GetFilterState(key string, initial Values, commit bool) State {
	s.mu.RLock()
	st, ok := s.states[key]
	s.mu.RUnlock()

	if ok {
		return st
	}
	return defaultState(initial, commit)
}

// InitFilterState stores the default state for key unless an entry already
// exists. It never overwrites an existing entry.
func (s *Store) InitFilterState(key string, initial Values, commit bool) {
	s.mu.Lock()
	if _, ok := s.states[key]; ok {
		s.mu.Unlock()
		return
	}
	st := defaultState(initial, commit)
	s.states[key] = st
	s.enqueue(Change{Op: OpInit, Key: key, State: st, Committed: commit})
	s.mu.Unlock()

	s.logger.Debug("filter state initialized", "key", key, "query", st.Query)
	s.deliver()
}

// Hydrate inserts a previously saved entry for key unless one exists. The
// saved query is kept as is; an empty one is recomputed from Filters. It
// reports whether the entry was stored.
func (s *Store) Hydrate(key string, st State) bool {
	if st.Query == "" {
		st.Query = Encode(st.Filters)
	}

	s.mu.Lock()
	if _, ok := s.states[key]; ok {
		s.mu.Unlock()
		return false
	}
	s.states[key] = st
	s.enqueue(Change{Op: OpHydrate, Key: key, State: st, Committed: true})
	s.mu.Unlock()

	s.deliver()
	return true
}

// Lookup returns the entry for key and whether it exists.
func (s *Store) Lookup(key string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	return st, ok
}

// Keys returns the keys with an entry, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.states))
	for k := range s.states {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Subscribe registers fn to receive every Change. Changes reach subscribers
// in the order they were applied, outside the store lock, so fn may call
// back into the store. One goroutine delivers at a time: a Change made while
// another goroutine is delivering, including one made from inside fn, is
// handed to that goroutine and delivered after the current one.
// The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subsMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) update(op Op, key string, commit bool, fn func(State) State) {
	s.mu.Lock()
	next := fn(s.states[key])
	s.states[key] = next
	s.enqueue(Change{Op: op, Key: key, State: next, Committed: commit})
	s.mu.Unlock()

	s.deliver()
}

// enqueue records c for delivery. Callers hold mu.
func (s *Store) enqueue(c Change) {
	s.pending = append(s.pending, c)
}

// deliver drains pending changes unless another goroutine already is.
func (s *Store) deliver() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	done := false
	defer func() {
		// A panicking subscriber must not leave the queue stuck.
		if !done {
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()
		}
	}()

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.pending = nil
			s.draining = false
			s.mu.Unlock()
			done = true
			return
		}
		c := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.notify(c)
	}
}

func (s *Store) notify(c Change) {
	s.subsMu.RLock()
	if len(s.subs) == 0 {
		s.subsMu.RUnlock()
		return
	}
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subsMu.RUnlock()

	for _, sub := range subs {
		sub.fn(c)
	}
}
