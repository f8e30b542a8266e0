package persist

import (
	"context"
	"encoding/json"
	"time"

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
)

// Storage defines the interface for snapshot persistence backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Save stores data under key, overwriting any previous record.
	Save(ctx context.Context, key string, data []byte) error

	// Load returns the record stored under key.
	// Returns (nil, nil) if the key doesn't exist.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes the record for key.
	// Should not return an error if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the storage.
	Close() error
}

// RecordVersion is the record format written by this package.
// Version 1 stored values as plain JSON objects and no query.
const RecordVersion = 2

// Record is the stored form of one filter entry.
type Record struct {
	Version int
	Key     string
	Values  filters.Values
	Filters filters.Values

	// Query is the committed query at save time. Empty in version 1 records.
	Query   string
	SavedAt time.Time
}

type recordJSON struct {
	Version int       `json:"version"`
	Key     string    `json:"key"`
	Values  fieldList `json:"values"`
	Filters fieldList `json:"filters"`
	Query   string    `json:"query"`
	SavedAt time.Time `json:"savedAt"`
}

// EncodeRecord serializes the entry for key.
func EncodeRecord(key string, st filters.State, savedAt time.Time) ([]byte, error) {
	data, err := json.Marshal(recordJSON{
		Version: RecordVersion,
		Key:     key,
		Values:  fieldList(st.Values),
		Filters: fieldList(st.Filters),
		Query:   st.Query,
		SavedAt: savedAt.UTC(),
	})
	if err != nil {
		return nil, ferrors.New("S002").WithDetailf("key %q", key).Wrap(err)
	}
	return data, nil
}

// DecodeRecord parses a stored record.
func DecodeRecord(data []byte) (Record, error) {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, ferrors.New("S003").Wrap(err)
	}
	if raw.Version > RecordVersion {
		return Record{}, ferrors.New("S007").WithDetailf("record %q has version %d", raw.Key, raw.Version)
	}
	return Record{
		Version: raw.Version,
		Key:     raw.Key,
		Values:  filters.Values(raw.Values),
		Filters: filters.Values(raw.Filters),
		Query:   raw.Query,
		SavedAt: raw.SavedAt,
	}, nil
}

// State returns the entry the record describes. Records without a stored
// query get it recomputed from Filters.
func (r Record) State() filters.State {
	query := r.Query
	if query == "" {
		query = filters.Encode(r.Filters)
	}
	return filters.State{Values: r.Values, Filters: r.Filters, Query: query}
}

func errClosed() error {
	return ferrors.New("S001")
}
