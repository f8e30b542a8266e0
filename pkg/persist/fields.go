package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
)

// fieldList is the stored form of filters.Values: an ordered array that
// keeps Undefined fields and writes values in their query form where plain
// JSON would change it.
type fieldList filters.Values

type storedField struct {
	Key       string          `json:"k"`
	Value     json.RawMessage `json:"v,omitempty"`
	Undefined bool            `json:"u,omitempty"`
}

func (l fieldList) MarshalJSON() ([]byte, error) {
	out := make([]storedField, 0, filters.Values(l).Len())
	for k, v := range filters.Values(l).All() {
		if v == filters.Undefined {
			out = append(out, storedField{Key: k, Undefined: true})
			continue
		}
		b, err := json.Marshal(storedValue(v))
		if err != nil {
			return nil, fmt.Errorf("persist: encode field %q: %w", k, err)
		}
		out = append(out, storedField{Key: k, Value: b})
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the array form and the plain object form written
// by version 1 records.
func (l *fieldList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		var v filters.Values
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*l = fieldList(v)
		return nil
	}

	var stored []storedField
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}
	fields := make([]filters.Field, len(stored))
	for i, f := range stored {
		if f.Undefined {
			fields[i] = filters.F(f.Key, filters.Undefined)
			continue
		}
		var v any
		if len(f.Value) > 0 {
			dec := json.NewDecoder(bytes.NewReader(f.Value))
			dec.UseNumber()
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("persist: decode field %q: %w", f.Key, err)
			}
		}
		fields[i] = filters.F(f.Key, v)
	}
	*l = fieldList(filters.NewValues(fields...))
	return nil
}

// storedValue rewrites values whose JSON form would stringify differently
// once decoded. Times, floats, byte slices, Stringers and structs take their
// query text.
func storedValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, json.Number:
		return v
	case []byte:
		return string(x)
	case fmt.Stringer, error:
		s, ok := filters.Stringify(x)
		if !ok {
			return nil
		}
		return s
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return storedValue(rv.Elem().Interface())
	case reflect.Float32, reflect.Float64:
		s, _ := filters.Stringify(v)
		if f := rv.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return s
		}
		return json.Number(s)
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = storedValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		s, _ := filters.Stringify(v)
		return s
	}
	return v
}
