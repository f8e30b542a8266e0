package filters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"sort"
)

// Undefined marks a field that is present but has no value. Unlike nil, it
// is not dropped from the query string: it is written as the literal text
// "undefined".
var Undefined = undefinedValue{}

type undefinedValue struct{}

// String returns "undefined".
func (undefinedValue) String() string {
	return "undefined"
}

// Field is a single named filter value.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for Field{Key: key, Value: value}.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Values is an insertion-ordered set of filter fields.
// The zero value is an empty set. Values is never mutated in place; every
// modifying method returns a new Values, so a Values can be shared freely.
type Values struct {
	keys []string
	m    map[string]any
}

// NewValues builds a Values from fields in order. A repeated key keeps its
// first position and its last value.
func NewValues(fields ...Field) Values {
	if len(fields) == 0 {
		return Values{}
	}
	v := Values{
		keys: make([]string, 0, len(fields)),
		m:    make(map[string]any, len(fields)),
	}
	for _, f := range fields {
		v.set(f.Key, f.Value)
	}
	return v
}

// FromMap builds a Values from a plain map. Go maps are unordered, so keys
// are sorted to keep the result deterministic.
func FromMap(m map[string]any) Values {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, len(keys))
	for i, k := range keys {
		fields[i] = F(k, m[k])
	}
	return NewValues(fields...)
}

func (v *Values) set(key string, value any) {
	if v.m == nil {
		v.m = make(map[string]any)
	}
	if _, ok := v.m[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.m[key] = value
}

func (v Values) clone(extra int) Values {
	out := Values{
		keys: make([]string, len(v.keys), len(v.keys)+extra),
		m:    make(map[string]any, len(v.keys)+extra),
	}
	copy(out.keys, v.keys)
	for k, val := range v.m {
		out.m[k] = val
	}
	return out
}

// Len returns the number of fields.
func (v Values) Len() int {
	return len(v.keys)
}

// Get returns the value stored under key.
func (v Values) Get(key string) (any, bool) {
	val, ok := v.m[key]
	return val, ok
}

// Has reports whether key is present, even when its value is nil.
func (v Values) Has(key string) bool {
	_, ok := v.m[key]
	return ok
}

// Keys returns the field names in insertion order.
func (v Values) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// All iterates fields in insertion order.
func (v Values) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range v.keys {
			if !yield(k, v.m[k]) {
				return
			}
		}
	}
}

// Fields returns the fields in insertion order.
func (v Values) Fields() []Field {
	out := make([]Field, len(v.keys))
	for i, k := range v.keys {
		out[i] = F(k, v.m[k])
	}
	return out
}

// Map returns a copy of the fields as a plain map.
func (v Values) Map() map[string]any {
	out := make(map[string]any, len(v.keys))
	for k, val := range v.m {
		out[k] = val
	}
	return out
}

// With returns a copy of v with key set to value. An existing key keeps its
// position; a new key is appended.
func (v Values) With(key string, value any) Values {
	out := v.clone(1)
	out.set(key, value)
	return out
}

// Merge returns a copy of v with every field of other applied on top, in
// other's order.
func (v Values) Merge(other Values) Values {
	if other.Len() == 0 {
		return v
	}
	out := v.clone(other.Len())
	for _, k := range other.keys {
		out.set(k, other.m[k])
	}
	return out
}

// Equal reports whether v and other hold the same fields with deeply equal
// values. Field order is not compared.
func (v Values) Equal(other Values) bool {
	if len(v.keys) != len(other.keys) {
		return false
	}
	for k, val := range v.m {
		ov, ok := other.m[k]
		if !ok || !reflect.DeepEqual(val, ov) {
			return false
		}
	}
	return true
}

// String returns the encoded query form of v.
func (v Values) String() string {
	return Encode(v)
}

// MarshalJSON encodes v as a JSON object in insertion order. Undefined
// fields are skipped since JSON has no way to express them.
func (v Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range v.keys {
		val := v.m[k]
		if val == Undefined {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("filters: encode field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order. Numbers are
// decoded as json.Number so they stringify exactly as they were written.
// A JSON null decodes to an empty Values.
func (v *Values) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*v = Values{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("filters: values must be a JSON object, got %v", tok)
	}

	var out Values
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("filters: unexpected token %v", tok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("filters: decode field %q: %w", key, err)
		}
		out.set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*v = out
	return nil
}
