package filters

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Encode serializes v as an application/x-www-form-urlencoded query string
// in field order. Fields whose value is nil are omitted; every other value,
// Undefined included, is written as key=Stringify(value).
func Encode(v Values) string {
	var b strings.Builder
	first := true
	for _, k := range v.keys {
		s, ok := Stringify(v.m[k])
		if !ok {
			continue
		}
		if !first {
			b.WriteByte('&')
		}
		first = false
		b.WriteString(escape(k))
		b.WriteByte('=')
		b.WriteString(escape(s))
	}
	return b.String()
}

// Decode parses a query string produced by Encode back into Values. Every
// value comes back as a string, in the order it appears in the query.
func Decode(query string) (Values, error) {
	query = strings.TrimPrefix(query, "?")
	var out Values
	for query != "" {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return Values{}, fmt.Errorf("filters: decode key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return Values{}, fmt.Errorf("filters: decode value of %q: %w", key, err)
		}
		out.set(key, value)
	}
	return out, nil
}

// Stringify converts a filter value to its query form. It returns false when
// the value is nil (or a nil pointer), which means the field is omitted.
func Stringify(value any) (string, bool) {
	if isNull(value) {
		return "", false
	}
	return stringify(value), true
}

func isNull(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func stringify(value any) string {
	if isNull(value) {
		// Only reachable for elements of a list.
		return ""
	}

	switch v := value.(type) {
	case undefinedValue:
		return v.String()
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatNumber(v, 64)
	case float32:
		return formatNumber(float64(v), 32)
	case time.Time:
		return v.UTC().Format("2006-01-02T15:04:05.000Z")
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		json.Number, []byte, fmt.Stringer, error:
		return cast.ToString(v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		return stringify(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return formatNumber(rv.Float(), 32)
	case reflect.Float64:
		return formatNumber(rv.Float(), 64)
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = stringify(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(b)
}

// formatNumber renders a float the way a browser prints a number: integral
// values without a fraction, exponent form outside [1e-6, 1e21).
func formatNumber(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, bitSize)
		mantissa, exp, _ := strings.Cut(s, "e")
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + exp[:1] + digits
	}
	return strconv.FormatFloat(f, 'f', -1, bitSize)
}

const upperhex = "0123456789ABCDEF"

func shouldEscape(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return false
	case c == '*', c == '-', c == '.', c == '_':
		return false
	}
	return true
}

// escape applies form-urlencoding with the browser byte set, which differs
// from url.QueryEscape on '*' and '~'.
func escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ':
			b.WriteByte('+')
		case shouldEscape(c):
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
