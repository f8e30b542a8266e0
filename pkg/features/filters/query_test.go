package filters

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

type reservationStatus string

type weekday int

func (d weekday) String() string {
	return [...]string{"sun", "mon", "tue"}[d]
}

func TestStringify(t *testing.T) {
	s := "ptr"
	var nilPtr *int
	when := time.Date(2026, 10, 15, 9, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	tests := []struct {
		name   string
		value  any
		want   string
		wantOK bool
	}{
		{"nil", nil, "", false},
		{"nil pointer", nilPtr, "", false},
		{"undefined", Undefined, "undefined", true},
		{"string", "name", "name", true},
		{"empty string", "", "", true},
		{"literal null text", "null", "null", true},
		{"bool", true, "true", true},
		{"int", 10, "10", true},
		{"negative int64", int64(-5), "-5", true},
		{"uint8", uint8(7), "7", true},
		{"float integral", 1.0, "1", true},
		{"float fraction", 1.5, "1.5", true},
		{"float32", float32(0.1), "0.1", true},
		{"negative zero", math.Copysign(0, -1), "0", true},
		{"NaN", math.NaN(), "NaN", true},
		{"+Inf", math.Inf(1), "Infinity", true},
		{"-Inf", math.Inf(-1), "-Infinity", true},
		{"large", 1e21, "1e+21", true},
		{"below large", 123456789012.0, "123456789012", true},
		{"tiny", 1e-7, "1e-7", true},
		{"small", 0.000001, "0.000001", true},
		{"json number", json.Number("42.50"), "42.50", true},
		{"bytes", []byte("raw"), "raw", true},
		{"named string", reservationStatus("APPROVED"), "APPROVED", true},
		{"stringer", weekday(1), "mon", true},
		{"error", errors.New("boom"), "boom", true},
		{"pointer", &s, "ptr", true},
		{"string slice", []string{"a", "b"}, "a,b", true},
		{"mixed slice", []any{1, nil, "x", Undefined}, "1,,x,undefined", true},
		{"empty slice", []int{}, "", true},
		{"time", when, "2026-10-15T12:30:00.000Z", true},
		{"struct", struct{ A int }{1}, `{"A":1}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Stringify(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("Stringify(%v) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Stringify(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name   string
		values Values
		want   string
	}{
		{"empty", Values{}, ""},
		{"ordered", NewValues(F("page", 0), F("limit", 10), F("sort", "name")), "page=0&limit=10&sort=name"},
		{"all null", NewValues(F("a", nil)), ""},
		{"null in the middle", NewValues(F("a", "x"), F("b", nil), F("c", "y")), "a=x&c=y"},
		{"space", NewValues(F("q", "trilha do morro")), "q=trilha+do+morro"},
		{"reserved", NewValues(F("q", "a&b=c")), "q=a%26b%3Dc"},
		{"unreserved set", NewValues(F("q", "*-._~")), "q=*-._%7E"},
		{"utf-8", NewValues(F("cidade", "São Paulo")), "cidade=S%C3%A3o+Paulo"},
		{"escaped key", NewValues(F("start date", "2026-01-01")), "start+date=2026-01-01"},
		{"list", NewValues(F("status", []string{"PENDING", "APPROVED"})), "status=PENDING%2CAPPROVED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.values); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	original := NewValues(
		F("q", "a b&c=d"),
		F("page", 1),
		F("cidade", "São Paulo"),
		F("empty", ""),
		F("gone", nil),
	)

	decoded, err := Decode("?" + Encode(original))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := NewValues(F("q", "a b&c=d"), F("page", "1"), F("cidade", "São Paulo"), F("empty", ""))
	if !decoded.Equal(want) {
		t.Errorf("Expected %v, got %v", want.Map(), decoded.Map())
	}
	keys := decoded.Keys()
	if len(keys) != 4 || keys[0] != "q" || keys[3] != "empty" {
		t.Errorf("Expected order preserved, got %v", keys)
	}
	if Encode(decoded) != Encode(original) {
		t.Errorf("Expected re-encoding to be stable, got %q vs %q", Encode(decoded), Encode(original))
	}
}

func TestDecodeInvalid(t *testing.T) {
	if _, err := Decode("a=%zz"); err == nil {
		t.Error("Expected error for bad escape")
	}
	if v, err := Decode(""); err != nil || v.Len() != 0 {
		t.Errorf("Expected empty values for empty query, got %v %v", v.Map(), err)
	}
	if v, err := Decode("flag&&x=1"); err != nil || v.Len() != 2 {
		t.Errorf("Expected bare key and skipped empty pair, got %v %v", v.Map(), err)
	}
}
