package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formrules/pkg/model"
)

// Kind tags a NormalizedValue.
type Kind uint8

const (
	KindUnresolvable Kind = iota
	KindNumber
	KindString
)

// NormalizedValue is a comparison operand: a number, a lower-cased string or
// unresolvable.
type NormalizedValue struct {
	kind Kind
	num  float64
	str  string
}

// Num wraps a number.
func Num(f float64) NormalizedValue { return NormalizedValue{kind: KindNumber, num: f} }

// Str wraps a string. Callers pass already lower-cased text.
func Str(s string) NormalizedValue { return NormalizedValue{kind: KindString, str: s} }

// Unresolvable is the operand that skips a comparison.
func Unresolvable() NormalizedValue { return NormalizedValue{} }

// Kind reports the variant.
func (v NormalizedValue) Kind() Kind { return v.kind }

// Resolved reports whether v can be compared.
func (v NormalizedValue) Resolved() bool { return v.kind != KindUnresolvable }

// Number returns the numeric payload.
func (v NormalizedValue) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Text returns the string payload.
func (v NormalizedValue) Text() (string, bool) { return v.str, v.kind == KindString }

func (v NormalizedValue) String() string {
	switch v.kind {
	case KindNumber:
		return fmt.Sprintf("Num(%s)", formatNumber(v.num))
	case KindString:
		return fmt.Sprintf("Str(%q)", v.str)
	default:
		return "Unresolvable"
	}
}

// Normalize converts raw into a comparison operand using the declared field
// type. Empty input is unresolvable. Date fields resolve to epoch milliseconds
// or unresolvable. Anything else is numeric when it coerces to a number, so
// booleans become 1 or 0 and whitespace becomes 0, and a lower-cased string
// otherwise.
func Normalize(raw any, fieldType model.FieldType) NormalizedValue {
	if isBlank(raw) {
		return Unresolvable()
	}
	if fieldType == model.FieldTypeDate {
		ms, ok := parseDate(raw)
		if !ok {
			return Unresolvable()
		}
		return Num(ms)
	}
	if n, ok := coerceNumber(raw); ok {
		return Num(n)
	}
	return Str(strings.ToLower(coerceString(raw)))
}

func isBlank(raw any) bool {
	if isUnset(raw) {
		return true
	}
	if s, ok := raw.(string); ok {
		return s == ""
	}
	return false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// parseDate returns epoch milliseconds. Timestamps without a zone are read as
// UTC. Numbers are taken as epoch milliseconds.
func parseDate(raw any) (float64, bool) {
	switch v := raw.(type) {
	case time.Time:
		if v.IsZero() {
			return 0, false
		}
		return float64(v.UnixMilli()), true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return float64(t.UnixMilli()), true
			}
		}
		return 0, false
	case bool:
		return 0, false
	default:
		return coerceNumber(v)
	}
}
