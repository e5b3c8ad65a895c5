// Package table provides the immutable in-memory columnar dataset the
// transform engine operates on: typed scalars, columns, schemas, and
// column-name validation with nearest-match suggestions.
package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type of a Scalar or column.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Numeric reports whether values of this kind participate in arithmetic
// and aggregation.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// Scalar is a tagged union over the value types a Table cell can hold.
// The zero value is Null.
type Scalar struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
	Bool  bool
	Date  time.Time
}

// Null returns the null scalar.
func Null() Scalar { return Scalar{} }

func IntValue(v int64) Scalar     { return Scalar{Kind: KindInt, Int: v} }
func FloatValue(v float64) Scalar { return Scalar{Kind: KindFloat, Float: v} }
func StringValue(v string) Scalar { return Scalar{Kind: KindString, Str: v} }
func BoolValue(v bool) Scalar     { return Scalar{Kind: KindBool, Bool: v} }

// DateValue truncates to UTC; all date arithmetic in the engine is
// timezone-agnostic.
func DateValue(v time.Time) Scalar { return Scalar{Kind: KindDate, Date: v.UTC()} }

// IsNull reports whether the scalar carries no value.
func (s Scalar) IsNull() bool { return s.Kind == KindNull }

// AsFloat widens Int to Float. ok is false for non-numeric kinds.
func (s Scalar) AsFloat() (float64, bool) {
	switch s.Kind {
	case KindInt:
		return float64(s.Int), true
	case KindFloat:
		return s.Float, true
	default:
		return 0, false
	}
}

// String renders the canonical textual form of the scalar.
func (s Scalar) String() string {
	switch s.Kind {
	case KindNull:
		return ""
	case KindInt:
		return strconv.FormatInt(s.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(s.Float, 'f', -1, 64)
	case KindString:
		return s.Str
	case KindBool:
		return strconv.FormatBool(s.Bool)
	case KindDate:
		if s.Date.Hour() == 0 && s.Date.Minute() == 0 && s.Date.Second() == 0 {
			return s.Date.Format("2006-01-02")
		}
		return s.Date.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// TypeMismatchError reports an operator or function applied to
// incompatible scalar types.
type TypeMismatchError struct {
	Op    string
	Left  Kind
	Right Kind
}

func (e *TypeMismatchError) Error() string {
	if e.Right == KindNull && e.Left != KindNull {
		return fmt.Sprintf("type mismatch: %s not supported for %s", e.Op, e.Left)
	}
	return fmt.Sprintf("type mismatch: %s not supported between %s and %s", e.Op, e.Left, e.Right)
}

// Equal reports value equality. Int and Float compare numerically; any
// other cross-kind comparison is unequal. Null equals only Null.
func (a Scalar) Equal(b Scalar) bool {
	if a.Kind == KindNull || b.Kind == KindNull {
		return a.Kind == b.Kind
	}
	if a.Kind.Numeric() && b.Kind.Numeric() {
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return af == bf
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindString:
		return a.Str == b.Str
	case KindBool:
		return a.Bool == b.Bool
	case KindDate:
		return a.Date.Equal(b.Date)
	default:
		return false
	}
}

// Compare orders two scalars: -1, 0, or 1. Int widens to Float; Date
// compares chronologically; String lexically; Bool false<true. Null is
// ordered before every non-null value. Comparing other mixed kinds is a
// TypeMismatchError.
func (a Scalar) Compare(b Scalar) (int, error) {
	if a.Kind == KindNull || b.Kind == KindNull {
		switch {
		case a.Kind == b.Kind:
			return 0, nil
		case a.Kind == KindNull:
			return -1, nil
		default:
			return 1, nil
		}
	}
	if a.Kind.Numeric() && b.Kind.Numeric() {
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a.Kind != b.Kind {
		return 0, &TypeMismatchError{Op: "compare", Left: a.Kind, Right: b.Kind}
	}
	switch a.Kind {
	case KindString:
		return strings.Compare(a.Str, b.Str), nil
	case KindBool:
		switch {
		case a.Bool == b.Bool:
			return 0, nil
		case !a.Bool:
			return -1, nil
		default:
			return 1, nil
		}
	case KindDate:
		switch {
		case a.Date.Before(b.Date):
			return -1, nil
		case a.Date.After(b.Date):
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, &TypeMismatchError{Op: "compare", Left: a.Kind, Right: b.Kind}
	}
}

// Coerce parses raw into a scalar of the target kind. Used when matching
// configured filter values (always strings in the document) against typed
// columns. ok is false when raw does not parse as the target kind.
func Coerce(raw string, target Kind) (Scalar, bool) {
	switch target {
	case KindInt:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return IntValue(n), true
		}
		return Scalar{}, false
	case KindFloat:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return FloatValue(f), true
		}
		return Scalar{}, false
	case KindBool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return BoolValue(b), true
		}
		return Scalar{}, false
	case KindDate:
		if t, err := ParseDate(raw); err == nil {
			return DateValue(t), true
		}
		return Scalar{}, false
	case KindString:
		return StringValue(raw), true
	default:
		return Scalar{}, false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"20060102",
}

// ParseDate parses the date/datetime forms the engine accepts.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
