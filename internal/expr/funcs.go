package expr

import (
	"fmt"
	"math"
	"strings"
	"time"

	"chartforge/internal/table"
)

// UnknownFunctionError reports a call to a function that is not
// registered.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q", e.Name)
}

// DomainError reports a function applied to a value outside its
// mathematical domain.
type DomainError struct {
	Func   string
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Func, e.Reason)
}

type funcDef struct {
	minArgs int
	maxArgs int // -1 for variadic
	arity   string
	// propagateNull: a null argument short-circuits to a null result.
	// Disabled for the string-assembly functions, which render null as
	// the empty string instead.
	propagateNull bool
	impl          func(args []table.Scalar) (table.Scalar, error)
}

// functions is the registry of derived-column functions. All are pure
// and deterministic; invalid argument types are errors, never silent
// coercions.
var functions = map[string]funcDef{
	"to_week":       {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnToWeek},
	"to_month":      {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnToMonth},
	"to_quarter":    {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnToQuarter},
	"to_year":       {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnToYear},
	"to_hour":       {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnToHour},
	"weekday":       {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnWeekday},
	"weekday_name":  {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnWeekdayName},
	"source_medium": {minArgs: 2, maxArgs: 2, arity: "expects 2 arguments", impl: fnSourceMedium},
	"concat":        {minArgs: 2, maxArgs: -1, arity: "expects at least one value and a separator", impl: fnConcat},
	"upper":         {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnUpper},
	"lower":         {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnLower},
	"round":         {minArgs: 1, maxArgs: 2, arity: "expects a value and an optional digit count", propagateNull: true, impl: fnRound},
	"abs":           {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnAbs},
	"log":           {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnLog},
	"sqrt":          {minArgs: 1, maxArgs: 1, arity: "expects 1 argument", propagateNull: true, impl: fnSqrt},
}

// Functions returns the registered function names, for diagnostics.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	return names
}

func argDate(args []table.Scalar) (time.Time, error) {
	if args[0].Kind != table.KindDate {
		return time.Time{}, &table.TypeMismatchError{Op: "date argument", Left: args[0].Kind, Right: table.KindDate}
	}
	return args[0].Date, nil
}

func argNumber(s table.Scalar) (float64, error) {
	f, ok := s.AsFloat()
	if !ok {
		return 0, &table.TypeMismatchError{Op: "numeric argument", Left: s.Kind, Right: table.KindFloat}
	}
	return f, nil
}

func argString(s table.Scalar) (string, error) {
	if s.Kind != table.KindString {
		return "", &table.TypeMismatchError{Op: "string argument", Left: s.Kind, Right: table.KindString}
	}
	return s.Str, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// fnToWeek truncates to the preceding (or same) Monday.
func fnToWeek(args []table.Scalar) (table.Scalar, error) {
	d, err := argDate(args)
	if err != nil {
		return table.Scalar{}, err
	}
	offset := (int(d.Weekday()) + 6) % 7 // Monday == 0
	return table.DateValue(midnight(d).AddDate(0, 0, -offset)), nil
}

func fnToMonth(args []table.Scalar) (table.Scalar, error) {
	d, err := argDate(args)
	if err != nil {
		return table.Scalar{}, err
	}
	return table.DateValue(time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)), nil
}

func fnToQuarter(args []table.Scalar) (table.Scalar, error) {
	d, err := argDate(args)
	if err != nil {
		return table.Scalar{}, err
	}
	qm := time.Month((int(d.Month())-1)/3*3 + 1)
	return table.DateValue(time.Date(d.Year(), qm, 1, 0, 0, 0, 0, time.UTC)), nil
}

func fnToYear(args []table.Scalar) (table.Scalar, error) {
	d, err := argDate(args)
	if err != nil {
		return table.Scalar{}, err
	}
	return table.DateValue(time.Date(d.Year(), 1, 1, 0, 0, 0, 0, time.UTC)), nil
}

func fnToHour(args []table.Scalar) (table.Scalar, error) {
	d, err := argDate(args)
	if err != nil {
		return table.Scalar{}, err
	}
	return table.IntValue(int64(d.Hour())), nil
}

// fnWeekday returns the ISO day of week: Monday == 0 through Sunday == 6.
func fnWeekday(args []table.Scalar) (table.Scalar, error) {
	d, err := argDate(args)
	if err != nil {
		return table.Scalar{}, err
	}
	return table.IntValue(int64((int(d.Weekday()) + 6) % 7)), nil
}

func fnWeekdayName(args []table.Scalar) (table.Scalar, error) {
	d, err := argDate(args)
	if err != nil {
		return table.Scalar{}, err
	}
	return table.StringValue(d.Weekday().String()), nil
}

// fnSourceMedium renders "source / medium" with nulls as empty strings,
// matching the common analytics channel notation.
func fnSourceMedium(args []table.Scalar) (table.Scalar, error) {
	return table.StringValue(args[0].String() + " / " + args[1].String()), nil
}

// fnConcat joins all values using the final argument as separator.
// Nulls render as empty strings.
func fnConcat(args []table.Scalar) (table.Scalar, error) {
	sep := args[len(args)-1].String()
	parts := make([]string, len(args)-1)
	for i, a := range args[:len(args)-1] {
		parts[i] = a.String()
	}
	return table.StringValue(strings.Join(parts, sep)), nil
}

func fnUpper(args []table.Scalar) (table.Scalar, error) {
	s, err := argString(args[0])
	if err != nil {
		return table.Scalar{}, err
	}
	return table.StringValue(strings.ToUpper(s)), nil
}

func fnLower(args []table.Scalar) (table.Scalar, error) {
	s, err := argString(args[0])
	if err != nil {
		return table.Scalar{}, err
	}
	return table.StringValue(strings.ToLower(s)), nil
}

// fnRound rounds half away from zero to the given number of digits
// (default 0).
func fnRound(args []table.Scalar) (table.Scalar, error) {
	x, err := argNumber(args[0])
	if err != nil {
		return table.Scalar{}, err
	}
	digits := int64(0)
	if len(args) == 2 {
		if args[1].Kind != table.KindInt {
			return table.Scalar{}, &table.TypeMismatchError{Op: "digit count", Left: args[1].Kind, Right: table.KindInt}
		}
		digits = args[1].Int
	}
	p := math.Pow(10, float64(digits))
	v := x * p
	return table.FloatValue(math.Copysign(math.Floor(math.Abs(v)+0.5), v) / p), nil
}

func fnAbs(args []table.Scalar) (table.Scalar, error) {
	switch args[0].Kind {
	case table.KindInt:
		v := args[0].Int
		if v < 0 {
			v = -v
		}
		return table.IntValue(v), nil
	case table.KindFloat:
		return table.FloatValue(math.Abs(args[0].Float)), nil
	default:
		return table.Scalar{}, &table.TypeMismatchError{Op: "numeric argument", Left: args[0].Kind, Right: table.KindFloat}
	}
}

func fnLog(args []table.Scalar) (table.Scalar, error) {
	x, err := argNumber(args[0])
	if err != nil {
		return table.Scalar{}, err
	}
	if x <= 0 {
		return table.Scalar{}, &DomainError{Func: "log", Reason: fmt.Sprintf("non-positive input %v", x)}
	}
	return table.FloatValue(math.Log(x)), nil
}

func fnSqrt(args []table.Scalar) (table.Scalar, error) {
	x, err := argNumber(args[0])
	if err != nil {
		return table.Scalar{}, err
	}
	if x < 0 {
		return table.Scalar{}, &DomainError{Func: "sqrt", Reason: fmt.Sprintf("negative input %v", x)}
	}
	return table.FloatValue(math.Sqrt(x)), nil
}
