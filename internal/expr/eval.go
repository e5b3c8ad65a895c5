package expr

import (
	"fmt"

	"chartforge/internal/table"
)

// Evaluate computes the expression against one row. It is a pure
// function of (node, row): no state is retained between calls, so one
// parsed tree serves any number of rows and goroutines.
//
// Null handling follows the engine contract: a null operand makes
// arithmetic yield null and comparisons yield false; only IS NULL /
// IS NOT NULL observe nulls directly.
func Evaluate(n Node, row table.Row) (table.Scalar, error) {
	switch v := n.(type) {
	case *Literal:
		return v.Value, nil

	case *ColumnRef:
		val, ok := row.Value(v.Name)
		if !ok {
			return table.Scalar{}, table.RequireColumn(row.Schema(), v.Name)
		}
		return val, nil

	case *Binary:
		return evalBinary(v, row)

	case *Unary:
		return evalUnary(v, row)

	case *In:
		return evalIn(v, row)

	case *Between:
		return evalBetween(v, row)

	case *Like:
		return evalLike(v, row)

	case *IsNull:
		val, err := Evaluate(v.Value, row)
		if err != nil {
			return table.Scalar{}, err
		}
		return table.BoolValue(val.IsNull() != v.Negate), nil

	case *Call:
		return evalCall(v, row)
	}
	return table.Scalar{}, fmt.Errorf("unsupported expression node %T", n)
}

func evalBinary(b *Binary, row table.Row) (table.Scalar, error) {
	switch b.Op {
	case "AND", "OR":
		left, err := Evaluate(b.Left, row)
		if err != nil {
			return table.Scalar{}, err
		}
		lv, err := Truthy(left)
		if err != nil {
			return table.Scalar{}, err
		}
		// Short-circuit.
		if b.Op == "AND" && !lv {
			return table.BoolValue(false), nil
		}
		if b.Op == "OR" && lv {
			return table.BoolValue(true), nil
		}
		right, err := Evaluate(b.Right, row)
		if err != nil {
			return table.Scalar{}, err
		}
		rv, err := Truthy(right)
		if err != nil {
			return table.Scalar{}, err
		}
		return table.BoolValue(rv), nil
	}

	left, err := Evaluate(b.Left, row)
	if err != nil {
		return table.Scalar{}, err
	}
	right, err := Evaluate(b.Right, row)
	if err != nil {
		return table.Scalar{}, err
	}

	switch b.Op {
	case "+", "-", "*", "/":
		return evalArithmetic(b.Op, left, right)
	default:
		return compareScalars(b.Op, left, right)
	}
}

func evalUnary(u *Unary, row table.Row) (table.Scalar, error) {
	val, err := Evaluate(u.Expr, row)
	if err != nil {
		return table.Scalar{}, err
	}
	switch u.Op {
	case "NOT":
		v, err := Truthy(val)
		if err != nil {
			return table.Scalar{}, err
		}
		return table.BoolValue(!v), nil
	case "-":
		switch val.Kind {
		case table.KindNull:
			return table.Null(), nil
		case table.KindInt:
			return table.IntValue(-val.Int), nil
		case table.KindFloat:
			return table.FloatValue(-val.Float), nil
		default:
			return table.Scalar{}, &table.TypeMismatchError{Op: "negate", Left: val.Kind}
		}
	}
	return table.Scalar{}, fmt.Errorf("unsupported unary operator %q", u.Op)
}

func evalIn(in *In, row table.Row) (table.Scalar, error) {
	val, err := Evaluate(in.Value, row)
	if err != nil {
		return table.Scalar{}, err
	}
	if val.IsNull() {
		return table.BoolValue(false), nil
	}
	found := false
	for _, member := range in.Set {
		mv, err := Evaluate(member, row)
		if err != nil {
			return table.Scalar{}, err
		}
		if mv.IsNull() {
			continue
		}
		eq, err := scalarsEqual(val, mv)
		if err != nil {
			return table.Scalar{}, err
		}
		if eq {
			found = true
			break
		}
	}
	return table.BoolValue(found != in.Negate), nil
}

func evalBetween(b *Between, row table.Row) (table.Scalar, error) {
	val, err := Evaluate(b.Value, row)
	if err != nil {
		return table.Scalar{}, err
	}
	low, err := Evaluate(b.Low, row)
	if err != nil {
		return table.Scalar{}, err
	}
	high, err := Evaluate(b.High, row)
	if err != nil {
		return table.Scalar{}, err
	}
	if val.IsNull() || low.IsNull() || high.IsNull() {
		return table.BoolValue(false), nil
	}
	geLow, err := compareScalars(">=", val, low)
	if err != nil {
		return table.Scalar{}, err
	}
	if !geLow.Bool {
		return table.BoolValue(false), nil
	}
	return compareScalars("<=", val, high)
}

func evalLike(l *Like, row table.Row) (table.Scalar, error) {
	val, err := Evaluate(l.Value, row)
	if err != nil {
		return table.Scalar{}, err
	}
	if val.IsNull() {
		return table.BoolValue(false), nil
	}
	if val.Kind != table.KindString {
		return table.Scalar{}, &table.TypeMismatchError{Op: "LIKE", Left: val.Kind, Right: table.KindString}
	}
	return table.BoolValue(l.re.MatchString(val.Str) != l.Negate), nil
}

func evalCall(c *Call, row table.Row) (table.Scalar, error) {
	def := functions[c.Name] // existence checked at parse time
	args := make([]table.Scalar, len(c.Args))
	for i, a := range c.Args {
		v, err := Evaluate(a, row)
		if err != nil {
			return table.Scalar{}, err
		}
		args[i] = v
	}
	if def.propagateNull {
		for _, a := range args {
			if a.IsNull() {
				return table.Null(), nil
			}
		}
	}
	out, err := def.impl(args)
	if err != nil {
		return table.Scalar{}, fmt.Errorf("%s: %w", c.Name, err)
	}
	return out, nil
}

func evalArithmetic(op string, a, b table.Scalar) (table.Scalar, error) {
	if a.IsNull() || b.IsNull() {
		return table.Null(), nil
	}
	if !a.Kind.Numeric() || !b.Kind.Numeric() {
		return table.Scalar{}, &table.TypeMismatchError{Op: op, Left: a.Kind, Right: b.Kind}
	}
	if op == "/" {
		bf, _ := b.AsFloat()
		if bf == 0 {
			return table.Scalar{}, &DomainError{Func: "divide", Reason: "division by zero"}
		}
		af, _ := a.AsFloat()
		return table.FloatValue(af / bf), nil
	}
	if a.Kind == table.KindInt && b.Kind == table.KindInt {
		switch op {
		case "+":
			return table.IntValue(a.Int + b.Int), nil
		case "-":
			return table.IntValue(a.Int - b.Int), nil
		case "*":
			return table.IntValue(a.Int * b.Int), nil
		}
	}
	af, _ := a.AsFloat()
	bf, _ := b.AsFloat()
	switch op {
	case "+":
		return table.FloatValue(af + bf), nil
	case "-":
		return table.FloatValue(af - bf), nil
	case "*":
		return table.FloatValue(af * bf), nil
	}
	return table.Scalar{}, fmt.Errorf("unsupported arithmetic operator %q", op)
}

// coercePair narrows a string operand toward the other operand's kind,
// so that '2024-01-01' compares against a date column and '42' against
// an int column. Failed coercions leave the operands unchanged; the
// compatibility check below then reports the mismatch.
func coercePair(a, b table.Scalar) (table.Scalar, table.Scalar) {
	if a.Kind == table.KindString && b.Kind != table.KindString {
		if c, ok := table.Coerce(a.Str, b.Kind); ok {
			return c, b
		}
	}
	if b.Kind == table.KindString && a.Kind != table.KindString {
		if c, ok := table.Coerce(b.Str, a.Kind); ok {
			return a, c
		}
	}
	return a, b
}

func compatible(a, b table.Scalar) bool {
	if a.Kind == b.Kind {
		return true
	}
	return a.Kind.Numeric() && b.Kind.Numeric()
}

func scalarsEqual(a, b table.Scalar) (bool, error) {
	a, b = coercePair(a, b)
	if !compatible(a, b) {
		return false, &table.TypeMismatchError{Op: "=", Left: a.Kind, Right: b.Kind}
	}
	return a.Equal(b), nil
}

func compareScalars(op string, a, b table.Scalar) (table.Scalar, error) {
	if a.IsNull() || b.IsNull() {
		return table.BoolValue(false), nil
	}
	a, b = coercePair(a, b)
	if !compatible(a, b) {
		return table.Scalar{}, &table.TypeMismatchError{Op: op, Left: a.Kind, Right: b.Kind}
	}
	switch op {
	case "=":
		return table.BoolValue(a.Equal(b)), nil
	case "!=":
		return table.BoolValue(!a.Equal(b)), nil
	}
	cmp, err := a.Compare(b)
	if err != nil {
		return table.Scalar{}, err
	}
	switch op {
	case ">":
		return table.BoolValue(cmp > 0), nil
	case ">=":
		return table.BoolValue(cmp >= 0), nil
	case "<":
		return table.BoolValue(cmp < 0), nil
	case "<=":
		return table.BoolValue(cmp <= 0), nil
	}
	return table.Scalar{}, fmt.Errorf("unsupported comparison operator %q", op)
}

// Truthy interprets a scalar in boolean position. Null is false so that
// filters never admit rows on missing data.
func Truthy(s table.Scalar) (bool, error) {
	switch s.Kind {
	case table.KindBool:
		return s.Bool, nil
	case table.KindNull:
		return false, nil
	default:
		return false, &table.TypeMismatchError{Op: "logical operand", Left: s.Kind, Right: table.KindBool}
	}
}
