package expr

import (
	"regexp"

	"chartforge/internal/table"
)

// Node is one vertex of a parsed expression tree. Trees are immutable
// once parsed and carry no back-references, so a parsed expression can be
// evaluated concurrently against many rows.
type Node interface {
	node()
}

// ColumnRef resolves a column by name in the row context.
type ColumnRef struct {
	Name string
}

// Literal holds a constant scalar.
type Literal struct {
	Value table.Scalar
}

// Call is a named function application with ordered arguments.
type Call struct {
	Name string
	Args []Node
}

// Binary covers arithmetic (+ - * /), comparisons (= != > >= < <=), and
// the logical connectives AND / OR.
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

// Unary covers logical NOT and numeric negation.
type Unary struct {
	Op   string // "NOT" or "-"
	Expr Node
}

// In tests membership of a value in a literal set.
type In struct {
	Value  Node
	Set    []Node
	Negate bool
}

// Between tests low <= value <= high, inclusive on both ends.
type Between struct {
	Value Node
	Low   Node
	High  Node
}

// Like matches a string value against a SQL-style pattern where %
// matches any run of characters and _ exactly one. Matching is
// case-sensitive. The pattern is compiled once at parse time.
type Like struct {
	Value   Node
	Pattern string
	Negate  bool
	re      *regexp.Regexp
}

// IsNull is the explicit null check; unlike ordinary comparisons it
// observes nulls instead of swallowing them.
type IsNull struct {
	Value  Node
	Negate bool
}

func (*ColumnRef) node() {}
func (*Literal) node()   {}
func (*Call) node()      {}
func (*Binary) node()    {}
func (*Unary) node()     {}
func (*In) node()        {}
func (*Between) node()   {}
func (*Like) node()      {}
func (*IsNull) node()    {}

// Columns returns the distinct column names referenced anywhere in the
// expression, in first-appearance order. Used to validate references
// before any evaluation happens.
func Columns(n Node) []string {
	seen := make(map[string]bool)
	var out []string
	walkColumns(n, seen, &out)
	return out
}

func walkColumns(n Node, seen map[string]bool, out *[]string) {
	switch v := n.(type) {
	case *ColumnRef:
		if !seen[v.Name] {
			seen[v.Name] = true
			*out = append(*out, v.Name)
		}
	case *Call:
		for _, a := range v.Args {
			walkColumns(a, seen, out)
		}
	case *Binary:
		walkColumns(v.Left, seen, out)
		walkColumns(v.Right, seen, out)
	case *Unary:
		walkColumns(v.Expr, seen, out)
	case *In:
		walkColumns(v.Value, seen, out)
		for _, s := range v.Set {
			walkColumns(s, seen, out)
		}
	case *Between:
		walkColumns(v.Value, seen, out)
		walkColumns(v.Low, seen, out)
		walkColumns(v.High, seen, out)
	case *Like:
		walkColumns(v.Value, seen, out)
	case *IsNull:
		walkColumns(v.Value, seen, out)
	}
}
