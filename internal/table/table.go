package table

import (
	"fmt"
)

// Field is one entry of a Schema.
type Field struct {
	Name string
	Kind Kind
}

// Schema maps column names to kinds, preserving column order.
type Schema []Field

// Kind returns the kind of the named column.
func (s Schema) Kind(name string) (Kind, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Kind, true
		}
	}
	return KindNull, false
}

// Has reports whether the schema contains the named column.
func (s Schema) Has(name string) bool {
	_, ok := s.Kind(name)
	return ok
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Column is a named homogeneous sequence of scalars. Null cells are
// permitted regardless of the column kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []Scalar
}

// Table is an ordered set of equal-length columns with unique names.
// Tables are treated as immutable: every transform produces a new Table,
// so a loaded Table can be shared read-only across concurrent pipelines.
type Table struct {
	cols []Column
	rows int
}

// New builds a Table from columns, enforcing the structural invariants:
// at least consistent lengths, and unique column names.
func New(cols ...Column) (*Table, error) {
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0].Values)
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("column name cannot be empty")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Values) != rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Values), rows)
		}
	}
	return &Table{cols: cols, rows: rows}, nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// Columns returns the table's columns in order. Callers must not mutate
// the returned slices.
func (t *Table) Columns() []Column { return t.cols }

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Schema derives the name->kind mapping in column order.
func (t *Table) Schema() Schema {
	s := make(Schema, len(t.cols))
	for i, c := range t.cols {
		s[i] = Field{Name: c.Name, Kind: c.Kind}
	}
	return s
}

// Value returns the cell at (row, column name).
func (t *Table) Value(row int, name string) (Scalar, bool) {
	c, ok := t.Column(name)
	if !ok {
		return Scalar{}, false
	}
	return c.Values[row], true
}

// Row is a lightweight view of one table row, used as the evaluation
// context for expressions.
type Row struct {
	t   *Table
	idx int
}

// Row returns a view of row i.
func (t *Table) Row(i int) Row { return Row{t: t, idx: i} }

// Value resolves a column reference within this row.
func (r Row) Value(name string) (Scalar, bool) {
	return r.t.Value(r.idx, name)
}

// Index returns the row's position in its table.
func (r Row) Index() int { return r.idx }

// Schema returns the schema of the row's table.
func (r Row) Schema() Schema { return r.t.Schema() }

// SelectRows produces a new Table containing the given row indices, in
// the given order.
func (t *Table) SelectRows(idx []int) *Table {
	cols := make([]Column, len(t.cols))
	for i, c := range t.cols {
		vals := make([]Scalar, len(idx))
		for j, ri := range idx {
			vals[j] = c.Values[ri]
		}
		cols[i] = Column{Name: c.Name, Kind: c.Kind, Values: vals}
	}
	return &Table{cols: cols, rows: len(idx)}
}

// WithColumn produces a new Table with the given column appended. An
// existing column of the same name is replaced in place (last write
// wins), preserving column order.
func (t *Table) WithColumn(col Column) (*Table, error) {
	if len(col.Values) != t.rows {
		return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, len(col.Values), t.rows)
	}
	cols := make([]Column, len(t.cols), len(t.cols)+1)
	copy(cols, t.cols)
	for i, c := range cols {
		if c.Name == col.Name {
			cols[i] = col
			return &Table{cols: cols, rows: t.rows}, nil
		}
	}
	cols = append(cols, col)
	return &Table{cols: cols, rows: t.rows}, nil
}

// Head returns the first n rows (all rows when n exceeds the row count).
func (t *Table) Head(n int) *Table {
	if n >= t.rows {
		return t
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.SelectRows(idx)
}
