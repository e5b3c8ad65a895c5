// Package transform applies a chart's declarative transform directives
// to a Table: filter, derive, group/aggregate, sort, and limit, in that
// fixed order. Every stage is a pure Table -> Table function; the input
// Table is never mutated, so one loaded Table can feed many concurrent
// pipelines.
package transform

import (
	"fmt"
	"sort"
	"strings"

	"chartforge/internal/expr"
	"chartforge/internal/spec"
	"chartforge/internal/table"
)

// Stage names used in PipelineError.
const (
	StageFilter    = "filter"
	StageDerive    = "derive"
	StageAggregate = "aggregate"
	StageSort      = "sort"
	StageLimit     = "limit"
)

// PipelineError wraps a stage failure with the stage name and, where
// applicable, the expression or column that triggered it.
type PipelineError struct {
	Stage  string
	Detail string
	Err    error
}

func (e *PipelineError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s stage: %s: %v", e.Stage, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func stageErr(stage, detail string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Detail: detail, Err: err}
}

// Apply runs the transform pipeline for one chart configuration.
// Stages with absent configuration are skipped. The returned Table is
// always a new value; the input is left untouched.
func Apply(tbl *table.Table, cfg *spec.ChartConfig) (*table.Table, error) {
	out := tbl
	var err error

	if cfg.Filter != nil {
		out, err = applyFilter(out, cfg.Filter)
		if err != nil {
			return nil, err
		}
	}
	if len(cfg.Derive) > 0 {
		out, err = applyDerive(out, cfg.Derive)
		if err != nil {
			return nil, err
		}
	}
	if keys := groupKeys(cfg); len(keys) > 0 {
		out, err = applyAggregate(out, keys, aggKind(cfg))
		if err != nil {
			return nil, err
		}
	}
	if len(cfg.Sort) > 0 {
		out, err = applySort(out, cfg.Sort)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Limit != nil {
		out, err = applyLimit(out, *cfg.Limit)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// groupKeys resolves the grouping column set. Aggregation is only
// performed when the chart asks for it, either with an explicit
// group_by list or an agg kind; the x column then joins the key so
// series stay distinct per x value.
func groupKeys(cfg *spec.ChartConfig) []string {
	if len(cfg.GroupBy) == 0 && cfg.Agg == "" {
		return nil
	}
	var keys []string
	if cfg.X != "" {
		keys = append(keys, cfg.X)
	}
	for _, g := range cfg.GroupBy {
		if g != cfg.X {
			keys = append(keys, g)
		}
	}
	return keys
}

func aggKind(cfg *spec.ChartConfig) spec.AggKind {
	if cfg.Agg == "" {
		return spec.AggSum
	}
	return cfg.Agg
}

// applyFilter keeps rows where the include sets, exclude sets, and the
// free-form expression all pass. The three condition groups combine
// with AND; row order is preserved.
func applyFilter(tbl *table.Table, f *spec.FilterConfig) (*table.Table, error) {
	schema := tbl.Schema()

	type setMatch struct {
		column string
		values []table.Scalar
	}
	compileSets := func(m map[string]spec.StringList) ([]setMatch, error) {
		// Map iteration order does not matter: all sets must pass.
		sets := make([]setMatch, 0, len(m))
		for col, raws := range m {
			kind, ok := schema.Kind(col)
			if !ok {
				return nil, stageErr(StageFilter, col, table.RequireColumn(schema, col))
			}
			vals := make([]table.Scalar, 0, len(raws))
			for _, raw := range raws {
				if v, ok := table.Coerce(raw, kind); ok {
					vals = append(vals, v)
				} else {
					vals = append(vals, table.StringValue(raw))
				}
			}
			sets = append(sets, setMatch{column: col, values: vals})
		}
		return sets, nil
	}

	include, err := compileSets(f.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileSets(f.Exclude)
	if err != nil {
		return nil, err
	}

	var node expr.Node
	if f.Expression != "" {
		node, err = expr.Parse(f.Expression)
		if err != nil {
			return nil, stageErr(StageFilter, f.Expression, err)
		}
	}

	memberOf := func(cell table.Scalar, set setMatch) bool {
		for _, v := range set.values {
			if cell.Equal(v) {
				return true
			}
			// Typed coercion failed for this entry; fall back to the
			// canonical string rendering so "2024-01-01" still matches
			// a date cell.
			if v.Kind == table.KindString && !cell.IsNull() && cell.String() == v.Str {
				return true
			}
		}
		return false
	}

	keep := make([]int, 0, tbl.NumRows())
	for i := 0; i < tbl.NumRows(); i++ {
		row := tbl.Row(i)
		pass := true
		for _, set := range include {
			cell, _ := row.Value(set.column)
			if !memberOf(cell, set) {
				pass = false
				break
			}
		}
		if pass {
			for _, set := range exclude {
				cell, _ := row.Value(set.column)
				if memberOf(cell, set) {
					pass = false
					break
				}
			}
		}
		if pass && node != nil {
			val, err := expr.Evaluate(node, row)
			if err != nil {
				return nil, stageErr(StageFilter, f.Expression, err)
			}
			ok, err := expr.Truthy(val)
			if err != nil {
				return nil, stageErr(StageFilter, f.Expression, err)
			}
			pass = ok
		}
		if pass {
			keep = append(keep, i)
		}
	}
	return tbl.SelectRows(keep), nil
}

// applyDerive evaluates each derived-column expression in declaration
// order. Later entries see the columns produced by earlier ones, and a
// name collision replaces the existing column.
func applyDerive(tbl *table.Table, derives spec.DeriveList) (*table.Table, error) {
	out := tbl
	for _, d := range derives {
		node, err := expr.Parse(d.Expr)
		if err != nil {
			return nil, stageErr(StageDerive, d.Name, err)
		}
		vals := make([]table.Scalar, out.NumRows())
		for i := 0; i < out.NumRows(); i++ {
			v, err := expr.Evaluate(node, out.Row(i))
			if err != nil {
				return nil, stageErr(StageDerive, d.Name, err)
			}
			vals[i] = v
		}
		kind, err := inferKind(d.Name, vals)
		if err != nil {
			return nil, err
		}
		out, err = out.WithColumn(table.Column{Name: d.Name, Kind: kind, Values: vals})
		if err != nil {
			return nil, stageErr(StageDerive, d.Name, err)
		}
	}
	return out, nil
}

// inferKind determines a derived column's kind from its values. Int and
// Float mix to Float (the int cells are widened in place); any other
// mix is an error. An all-null column stays KindNull.
func inferKind(name string, vals []table.Scalar) (table.Kind, error) {
	kind := table.KindNull
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		switch {
		case kind == table.KindNull:
			kind = v.Kind
		case kind == v.Kind:
		case kind.Numeric() && v.Kind.Numeric():
			kind = table.KindFloat
		default:
			return table.KindNull, stageErr(StageDerive, name,
				fmt.Errorf("mixed result kinds %s and %s", kind, v.Kind))
		}
	}
	if kind == table.KindFloat {
		for i, v := range vals {
			if v.Kind == table.KindInt {
				vals[i] = table.FloatValue(float64(v.Int))
			}
		}
	}
	return kind, nil
}

// applyAggregate partitions rows by the distinct tuple of key-column
// values and reduces every remaining numeric column with the given
// aggregation. Groups keep first-appearance order; non-numeric
// non-key columns are dropped.
func applyAggregate(tbl *table.Table, keys []string, agg spec.AggKind) (*table.Table, error) {
	schema := tbl.Schema()
	for _, k := range keys {
		if !schema.Has(k) {
			return nil, stageErr(StageAggregate, k, table.RequireColumn(schema, k))
		}
	}

	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}

	// Rows with equal key tuples share a group. The string key tags
	// every component with its kind so 1 (int) and "1" never collide.
	groupIdx := make(map[string]int)
	var groups [][]int
	var firstRow []int
	for i := 0; i < tbl.NumRows(); i++ {
		var sb strings.Builder
		for _, k := range keys {
			cell, _ := tbl.Value(i, k)
			fmt.Fprintf(&sb, "%d:%s\x00", cell.Kind, cell.String())
		}
		gk := sb.String()
		gi, ok := groupIdx[gk]
		if !ok {
			gi = len(groups)
			groupIdx[gk] = gi
			groups = append(groups, nil)
			firstRow = append(firstRow, i)
		}
		groups[gi] = append(groups[gi], i)
	}

	var cols []table.Column
	for _, src := range tbl.Columns() {
		switch {
		case keySet[src.Name]:
			vals := make([]table.Scalar, len(groups))
			for gi, ri := range firstRow {
				vals[gi] = src.Values[ri]
			}
			cols = append(cols, table.Column{Name: src.Name, Kind: src.Kind, Values: vals})
		case src.Kind.Numeric():
			vals := make([]table.Scalar, len(groups))
			kind := src.Kind
			for gi, rows := range groups {
				v, err := reduce(agg, src, rows)
				if err != nil {
					return nil, stageErr(StageAggregate, src.Name, err)
				}
				vals[gi] = v
				if v.Kind != table.KindNull && v.Kind != kind {
					kind = v.Kind
				}
			}
			cols = append(cols, table.Column{Name: src.Name, Kind: kind, Values: vals})
		}
	}
	out, err := table.New(cols...)
	if err != nil {
		return nil, stageErr(StageAggregate, "", err)
	}
	return out, nil
}

// reduce aggregates one column over one group's row indices. Null
// cells are skipped; a group with only nulls reduces to Null (count
// reduces to 0).
func reduce(agg spec.AggKind, col table.Column, rows []int) (table.Scalar, error) {
	var picked []table.Scalar
	for _, ri := range rows {
		if v := col.Values[ri]; !v.IsNull() {
			picked = append(picked, v)
		}
	}
	if agg == spec.AggCount {
		return table.IntValue(int64(len(picked))), nil
	}
	if len(picked) == 0 {
		return table.Null(), nil
	}

	switch agg {
	case spec.AggSum:
		if col.Kind == table.KindInt {
			var sum int64
			for _, v := range picked {
				sum += v.Int
			}
			return table.IntValue(sum), nil
		}
		var sum float64
		for _, v := range picked {
			f, _ := v.AsFloat()
			sum += f
		}
		return table.FloatValue(sum), nil

	case spec.AggMean:
		var sum float64
		for _, v := range picked {
			f, _ := v.AsFloat()
			sum += f
		}
		return table.FloatValue(sum / float64(len(picked))), nil

	case spec.AggMedian:
		fs := make([]float64, len(picked))
		for i, v := range picked {
			fs[i], _ = v.AsFloat()
		}
		sort.Float64s(fs)
		mid := len(fs) / 2
		if len(fs)%2 == 1 {
			return table.FloatValue(fs[mid]), nil
		}
		return table.FloatValue((fs[mid-1] + fs[mid]) / 2), nil

	case spec.AggMin, spec.AggMax:
		best := picked[0]
		for _, v := range picked[1:] {
			cmp, err := v.Compare(best)
			if err != nil {
				return table.Null(), err
			}
			if (agg == spec.AggMin && cmp < 0) || (agg == spec.AggMax && cmp > 0) {
				best = v
			}
		}
		return best, nil
	}
	return table.Null(), fmt.Errorf("unsupported aggregation %q", agg)
}

// applySort performs a stable multi-key sort. Each later directive
// breaks ties left by earlier ones; Null orders before every non-null
// value regardless of direction.
func applySort(tbl *table.Table, directives []spec.SortConfig) (*table.Table, error) {
	schema := tbl.Schema()
	type key struct {
		values []table.Scalar
		asc    bool
	}
	keys := make([]key, len(directives))
	for i, d := range directives {
		col, ok := tbl.Column(d.Column)
		if !ok {
			return nil, stageErr(StageSort, d.Column, table.RequireColumn(schema, d.Column))
		}
		keys[i] = key{values: col.Values, asc: d.Asc()}
	}

	idx := make([]int, tbl.NumRows())
	for i := range idx {
		idx[i] = i
	}
	var sortErr error
	sort.SliceStable(idx, func(a, b int) bool {
		for _, k := range keys {
			va, vb := k.values[idx[a]], k.values[idx[b]]
			if va.IsNull() || vb.IsNull() {
				if va.IsNull() && vb.IsNull() {
					continue
				}
				return va.IsNull()
			}
			cmp, err := va.Compare(vb)
			if err != nil {
				if sortErr == nil {
					sortErr = err
				}
				return false
			}
			if cmp == 0 {
				continue
			}
			if k.asc {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	if sortErr != nil {
		return nil, stageErr(StageSort, "", sortErr)
	}
	return tbl.SelectRows(idx), nil
}

// applyLimit truncates to the first n rows. A non-positive limit is a
// configuration error rather than an empty or unbounded result.
func applyLimit(tbl *table.Table, n int) (*table.Table, error) {
	if n <= 0 {
		return nil, stageErr(StageLimit, "", &spec.ConfigError{
			Message: fmt.Sprintf("limit must be positive, got %d", n),
		})
	}
	return tbl.Head(n), nil
}
