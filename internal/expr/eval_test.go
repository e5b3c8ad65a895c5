package expr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartforge/internal/table"
)

// evalRow parses src and evaluates it against a single-row table built
// from the given columns.
func evalRow(t *testing.T, src string, cols ...table.Column) (table.Scalar, error) {
	t.Helper()
	n, err := Parse(src)
	require.NoError(t, err)
	tbl, err := table.New(cols...)
	require.NoError(t, err)
	return Evaluate(n, tbl.Row(0))
}

func intCol(name string, v int64) table.Column {
	return table.Column{Name: name, Kind: table.KindInt, Values: []table.Scalar{table.IntValue(v)}}
}

func nullCol(name string, kind table.Kind) table.Column {
	return table.Column{Name: name, Kind: kind, Values: []table.Scalar{table.Null()}}
}

func strCol(name, v string) table.Column {
	return table.Column{Name: name, Kind: table.KindString, Values: []table.Scalar{table.StringValue(v)}}
}

func dateCol(name string, y int, m time.Month, d int) table.Column {
	return table.Column{Name: name, Kind: table.KindDate, Values: []table.Scalar{
		table.DateValue(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)),
	}}
}

func TestEvaluate_NullComparisonIsFalse(t *testing.T) {
	v, err := evalRow(t, "v > 5", nullCol("v", table.KindInt))
	require.NoError(t, err)
	require.Equal(t, table.KindBool, v.Kind)
	assert.False(t, v.Bool)
}

func TestEvaluate_IsNullObservesNulls(t *testing.T) {
	v, err := evalRow(t, "v IS NULL", nullCol("v", table.KindInt))
	require.NoError(t, err)
	assert.True(t, v.Bool)

	v, err = evalRow(t, "v IS NOT NULL", nullCol("v", table.KindInt))
	require.NoError(t, err)
	assert.False(t, v.Bool)

	v, err = evalRow(t, "NULL IS NULL", intCol("v", 1))
	require.NoError(t, err)
	assert.True(t, v.Bool)
}

func TestEvaluate_SqrtNegativeIsDomainError(t *testing.T) {
	_, err := evalRow(t, "sqrt(v)", intCol("v", -1))
	var dErr *DomainError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "sqrt", dErr.Func)
}

func TestEvaluate_Arithmetic(t *testing.T) {
	tests := []struct {
		src  string
		kind table.Kind
		want float64
	}{
		{"v + 2", table.KindInt, 12},
		{"v - 2", table.KindInt, 8},
		{"v * 3", table.KindInt, 30},
		{"v / 4", table.KindFloat, 2.5},
		{"v / 2", table.KindFloat, 5},
		{"-v + 1", table.KindInt, -9},
		{"v + 0.5", table.KindFloat, 10.5},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v, err := evalRow(t, tt.src, intCol("v", 10))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind)
			f, ok := v.AsFloat()
			require.True(t, ok)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	_, err := evalRow(t, "v / 0", intCol("v", 1))
	var dErr *DomainError
	require.ErrorAs(t, err, &dErr)
}

func TestEvaluate_ArithmeticWithNullIsNull(t *testing.T) {
	v, err := evalRow(t, "v + 1", nullCol("v", table.KindInt))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestEvaluate_LogicalShortCircuit(t *testing.T) {
	// The right side would divide by zero if evaluated.
	v, err := evalRow(t, "v = 1 OR v / 0 > 1", intCol("v", 1))
	require.NoError(t, err)
	assert.True(t, v.Bool)

	v, err = evalRow(t, "v = 2 AND v / 0 > 1", intCol("v", 1))
	require.NoError(t, err)
	assert.False(t, v.Bool)
}

func TestEvaluate_In(t *testing.T) {
	v, err := evalRow(t, "channel IN ('organic', 'direct')", strCol("channel", "organic"))
	require.NoError(t, err)
	assert.True(t, v.Bool)

	v, err = evalRow(t, "channel NOT IN ('organic', 'direct')", strCol("channel", "paid"))
	require.NoError(t, err)
	assert.True(t, v.Bool)

	// A null value is in no set.
	v, err = evalRow(t, "v IN (1, 2, 3)", nullCol("v", table.KindInt))
	require.NoError(t, err)
	assert.False(t, v.Bool)
}

func TestEvaluate_BetweenInclusive(t *testing.T) {
	for _, tc := range []struct {
		val  int64
		want bool
	}{{1, true}, {5, true}, {10, true}, {0, false}, {11, false}} {
		v, err := evalRow(t, "v BETWEEN 1 AND 10", intCol("v", tc.val))
		require.NoError(t, err)
		assert.Equal(t, tc.want, v.Bool, "v = %d", tc.val)
	}
}

func TestEvaluate_Like(t *testing.T) {
	tests := []struct {
		src  string
		cell string
		want bool
	}{
		{"channel LIKE 'org%'", "organic", true},
		{"channel LIKE 'org%'", "paid", false},
		{"channel LIKE '%an%'", "organic", true},
		{"channel LIKE 'o_ganic'", "organic", true},
		{"channel LIKE 'o_ganic'", "ooganic", true},
		{"channel LIKE 'o_ganic'", "oganic", false},
		{"channel NOT LIKE '%paid%'", "organic", true},
		{"channel LIKE 'ORGANIC'", "organic", false},
	}
	for _, tt := range tests {
		v, err := evalRow(t, tt.src, strCol("channel", tt.cell))
		require.NoError(t, err)
		assert.Equal(t, tt.want, v.Bool, "%s on %q", tt.src, tt.cell)
	}
}

func TestEvaluate_DateComparedToStringLiteral(t *testing.T) {
	v, err := evalRow(t, "d = '2024-01-01'", dateCol("d", 2024, time.January, 1))
	require.NoError(t, err)
	assert.True(t, v.Bool)

	v, err = evalRow(t, "d < '2024-02-01'", dateCol("d", 2024, time.January, 1))
	require.NoError(t, err)
	assert.True(t, v.Bool)
}

func TestEvaluate_UnknownColumn(t *testing.T) {
	_, err := evalRow(t, "missing = 1", intCol("v", 1))
	var cnfErr *table.ColumnNotFoundError
	require.ErrorAs(t, err, &cnfErr)
	assert.Equal(t, "missing", cnfErr.Requested)
}

func TestEvaluate_TypeMismatch(t *testing.T) {
	_, err := evalRow(t, "channel > 5", strCol("channel", "organic"))
	var tmErr *table.TypeMismatchError
	assert.ErrorAs(t, err, &tmErr)
}

func TestEvaluate_DateFunctions(t *testing.T) {
	// 2024-01-03 is a Wednesday; its week starts Monday 2024-01-01.
	tests := []struct {
		src  string
		want string
	}{
		{"to_week(d)", "2024-01-01"},
		{"to_month(d)", "2024-01-01"},
		{"to_quarter(d)", "2024-01-01"},
		{"to_year(d)", "2024-01-01"},
		{"weekday_name(d)", "Wednesday"},
	}
	for _, tt := range tests {
		v, err := evalRow(t, tt.src, dateCol("d", 2024, time.January, 3))
		require.NoError(t, err)
		assert.Equal(t, tt.want, v.String(), tt.src)
	}

	v, err := evalRow(t, "weekday(d)", dateCol("d", 2024, time.January, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Int, "ISO weekday, Monday=0")
}

func TestEvaluate_StringFunctions(t *testing.T) {
	v, err := evalRow(t, "upper(channel)", strCol("channel", "organic"))
	require.NoError(t, err)
	assert.Equal(t, "ORGANIC", v.Str)

	v, err = evalRow(t, "concat(channel, channel, '-')", strCol("channel", "a"))
	require.NoError(t, err)
	assert.Equal(t, "a-a", v.Str)

	v, err = evalRow(t, "source_medium(channel, channel)", strCol("channel", "google"))
	require.NoError(t, err)
	assert.Equal(t, "google / google", v.Str)
}

func TestEvaluate_Round(t *testing.T) {
	tbl := table.Column{Name: "v", Kind: table.KindFloat, Values: []table.Scalar{table.FloatValue(2.346)}}

	v, err := evalRow(t, "round(v)", tbl)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.Float)

	v, err = evalRow(t, "round(v, 2)", tbl)
	require.NoError(t, err)
	assert.InDelta(t, 2.35, v.Float, 1e-9)

	neg := table.Column{Name: "v", Kind: table.KindFloat, Values: []table.Scalar{table.FloatValue(-2.5)}}
	v, err = evalRow(t, "round(v)", neg)
	require.NoError(t, err)
	assert.Equal(t, -3.0, v.Float, "half away from zero")
}

func TestTruthy(t *testing.T) {
	ok, err := Truthy(table.BoolValue(true))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Truthy(table.Null())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Truthy(table.IntValue(1))
	assert.Error(t, err)
}
