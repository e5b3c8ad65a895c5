package spec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartforge/internal/table"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func validLineChart() ChartConfig {
	return ChartConfig{Type: ChartLine, X: "date", Y: "sessions"}
}

func pathsOf(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Path
	}
	return out
}

func TestValidate_EmptyDocument(t *testing.T) {
	errs := Validate(&Document{})
	require.Len(t, errs, 1)
	assert.Equal(t, "charts", errs[0].Path)
}

func TestValidateChart_ValidLine(t *testing.T) {
	c := validLineChart()
	assert.Empty(t, ValidateChart(&c, "charts[0]"))
}

func TestValidateChart_KindRequiredFields(t *testing.T) {
	tests := []struct {
		name      string
		chart     ChartConfig
		wantPaths []string
	}{
		{
			name:      "line missing axes",
			chart:     ChartConfig{Type: ChartLine},
			wantPaths: []string{"c.x", "c.y"},
		},
		{
			name:      "heatmap missing z",
			chart:     ChartConfig{Type: ChartHeatmap, X: "a", Y: "b"},
			wantPaths: []string{"c.z"},
		},
		{
			name:      "funnel missing steps and values",
			chart:     ChartConfig{Type: ChartFunnel},
			wantPaths: []string{"c.steps", "c.values"},
		},
		{
			name:      "retention missing everything",
			chart:     ChartConfig{Type: ChartRetention},
			wantPaths: []string{"c.cohort_date", "c.period_number", "c.users"},
		},
		{
			name:      "unknown kind",
			chart:     ChartConfig{Type: "pie", X: "a", Y: "b"},
			wantPaths: []string{"c.type"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateChart(&tt.chart, "c")
			assert.ElementsMatch(t, tt.wantPaths, pathsOf(errs))
		})
	}
}

func TestValidateChart_NumericBounds(t *testing.T) {
	c := validLineChart()
	c.Width = intPtr(50)
	c.Height = intPtr(20000)
	c.Scale = floatPtr(11)
	c.Limit = intPtr(0)

	errs := ValidateChart(&c, "c")
	assert.ElementsMatch(t, []string{"c.width", "c.height", "c.scale", "c.limit"}, pathsOf(errs))
}

func TestValidateChart_BoundsEdges(t *testing.T) {
	c := validLineChart()
	c.Width = intPtr(100)
	c.Height = intPtr(10000)
	c.Scale = floatPtr(10)
	assert.Empty(t, ValidateChart(&c, "c"))
}

func TestValidateChart_BinsBounds(t *testing.T) {
	c := ChartConfig{Type: ChartHeatmap, X: "a", Y: "b", Z: "c"}
	c.Bins = intPtr(1)
	errs := ValidateChart(&c, "c")
	require.Len(t, errs, 1)
	assert.Equal(t, "c.bins", errs[0].Path)

	c.Bins = intPtr(100)
	assert.Empty(t, ValidateChart(&c, "c"))
}

func TestValidateChart_Enums(t *testing.T) {
	c := validLineChart()
	c.Agg = "average"
	c.Theme = "solarized"
	c.Format = "bmp"

	errs := ValidateChart(&c, "c")
	assert.ElementsMatch(t, []string{"c.agg", "c.theme", "c.format"}, pathsOf(errs))
}

func TestValidateChart_StepOrder(t *testing.T) {
	base := ChartConfig{Type: ChartFunnel, Steps: []string{"visit", "signup", "purchase"}, Values: "count"}

	c := base
	c.StepOrder = []int{2, 0, 1}
	assert.Empty(t, ValidateChart(&c, "c"))

	c = base
	c.StepOrder = []int{0, 1}
	errs := ValidateChart(&c, "c")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "must match")

	c = base
	c.StepOrder = []int{0, 1, 3}
	errs = ValidateChart(&c, "c")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "invalid step order index")

	c = base
	c.StepOrder = []int{0, 1, 1}
	errs = ValidateChart(&c, "c")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "duplicate")
}

func TestValidateChart_Filter(t *testing.T) {
	c := validLineChart()
	c.Filter = &FilterConfig{}
	errs := ValidateChart(&c, "c")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "at least one condition")

	c.Filter = &FilterConfig{Expression: "sessions > "}
	errs = ValidateChart(&c, "c")
	require.Len(t, errs, 1)
	assert.Equal(t, "c.filter.expression", errs[0].Path)

	c.Filter = &FilterConfig{Include: map[string]StringList{"channel": {}}}
	errs = ValidateChart(&c, "c")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "cannot be empty")
}

func TestValidateChart_DeriveExpressionsMustParse(t *testing.T) {
	c := validLineChart()
	c.Derive = DeriveList{
		{Name: "ok", Expr: "sessions * 2"},
		{Name: "bad", Expr: "to_week("},
	}
	errs := ValidateChart(&c, "c")
	require.Len(t, errs, 1)
	assert.Equal(t, "c.derive[1]", errs[0].Path)

	// An unnamed entry with a bad expression reports both errors at the
	// same position.
	c.Derive = DeriveList{{Name: " ", Expr: "to_week("}}
	errs = ValidateChart(&c, "c")
	require.Len(t, errs, 2)
	assert.Equal(t, "c.derive[0]", errs[0].Path)
	assert.Equal(t, "c.derive[0]", errs[1].Path)
}

func TestValidate_CollectsAcrossCharts(t *testing.T) {
	doc := &Document{Charts: []ChartConfig{
		{Type: ChartLine},
		{Type: ChartHeatmap, X: "a", Y: "b"},
	}}
	errs := Validate(doc)
	paths := strings.Join(pathsOf(errs), " ")
	assert.Contains(t, paths, "charts[0].x")
	assert.Contains(t, paths, "charts[1].z")
}

func analyticsSchema() table.Schema {
	return table.Schema{
		{Name: "date", Kind: table.KindDate},
		{Name: "totalUsers", Kind: table.KindInt},
		{Name: "sessions", Kind: table.KindInt},
		{Name: "channel", Kind: table.KindString},
	}
}

func TestValidateColumns_AllPresent(t *testing.T) {
	c := validLineChart()
	c.GroupBy = StringList{"channel"}
	c.Sort = []SortConfig{{Column: "sessions"}}
	assert.Empty(t, ValidateColumns(&c, analyticsSchema(), "c"))
}

func TestValidateColumns_TypoGetsSuggestion(t *testing.T) {
	c := ChartConfig{Type: ChartLine, X: "date", Y: "totalUser"}
	errs := ValidateColumns(&c, analyticsSchema(), "c")
	require.Len(t, errs, 1)
	assert.Equal(t, "c.y", errs[0].Path)
	assert.Contains(t, errs[0].Message, "totalUsers")
}

func TestValidateColumns_DerivedNamesAvailableDownstream(t *testing.T) {
	c := validLineChart()
	c.X = "week_start"
	c.Derive = DeriveList{{Name: "week_start", Expr: "to_week(date)"}}
	c.Sort = []SortConfig{{Column: "week_start"}}
	assert.Empty(t, ValidateColumns(&c, analyticsSchema(), "c"))
}

func TestValidateColumns_DeriveProducerBeforeConsumer(t *testing.T) {
	c := validLineChart()
	c.Derive = DeriveList{
		{Name: "a", Expr: "b + 1"}, // b not defined yet
		{Name: "b", Expr: "sessions * 2"},
	}
	errs := ValidateColumns(&c, analyticsSchema(), "c")
	require.Len(t, errs, 1)
	assert.Equal(t, "c.derive[a]", errs[0].Path)
}

func TestValidateColumns_FilterSeesBaseSchemaOnly(t *testing.T) {
	c := validLineChart()
	c.Derive = DeriveList{{Name: "week_start", Expr: "to_week(date)"}}
	c.Filter = &FilterConfig{Expression: "week_start = '2024-01-01'"}
	errs := ValidateColumns(&c, analyticsSchema(), "c")
	require.Len(t, errs, 1)
	assert.Equal(t, "c.filter.expression", errs[0].Path)
}

func TestValidateColumns_FilterIncludeColumns(t *testing.T) {
	c := validLineChart()
	c.Filter = &FilterConfig{Include: map[string]StringList{"chanel": {"organic"}}}
	errs := ValidateColumns(&c, analyticsSchema(), "c")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "channel")
}
