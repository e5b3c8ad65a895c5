package spec

import (
	"fmt"
	"strings"

	"chartforge/internal/expr"
	"chartforge/internal/table"
)

// ValidationError represents a single validation problem, tagged with
// the path of the offending field (e.g. "charts[2].steps").
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Canvas dimension and scale bounds.
const (
	minDimension = 100
	maxDimension = 10000
	maxScale     = 10.0
	minBins      = 2
	maxBins      = 100
)

var validChartKinds = map[ChartKind]bool{
	ChartLine: true, ChartArea: true, ChartBar: true, ChartBarStacked: true,
	ChartHeatmap: true, ChartScatter: true, ChartFunnel: true, ChartRetention: true,
}

var validAggKinds = map[AggKind]bool{
	AggSum: true, AggCount: true, AggMean: true,
	AggMedian: true, AggMin: true, AggMax: true,
}

var validThemes = map[Theme]bool{"light": true, "dark": true}

var validFormats = map[OutputFormat]bool{"png": true, "svg": true, "pdf": true}

var validColorMaps = map[ColorMap]bool{
	"viridis": true, "plasma": true, "blues": true, "reds": true, "greens": true,
}

var validLegendPositions = map[LegendPosition]bool{
	"top": true, "bottom": true, "left": true, "right": true,
}

var validValueLabelPositions = map[ValueLabelPosition]bool{"left": true, "right": true}

// Validate checks the document for structural correctness: chart-kind
// required fields, numeric bounds, enum membership, and expression
// syntax. It returns all violations rather than stopping at the first.
// Column existence is checked separately by ValidateColumns once the
// source schema is known.
func Validate(doc *Document) []ValidationError {
	var errs []ValidationError
	if len(doc.Charts) == 0 {
		errs = append(errs, ValidationError{Path: "charts", Message: "specification must contain at least one chart"})
	}
	for i := range doc.Charts {
		errs = append(errs, ValidateChart(&doc.Charts[i], fmt.Sprintf("charts[%d]", i))...)
	}
	return errs
}

// ValidateChart checks one chart configuration, tagging every error
// with a field path under the given prefix.
func ValidateChart(c *ChartConfig, path string) []ValidationError {
	var errs []ValidationError
	fail := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path + "." + field, Message: fmt.Sprintf(format, args...)})
	}

	if !validChartKinds[c.Type] {
		fail("type", "unknown chart type %q", string(c.Type))
	}

	// Chart-kind required fields.
	switch c.Type {
	case ChartHeatmap:
		if c.Z == "" {
			fail("z", "heatmap charts require a 'z' field for color intensity values")
		}
	case ChartFunnel:
		if len(c.Steps) == 0 {
			fail("steps", "funnel charts require a 'steps' field with step names")
		}
		if c.Values == "" {
			fail("values", "funnel charts require a 'values' field for step values")
		}
		errs = append(errs, validateStepOrder(c, path)...)
	case ChartRetention:
		if c.CohortDate == "" {
			fail("cohort_date", "retention charts require a 'cohort_date' field")
		}
		if c.PeriodNumber == "" {
			fail("period_number", "retention charts require a 'period_number' field")
		}
		if c.Users == "" {
			fail("users", "retention charts require a 'users' field")
		}
	default:
		if c.X == "" {
			fail("x", "%s charts require an 'x' field", string(c.Type))
		}
		if c.Y == "" {
			fail("y", "%s charts require a 'y' field", string(c.Type))
		}
	}

	// Numeric bounds.
	if c.Width != nil && (*c.Width < minDimension || *c.Width > maxDimension) {
		fail("width", "chart width must be between %d and %d pixels, got %d", minDimension, maxDimension, *c.Width)
	}
	if c.Height != nil && (*c.Height < minDimension || *c.Height > maxDimension) {
		fail("height", "chart height must be between %d and %d pixels, got %d", minDimension, maxDimension, *c.Height)
	}
	if c.Scale != nil && (*c.Scale <= 0 || *c.Scale > maxScale) {
		fail("scale", "chart scale must be greater than 0 and at most %v, got %v", maxScale, *c.Scale)
	}
	if c.Bins != nil && (*c.Bins < minBins || *c.Bins > maxBins) {
		fail("bins", "heatmap bins must be between %d and %d, got %d", minBins, maxBins, *c.Bins)
	}
	if c.Limit != nil && *c.Limit <= 0 {
		fail("limit", "limit must be a positive row count, got %d", *c.Limit)
	}

	// Enums.
	if c.Agg != "" && !validAggKinds[c.Agg] {
		fail("agg", "unknown aggregation %q", string(c.Agg))
	}
	if c.Theme != "" && !validThemes[c.Theme] {
		fail("theme", "unknown theme %q", string(c.Theme))
	}
	if c.Format != "" && !validFormats[c.Format] {
		fail("format", "unknown output format %q", string(c.Format))
	}
	if c.ColorMap != "" && !validColorMaps[c.ColorMap] {
		fail("colormap", "unknown colormap %q", string(c.ColorMap))
	}
	if c.LegendPosition != "" && !validLegendPositions[c.LegendPosition] {
		fail("legend_position", "unknown legend position %q", string(c.LegendPosition))
	}
	if c.ValueLabels != "" && !validValueLabelPositions[c.ValueLabels] {
		fail("value_labels", "unknown value label position %q", string(c.ValueLabels))
	}

	// Filter.
	if c.Filter != nil {
		errs = append(errs, validateFilter(c.Filter, path+".filter")...)
	}

	// Derive: names non-empty, expressions parse.
	for i, d := range c.Derive {
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("%s.derive[%d]", path, i),
				Message: "derived column name cannot be empty",
			})
		}
		if _, err := expr.Parse(d.Expr); err != nil {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("%s.derive[%d]", path, i),
				Message: err.Error(),
			})
		}
	}

	// Sort.
	for i, s := range c.Sort {
		if strings.TrimSpace(s.Column) == "" {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("%s.sort[%d].column", path, i),
				Message: "sort column cannot be empty",
			})
		}
	}

	return errs
}

func validateStepOrder(c *ChartConfig, path string) []ValidationError {
	if len(c.StepOrder) == 0 {
		return nil
	}
	var errs []ValidationError
	if len(c.StepOrder) != len(c.Steps) {
		errs = append(errs, ValidationError{
			Path:    path + ".step_order",
			Message: fmt.Sprintf("step order length (%d) must match number of steps (%d)", len(c.StepOrder), len(c.Steps)),
		})
		return errs
	}
	seen := make(map[int]bool, len(c.StepOrder))
	for _, idx := range c.StepOrder {
		if idx < 0 || idx >= len(c.Steps) {
			errs = append(errs, ValidationError{
				Path:    path + ".step_order",
				Message: fmt.Sprintf("invalid step order index: %d (max: %d)", idx, len(c.Steps)-1),
			})
			continue
		}
		if seen[idx] {
			errs = append(errs, ValidationError{
				Path:    path + ".step_order",
				Message: fmt.Sprintf("duplicate step order index: %d", idx),
			})
		}
		seen[idx] = true
	}
	return errs
}

func validateFilter(f *FilterConfig, path string) []ValidationError {
	var errs []ValidationError
	if len(f.Include) == 0 && len(f.Exclude) == 0 && strings.TrimSpace(f.Expression) == "" {
		errs = append(errs, ValidationError{
			Path:    path,
			Message: "filter must have at least one condition (include, exclude, or expression)",
		})
		return errs
	}
	errs = append(errs, validateFilterMap(f.Include, path+".include")...)
	errs = append(errs, validateFilterMap(f.Exclude, path+".exclude")...)
	if f.Expression != "" {
		if _, err := expr.Parse(f.Expression); err != nil {
			errs = append(errs, ValidationError{Path: path + ".expression", Message: err.Error()})
		}
	}
	return errs
}

func validateFilterMap(m map[string]StringList, path string) []ValidationError {
	var errs []ValidationError
	for column, values := range m {
		if strings.TrimSpace(column) == "" {
			errs = append(errs, ValidationError{Path: path, Message: "filter column name cannot be empty"})
		}
		if len(values) == 0 {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("%s[%s]", path, column),
				Message: "filter values list cannot be empty",
			})
		}
		for _, v := range values {
			if v == "" {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("%s[%s]", path, column),
					Message: "filter value cannot be empty",
				})
			}
		}
	}
	return errs
}

// ValidateColumns checks every column referenced by the chart against
// the resolved source schema: x/y/z and the chart-kind columns, filter
// columns, derive argument columns, group and sort columns. Derived
// column names count as available for stages that run after Derive;
// filter references only the base schema since Filter runs first.
// Derive entries follow a producer-before-consumer rule over their
// declared order.
func ValidateColumns(c *ChartConfig, schema table.Schema, path string) []ValidationError {
	var errs []ValidationError
	missing := func(field string, err *table.ColumnNotFoundError) {
		errs = append(errs, ValidationError{Path: path + "." + field, Message: err.Error()})
	}

	// Filter runs against the base schema only.
	if c.Filter != nil {
		for column := range c.Filter.Include {
			if err := table.RequireColumn(schema, column); err != nil {
				missing("filter.include", err)
			}
		}
		for column := range c.Filter.Exclude {
			if err := table.RequireColumn(schema, column); err != nil {
				missing("filter.exclude", err)
			}
		}
		if c.Filter.Expression != "" {
			if node, perr := expr.Parse(c.Filter.Expression); perr == nil {
				for _, name := range expr.Columns(node) {
					if err := table.RequireColumn(schema, name); err != nil {
						missing("filter.expression", err)
					}
				}
			}
		}
	}

	// Derive arguments see the base schema plus earlier derived columns.
	extended := make(table.Schema, len(schema), len(schema)+len(c.Derive))
	copy(extended, schema)
	for _, d := range c.Derive {
		node, perr := expr.Parse(d.Expr)
		if perr == nil {
			for _, name := range expr.Columns(node) {
				if err := table.RequireColumn(extended, name); err != nil {
					missing(fmt.Sprintf("derive[%s]", d.Name), err)
				}
			}
		}
		if !extended.Has(d.Name) {
			extended = append(extended, table.Field{Name: d.Name})
		}
	}

	// Everything that runs (or renders) after Derive sees derived names.
	for field, name := range map[string]string{
		"x": c.X, "y": c.Y, "z": c.Z,
		"values":        c.Values,
		"cohort_date":   c.CohortDate,
		"period_number": c.PeriodNumber,
		"users":         c.Users,
	} {
		if name == "" {
			continue
		}
		if err := table.RequireColumn(extended, name); err != nil {
			missing(field, err)
		}
	}
	for _, name := range c.GroupBy {
		if err := table.RequireColumn(extended, name); err != nil {
			missing("group_by", err)
		}
	}
	for i, s := range c.Sort {
		if s.Column == "" {
			continue
		}
		if err := table.RequireColumn(extended, s.Column); err != nil {
			missing(fmt.Sprintf("sort[%d].column", i), err)
		}
	}
	return errs
}
