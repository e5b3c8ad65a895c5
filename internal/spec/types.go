// Package spec defines the declarative chart specification document: the
// typed configuration model, YAML/JSON loading, and validation with
// field-path-tagged error collection.
package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ChartKind enumerates the supported chart types.
type ChartKind string

const (
	ChartLine       ChartKind = "line"
	ChartArea       ChartKind = "area"
	ChartBar        ChartKind = "bar"
	ChartBarStacked ChartKind = "bar-stacked"
	ChartHeatmap    ChartKind = "heatmap"
	ChartScatter    ChartKind = "scatter"
	ChartFunnel     ChartKind = "funnel"
	ChartRetention  ChartKind = "retention"
)

// AggKind enumerates the group-reduction functions.
type AggKind string

const (
	AggSum    AggKind = "sum"
	AggCount  AggKind = "count"
	AggMean   AggKind = "mean"
	AggMedian AggKind = "median"
	AggMin    AggKind = "min"
	AggMax    AggKind = "max"
)

// Rendering-facing enums. The engine validates but never interprets
// them; they pass through to the renderer unchanged.
type (
	Theme              string
	OutputFormat       string
	ColorMap           string
	LegendPosition     string
	ValueLabelPosition string
)

// Document is a batch of chart configurations plus data-source
// resolution info.
type Document struct {
	Data   *DataConfig   `yaml:"data"`
	Charts []ChartConfig `yaml:"charts"`
}

// DataConfig names the document's default data source and any named
// source locations.
type DataConfig struct {
	Default string            `yaml:"default"`
	Sources map[string]string `yaml:"sources"`
}

// ChartConfig is one chart's full declarative configuration. It is
// constructed once from a document, validated, and immutable thereafter.
type ChartConfig struct {
	Type    ChartKind  `yaml:"type"`
	Title   string     `yaml:"title"`
	Data    string     `yaml:"data"` // per-chart source override: named source or path
	X       string     `yaml:"x"`
	Y       string     `yaml:"y"`
	Z       string     `yaml:"z"` // heatmap intensity column
	GroupBy StringList `yaml:"group_by"`
	Agg     AggKind    `yaml:"agg"`

	Filter *FilterConfig `yaml:"filter"`
	Derive DeriveList    `yaml:"derive"`
	Sort   []SortConfig  `yaml:"sort"`
	Limit  *int          `yaml:"limit"`

	// Rendering pass-through fields, uninterpreted by the engine.
	Width          *int               `yaml:"width"`
	Height         *int               `yaml:"height"`
	Theme          Theme              `yaml:"theme"`
	Format         OutputFormat       `yaml:"format"`
	Scale          *float64           `yaml:"scale"`
	Stacked        *bool              `yaml:"stacked"`
	Horizontal     *bool              `yaml:"horizontal"`
	Normalize      *bool              `yaml:"normalize"`
	Bins           *int               `yaml:"bins"`
	ColorMap       ColorMap           `yaml:"colormap"`
	ValueLabels    ValueLabelPosition `yaml:"value_labels"`
	ConversionRate *bool              `yaml:"conversion_rates"`
	Percentage     *bool              `yaml:"percentage"`
	LegendPosition LegendPosition     `yaml:"legend_position"`

	// Funnel fields.
	Steps     []string `yaml:"steps"`
	StepOrder []int    `yaml:"step_order"`
	Values    string   `yaml:"values"`

	// Retention fields.
	CohortDate   string `yaml:"cohort_date"`
	PeriodNumber string `yaml:"period_number"`
	Users        string `yaml:"users"`
}

// FilterConfig restricts rows before any other stage. Include, exclude,
// and the free-form expression combine with logical AND.
type FilterConfig struct {
	Include    map[string]StringList `yaml:"include"`
	Exclude    map[string]StringList `yaml:"exclude"`
	Expression string                `yaml:"expression"`
}

// SortConfig is one key of a stable multi-key sort. Ascending defaults
// to true.
type SortConfig struct {
	Column    string `yaml:"column"`
	Ascending *bool  `yaml:"ascending"`
}

// Asc resolves the ascending flag with its default.
func (s SortConfig) Asc() bool {
	return s.Ascending == nil || *s.Ascending
}

// StringList decodes a YAML scalar or sequence into a list of strings,
// so `channel: organic` and `channel: [organic, direct]` both work.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := node.Decode(&ss); err != nil {
			return err
		}
		*l = StringList(ss)
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or list of strings", node.Line)
	}
}

// DeriveEntry is one derived-column definition: the new column name and
// its expression source text.
type DeriveEntry struct {
	Name string
	Expr string
}

// DeriveList preserves the declaration order of a YAML mapping of
// derived columns. Order matters: later entries may reference earlier
// ones, and a repeated name overwrites (last write wins).
type DeriveList []DeriveEntry

// UnmarshalYAML implements yaml.Unmarshaler, reading mapping pairs in
// document order rather than through an unordered map.
func (d *DeriveList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: derive must be a mapping of column name to expression", node.Line)
	}
	out := make(DeriveList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name, expr string
		if err := node.Content[i].Decode(&name); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&expr); err != nil {
			return err
		}
		out = append(out, DeriveEntry{Name: name, Expr: expr})
	}
	*d = out
	return nil
}
