package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chartforge/internal/spec"
)

// kindDef describes one per-kind subcommand. The shared builder wires
// common flags; extra installs kind-specific ones.
type kindDef struct {
	kind  spec.ChartKind
	short string
	extra func(cmd *cobra.Command, f *chartFlags)
}

var chartKinds = []kindDef{
	{kind: spec.ChartLine, short: "Render a line chart from a CSV file"},
	{kind: spec.ChartArea, short: "Render an area chart from a CSV file"},
	{kind: spec.ChartBar, short: "Render a bar chart from a CSV file"},
	{kind: spec.ChartBarStacked, short: "Render a stacked bar chart from a CSV file"},
	{kind: spec.ChartScatter, short: "Render a scatter plot from a CSV file"},
	{kind: spec.ChartHeatmap, short: "Render a heatmap from a CSV file", extra: func(cmd *cobra.Command, f *chartFlags) {
		cmd.Flags().StringVar(&f.z, "z", "", "Intensity column")
		cmd.Flags().IntVar(&f.bins, "bins", 0, "Number of value bins")
		cmd.Flags().StringVar(&f.colormap, "colormap", "", "Color map name")
	}},
	{kind: spec.ChartFunnel, short: "Render a funnel chart from a CSV file", extra: func(cmd *cobra.Command, f *chartFlags) {
		cmd.Flags().StringSliceVar(&f.steps, "steps", nil, "Funnel step labels, in order")
		cmd.Flags().StringVar(&f.values, "values", "", "Column holding per-step values")
		cmd.Flags().IntSliceVar(&f.stepOrder, "step-order", nil, "Permutation of step indices to display")
	}},
	{kind: spec.ChartRetention, short: "Render a retention matrix from a CSV file", extra: func(cmd *cobra.Command, f *chartFlags) {
		cmd.Flags().StringVar(&f.cohortDate, "cohort-date", "", "Cohort date column")
		cmd.Flags().StringVar(&f.periodNumber, "period-number", "", "Period number column")
		cmd.Flags().StringVar(&f.users, "users", "", "User count column")
	}},
}

type chartFlags struct {
	title   string
	x, y, z string
	groupBy []string
	agg     string

	where   string
	include []string
	exclude []string
	derive  []string
	sortBy  []string
	limit   int

	width, height int
	theme         string
	format        string
	scale         float64
	bins          int
	colormap      string

	steps     []string
	values    string
	stepOrder []int

	cohortDate   string
	periodNumber string
	users        string
}

func newChartCmd(opts *globalOpts, def kindDef) *cobra.Command {
	f := &chartFlags{}

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <data.csv>", def.kind),
		Short: def.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chart, err := f.build(def.kind)
			if err != nil {
				return err
			}
			doc := &spec.Document{
				Data:   &spec.DataConfig{Default: args[0]},
				Charts: []spec.ChartConfig{*chart},
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			outcomes, err := runBatch(cmd, cfg, logger, doc, opts.data)
			if err != nil {
				return err
			}
			reportOutcomes(outcomes)
			if !outcomes.AllOK() {
				return fmt.Errorf("chart failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.title, "title", "", "Chart title")
	cmd.Flags().StringVar(&f.x, "x", "", "X axis column")
	cmd.Flags().StringVar(&f.y, "y", "", "Y axis column")
	cmd.Flags().StringSliceVar(&f.groupBy, "group-by", nil, "Series grouping columns")
	cmd.Flags().StringVar(&f.agg, "agg", "", "Aggregation (sum, count, mean, median, min, max)")
	cmd.Flags().StringVar(&f.where, "where", "", "Filter expression")
	cmd.Flags().StringArrayVar(&f.include, "include", nil, "Include filter, col=v1,v2 (repeatable)")
	cmd.Flags().StringArrayVar(&f.exclude, "exclude", nil, "Exclude filter, col=v1,v2 (repeatable)")
	cmd.Flags().StringArrayVar(&f.derive, "derive", nil, "Derived column, name=expression (repeatable, ordered)")
	cmd.Flags().StringArrayVar(&f.sortBy, "sort", nil, "Sort key, col or col:desc (repeatable, ordered)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Keep only the first N rows")
	cmd.Flags().IntVar(&f.width, "width", 0, "Output width in pixels")
	cmd.Flags().IntVar(&f.height, "height", 0, "Output height in pixels")
	cmd.Flags().StringVar(&f.theme, "theme", "", "Color theme")
	cmd.Flags().StringVar(&f.format, "format", "", "Output format")
	cmd.Flags().Float64Var(&f.scale, "scale", 0, "Output scale factor")
	if def.extra != nil {
		def.extra(cmd, f)
	}
	return cmd
}

// build assembles a ChartConfig from flag values. Zero values stay
// absent so validation defaults apply.
func (f *chartFlags) build(kind spec.ChartKind) (*spec.ChartConfig, error) {
	c := &spec.ChartConfig{
		Type:         kind,
		Title:        f.title,
		X:            f.x,
		Y:            f.y,
		Z:            f.z,
		GroupBy:      spec.StringList(f.groupBy),
		Agg:          spec.AggKind(f.agg),
		Theme:        spec.Theme(f.theme),
		Format:       spec.OutputFormat(f.format),
		ColorMap:     spec.ColorMap(f.colormap),
		Steps:        f.steps,
		StepOrder:    f.stepOrder,
		Values:       f.values,
		CohortDate:   f.cohortDate,
		PeriodNumber: f.periodNumber,
		Users:        f.users,
	}
	if f.limit > 0 {
		c.Limit = &f.limit
	}
	if f.width > 0 {
		c.Width = &f.width
	}
	if f.height > 0 {
		c.Height = &f.height
	}
	if f.scale > 0 {
		c.Scale = &f.scale
	}
	if f.bins > 0 {
		c.Bins = &f.bins
	}

	if f.where != "" || len(f.include) > 0 || len(f.exclude) > 0 {
		fc := &spec.FilterConfig{Expression: f.where}
		var err error
		if fc.Include, err = parseFilterSets(f.include); err != nil {
			return nil, fmt.Errorf("--include: %w", err)
		}
		if fc.Exclude, err = parseFilterSets(f.exclude); err != nil {
			return nil, fmt.Errorf("--exclude: %w", err)
		}
		c.Filter = fc
	}

	for _, d := range f.derive {
		name, expr, ok := strings.Cut(d, "=")
		if !ok {
			return nil, fmt.Errorf("--derive %q: expected name=expression", d)
		}
		c.Derive = append(c.Derive, spec.DeriveEntry{
			Name: strings.TrimSpace(name),
			Expr: strings.TrimSpace(expr),
		})
	}

	for _, s := range f.sortBy {
		col, dir, hasDir := strings.Cut(s, ":")
		sc := spec.SortConfig{Column: strings.TrimSpace(col)}
		if hasDir {
			switch strings.ToLower(strings.TrimSpace(dir)) {
			case "asc":
			case "desc":
				desc := false
				sc.Ascending = &desc
			default:
				return nil, fmt.Errorf("--sort %q: direction must be asc or desc", s)
			}
		}
		c.Sort = append(c.Sort, sc)
	}

	return c, nil
}

func parseFilterSets(entries []string) (map[string]spec.StringList, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]spec.StringList, len(entries))
	for _, e := range entries {
		col, vals, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("%q: expected col=value[,value...]", e)
		}
		col = strings.TrimSpace(col)
		var list spec.StringList
		for _, v := range strings.Split(vals, ",") {
			list = append(list, strings.TrimSpace(v))
		}
		out[col] = append(out[col], list...)
	}
	return out, nil
}
