// Package batch fans a specification document out over a bounded
// worker pool: resolve each chart's data source, run the transform
// pipeline, hand the result to the renderer, and collect one outcome
// per chart. Charts fail independently; one bad chart never stops its
// siblings.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chartforge/internal/config"
	"chartforge/internal/render"
	"chartforge/internal/spec"
	"chartforge/internal/table"
	"chartforge/internal/transform"
)

// Loader resolves a data source location into a Table.
type Loader func(path string) (*table.Table, error)

// ChartOutcome is one chart's result within a batch run. Exactly one
// of OutputID and Err is meaningful.
type ChartOutcome struct {
	Index    int
	Title    string
	Source   string
	OutputID string
	Err      error
}

// OK reports whether the chart rendered successfully.
func (o ChartOutcome) OK() bool { return o.Err == nil }

// ValidationFailure carries a chart's collected validation errors as a
// single outcome error.
type ValidationFailure struct {
	Errors []spec.ValidationError
}

func (e *ValidationFailure) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Orchestrator runs a document's charts against a loader and renderer.
type Orchestrator struct {
	loader   Loader
	renderer render.Renderer
	cfg      *config.Config
	logger   *slog.Logger
}

// New builds an Orchestrator. A nil logger discards log output.
func New(loader Loader, renderer render.Renderer, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{loader: loader, renderer: renderer, cfg: cfg, logger: logger}
}

// Outcomes is the per-chart result list of one batch run, in document
// order.
type Outcomes []ChartOutcome

// AllOK reports whether every chart succeeded. The process exit status
// is non-zero iff this is false.
func (ocs Outcomes) AllOK() bool {
	for _, o := range ocs {
		if !o.OK() {
			return false
		}
	}
	return true
}

// Execute runs every chart in doc through validation, its pipeline,
// and the renderer. dataOverride, when non-empty, replaces the
// document's default source; a per-chart override still wins. The
// returned outcomes are in document order regardless of completion
// order.
func (o *Orchestrator) Execute(ctx context.Context, doc *spec.Document, dataOverride string) (Outcomes, error) {
	runID := uuid.NewString()
	log := o.logger.With("run_id", runID)
	log.Info("batch run starting", "charts", len(doc.Charts), "parallelism", o.cfg.Parallelism)

	outcomes := make(Outcomes, len(doc.Charts))
	for i := range doc.Charts {
		outcomes[i] = ChartOutcome{Index: i, Title: doc.Charts[i].Title}
	}

	// Structural validation first. A chart that fails here never
	// reaches the pool, but its siblings still run.
	if len(doc.Charts) == 0 {
		return nil, &spec.ConfigError{Message: "document has no charts"}
	}
	for i := range doc.Charts {
		path := fmt.Sprintf("charts[%d]", i)
		if errs := spec.ValidateChart(&doc.Charts[i], path); len(errs) > 0 {
			outcomes[i].Err = &ValidationFailure{Errors: errs}
		}
	}

	// Resolve sources, then load each distinct one exactly once before
	// fanning out, so every chart reading a source sees the same
	// immutable snapshot.
	sources := make([]string, len(doc.Charts))
	for i := range doc.Charts {
		if outcomes[i].Err != nil {
			continue
		}
		src, err := resolveSource(doc, &doc.Charts[i], dataOverride)
		if err != nil {
			outcomes[i].Err = err
			continue
		}
		sources[i] = src
		outcomes[i].Source = src
	}

	tables := make(map[string]*table.Table)
	for i, src := range sources {
		if src == "" || outcomes[i].Err != nil {
			continue
		}
		if _, ok := tables[src]; ok {
			continue
		}
		tbl, err := o.loader(src)
		if err != nil {
			// Every chart on this source fails the same way.
			tables[src] = nil
			for j := i; j < len(sources); j++ {
				if sources[j] == src && outcomes[j].Err == nil {
					outcomes[j].Err = fmt.Errorf("load source %s: %w", src, err)
				}
			}
			continue
		}
		tables[src] = tbl
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Parallelism)
	for i := range doc.Charts {
		if outcomes[i].Err != nil {
			continue
		}
		i := i
		g.Go(func() error {
			outcomes[i] = o.runChart(gctx, log, doc, i, tables[sources[i]], sources[i])
			// Chart failures stay in the outcome slot; returning them
			// here would cancel sibling jobs.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	failed := 0
	for _, oc := range outcomes {
		if !oc.OK() {
			failed++
		}
	}
	log.Info("batch run finished", "succeeded", len(outcomes)-failed, "failed", failed)
	return outcomes, nil
}

// runChart takes one chart from validated config to rendered output.
func (o *Orchestrator) runChart(ctx context.Context, log *slog.Logger, doc *spec.Document, idx int, tbl *table.Table, src string) ChartOutcome {
	chart := &doc.Charts[idx]
	out := ChartOutcome{Index: idx, Title: chart.Title, Source: src}
	path := fmt.Sprintf("charts[%d]", idx)

	if errs := spec.ValidateColumns(chart, tbl.Schema(), path); len(errs) > 0 {
		out.Err = &ValidationFailure{Errors: errs}
		log.Warn("chart failed column validation", "chart", idx, "error", out.Err)
		return out
	}

	resolved, err := transform.Apply(tbl, chart)
	if err != nil {
		out.Err = err
		log.Warn("chart pipeline failed", "chart", idx, "error", err)
		return out
	}

	outputID, err := o.renderer.Render(ctx, render.Job{
		Index:  idx,
		Source: src,
		Chart:  chart,
		Data:   resolved,
	})
	if err != nil {
		out.Err = fmt.Errorf("render: %w", err)
		log.Warn("chart render failed", "chart", idx, "error", err)
		return out
	}
	out.OutputID = outputID
	log.Info("chart rendered", "chart", idx, "output", outputID, "rows", resolved.NumRows())
	return out
}

// resolveSource picks a chart's data source: the chart's own override
// first, then the CLI-level override, then the document default. A
// name listed under data.sources maps to its location; anything else
// is used as a path directly.
func resolveSource(doc *spec.Document, chart *spec.ChartConfig, dataOverride string) (string, error) {
	ref := chart.Data
	if ref == "" {
		ref = dataOverride
	}
	if ref == "" && doc.Data != nil {
		ref = doc.Data.Default
	}
	if ref == "" {
		return "", &spec.ConfigError{Message: "no data source: chart has no data field and the document has no default"}
	}
	if doc.Data != nil {
		if loc, ok := doc.Data.Sources[ref]; ok {
			return loc, nil
		}
	}
	return ref, nil
}

// IsValidation reports whether err is a validation failure, for
// callers that distinguish config mistakes from runtime faults.
func IsValidation(err error) bool {
	var vf *ValidationFailure
	return errors.As(err, &vf)
}
