package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chartforge/internal/batch"
	"chartforge/internal/config"
	"chartforge/internal/ingest"
	"chartforge/internal/render"
	"chartforge/internal/spec"
)

func newRenderCmd(opts *globalOpts) *cobra.Command {
	var allowUnknownFields bool

	cmd := &cobra.Command{
		Use:   "render <spec.yaml>",
		Short: "Render every chart in a specification document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			for _, w := range cfg.Warnings {
				logger.Warn(w)
			}

			doc, err := spec.LoadWithOptions(args[0], spec.LoadOptions{
				AllowUnknownFields: allowUnknownFields,
			})
			if err != nil {
				return err
			}

			outcomes, err := runBatch(cmd, cfg, logger, doc, opts.data)
			if err != nil {
				return err
			}
			reportOutcomes(outcomes)
			if !outcomes.AllOK() {
				failed := 0
				for _, o := range outcomes {
					if !o.OK() {
						failed++
					}
				}
				return fmt.Errorf("%d of %d chart(s) failed", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allowUnknownFields, "allow-unknown-fields", false, "Allow unknown YAML fields in the specification")
	return cmd
}

func runBatch(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, doc *spec.Document, dataOverride string) (batch.Outcomes, error) {
	orch := batch.New(
		ingest.LoadCSV,
		&render.DatasetWriter{Dir: cfg.OutDir},
		cfg,
		logger,
	)
	return orch.Execute(cmd.Context(), doc, dataOverride)
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// reportOutcomes prints one line per chart. Status marks degrade to
// plain ASCII when stdout is not a terminal.
func reportOutcomes(outcomes batch.Outcomes) {
	okMark, failMark := "ok", "FAILED"
	if term.IsTerminal(int(os.Stdout.Fd())) {
		okMark, failMark = "✓", "✗"
	}
	for _, o := range outcomes {
		title := o.Title
		if title == "" {
			title = fmt.Sprintf("chart %d", o.Index+1)
		}
		if o.OK() {
			fmt.Fprintf(os.Stdout, "%s %s -> %s\n", okMark, title, o.OutputID)
		} else {
			fmt.Fprintf(os.Stdout, "%s %s: %v\n", failMark, title, o.Err)
		}
	}
}
