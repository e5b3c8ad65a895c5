package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chartforge/internal/ingest"
	"chartforge/internal/spec"
)

func newValidateCmd() *cobra.Command {
	var (
		dataPath           string
		allowUnknownFields bool
	)

	cmd := &cobra.Command{
		Use:   "validate <spec.yaml>",
		Short: "Validate a specification document offline",
		Long:  "Checks a chart specification for errors without rendering. With --against, column references are also checked against a CSV file's schema.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := spec.LoadWithOptions(args[0], spec.LoadOptions{
				AllowUnknownFields: allowUnknownFields,
			})
			if err != nil {
				return fmt.Errorf("load spec: %w", err)
			}

			validationErrs := spec.Validate(doc)
			if dataPath != "" && len(validationErrs) == 0 {
				tbl, err := ingest.LoadCSV(dataPath)
				if err != nil {
					return err
				}
				schema := tbl.Schema()
				for i := range doc.Charts {
					path := fmt.Sprintf("charts[%d]", i)
					validationErrs = append(validationErrs, spec.ValidateColumns(&doc.Charts[i], schema, path)...)
				}
			}

			if len(validationErrs) > 0 {
				fmt.Fprintf(os.Stderr, "Specification has %d validation error(s):\n", len(validationErrs))
				for _, ve := range validationErrs {
					fmt.Fprintf(os.Stderr, "  - %s\n", ve.Error())
				}
				os.Exit(1)
			}
			_, _ = fmt.Fprintln(os.Stdout, "Specification is valid.")
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "against", "", "CSV file to check column references against")
	cmd.Flags().BoolVar(&allowUnknownFields, "allow-unknown-fields", false, "Allow unknown YAML fields in the specification")
	return cmd
}
