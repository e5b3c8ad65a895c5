// Package cli implements the chartforge command-line interface: batch
// rendering from a specification document, offline validation, and
// one-shot per-kind chart commands built from flags.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chartforge/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// globalOpts are the persistent flags shared by every subcommand.
type globalOpts struct {
	data        string
	outDir      string
	parallelism int
	verbose     bool
	quiet       bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}

	rootCmd := &cobra.Command{
		Use:           "chartforge",
		Short:         "Declarative chart pipeline",
		Long:          "Turns CSV data and declarative chart specifications into resolved, render-ready datasets.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.data, "data", "", "Default data source, overriding the document default")
	rootCmd.PersistentFlags().StringVar(&opts.outDir, "out-dir", "", "Output directory (default: dev tree ./out, else ~/charts/chartforge)")
	rootCmd.PersistentFlags().IntVar(&opts.parallelism, "parallelism", 0, "Worker pool size (default: number of CPUs)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only log errors")

	rootCmd.AddCommand(newRenderCmd(opts))
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())
	for _, def := range chartKinds {
		rootCmd.AddCommand(newChartCmd(opts, def))
	}
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// loadConfig resolves the effective configuration: environment first,
// then flag overrides.
func loadConfig(opts *globalOpts) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if opts.outDir != "" {
		cfg.OutDir = opts.outDir
	}
	if opts.parallelism > 0 {
		cfg.Parallelism = opts.parallelism
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	} else if opts.quiet {
		cfg.LogLevel = "error"
	}
	return cfg, nil
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
