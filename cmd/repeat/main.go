// Package main provides the repeat command line tool.
// It answers result queries against a registration evaluation store and
// writes the assembled tables as CSV or JSON.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apperrors "github.com/repeateval/repeat/internal/pkg/errors"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var a *app

	rootCmd := &cobra.Command{
		Use:   "repeat",
		Short: "Query registration evaluation results",
		Long: `repeat assembles result tables from a registration evaluation store.

Selectors take a single value or a comma-separated list. A list yields one
result per element, concatenated in order. A registration hierarchy can be
given as YAML with --tree.

Examples:
  repeat measurements --dataset oasis --regid affine --measure dsc
  repeat results --dataset oasis --regid mirtk-ireg-2.0,niftyreg-f3d --out-dir out/
  repeat grouped --dataset oasis --tree regs.yaml --measure dsc
  repeat params --dataset oasis --toolkit mirtk --command ireg`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			var err error
			a, err = newApp(cmd)
			return err
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("store", "", "store root (overrides config)")
	rootCmd.PersistentFlags().String("cache", "", "fragment cache (none, memory, redis; overrides config)")
	rootCmd.PersistentFlags().StringP("format", "f", "csv", "output format (csv, json)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error; overrides config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().Bool("metrics", false, "print Prometheus metrics of the run to stderr on exit")

	rootCmd.AddCommand(
		paramsCmd(&a),
		averagesCmd(&a),
		measurementsCmd(&a),
		resultsCmd(&a),
		groupedCmd(&a, "grouped", "Average overlap per label group", false),
		groupedCmd(&a, "ingroup", "Average overlap of the labels in any label group", true),
		tgtIDsCmd(&a),
		cfgIDsCmd(&a),
		srcIDsCmd(&a),
		volumesCmd(&a),
		versionCmd(),
	)

	err := rootCmd.Execute()
	if a != nil {
		a.close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("repeat %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
