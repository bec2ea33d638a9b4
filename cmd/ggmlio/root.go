package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	verbose bool
	quiet   bool
	jsonOut bool

	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{log: logrus.New()}

	cmd := &cobra.Command{
		Use:   "ggmlio",
		Short: "Inspect and convert ggmlio model files",
		Long: `ggmlio reads model files made of fixed binary records, materializes
each record into an arena-backed tensor and reports what it found. Model
files may be raw or zstd/lz4 compressed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			g.log.SetOutput(cmd.ErrOrStderr())
			switch {
			case g.verbose:
				g.log.SetLevel(logrus.DebugLevel)
			case g.quiet:
				g.log.SetLevel(logrus.ErrorLevel)
			default:
				g.log.SetLevel(logrus.WarnLevel)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable verbose output and debug logs")
	cmd.PersistentFlags().
		BoolVarP(&g.quiet, "quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "Output in JSON format")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInspectCmd(g))
	cmd.AddCommand(newCompressCmd(g))

	return cmd
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func (g *globalOptions) printInfo(w io.Writer, format string, args ...any) {
	if !g.quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func (g *globalOptions) printVerbose(w io.Writer, format string, args ...any) {
	if g.verbose && !g.quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
