// Package cli implements the affectlens command tree.
//
// Commands load definitions from a CUE directory or a SQLite registry
// file, run the requested diagnostic pipeline, and print either a
// human-readable summary or a canonical JSON document suitable for
// piping into other tools.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Logger builds the command logger: debug text to stderr when verbose,
// discarded otherwise. Diagnostics never go to stdout, which must stay
// clean for JSON output.
func (o *RootOptions) Logger() *slog.Logger {
	if o.Verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewRootCommand creates the root command for the affectlens CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "affectlens",
		Short: "Diagnostics for affect-driven expression definitions",
		Long: `affectlens analyzes prototype and expression definitions: it searches
for witness contexts, classifies prerequisite feasibility, and detects
redundant prototype pairs.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewWitnessCommand(opts))
	cmd.AddCommand(NewFeasibilityCommand(opts))
	cmd.AddCommand(NewOverlapCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
