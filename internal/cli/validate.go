package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollis-b/affectlens/internal/compiler"
	"github.com/hollis-b/affectlens/internal/registry"
)

// ValidationResult is the validate command's JSON payload.
type ValidationResult struct {
	Valid       bool                       `json:"valid"`
	Prototypes  int                        `json:"prototypes"`
	Expressions int                        `json:"expressions"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var savePath string

	cmd := &cobra.Command{
		Use:   "validate <defs-dir>",
		Short: "Validate definitions without running diagnostics",
		Long: `Validate CUE prototype and expression definitions.

Checks compile, axis paths, weight maps, gates and prerequisite clauses,
reporting every error found. With --save, valid definitions are written
to a SQLite registry file that other commands accept in place of a
definitions directory.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], savePath, cmd)
		},
	}

	cmd.Flags().StringVar(&savePath, "save", "", "write valid definitions to a SQLite registry file")
	return cmd
}

func runValidate(opts *RootOptions, source, savePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loaded, err := LoadDefinitions(cmd.Context(), source)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	formatter.VerboseLog("loaded %d prototype(s), %d expression(s) from %s",
		len(loaded.Definitions.Prototypes), len(loaded.Definitions.Expressions), source)

	result := ValidationResult{
		Prototypes:  len(loaded.Definitions.Prototypes),
		Expressions: len(loaded.Definitions.Expressions),
		Errors:      compiler.Validate(loaded.Definitions),
	}
	result.Valid = len(result.Errors) == 0

	if !result.Valid {
		if formatter.Format == "json" {
			if err := formatter.Error(result.Errors[0].Code, result.Errors[0].Message, result); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Validation failed")
			fmt.Fprintln(formatter.Writer)
			for _, e := range result.Errors {
				fmt.Fprintf(formatter.Writer, "  %s\n", e.Error())
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	if savePath != "" {
		if err := saveDefinitions(cmd, savePath, loaded.Definitions); err != nil {
			_ = formatter.Error(ErrCodeRegistry, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
		formatter.VerboseLog("saved definitions to %s", savePath)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d prototype(s), %d expression(s) valid\n",
		result.Prototypes, result.Expressions)
	return nil
}

func saveDefinitions(cmd *cobra.Command, path string, defs *compiler.Definitions) error {
	reg, err := registry.Open(path)
	if err != nil {
		return fmt.Errorf("opening registry %s: %w", path, err)
	}
	defer reg.Close()
	if err := registry.Load(cmd.Context(), reg, defs.Prototypes, defs.Expressions); err != nil {
		return fmt.Errorf("saving definitions: %w", err)
	}
	return nil
}

// reportLoadError prints a load failure and wraps it in a command-level
// exit code.
func reportLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, loadErr.Error())
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return NewExitError(ExitCommandError, err.Error())
}
