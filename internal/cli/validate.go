package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flagsweep/internal/compiler"
	"github.com/roach88/flagsweep/internal/ir"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat propagation cycles as errors
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Schemas  int                        `json:"schemas"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate flag schemas",
		Long: `Validate the CUE flag schemas in a directory without writing IR.

Reports undeclared propagate/reset targets, duplicate flags, aliases that
forward nowhere and deprecations without a message. Propagation cycles are
reported as warnings; --strict turns them into errors.

Exit codes:
  0 - All schemas valid
  1 - Validation errors
  2 - Command error (missing directory, CUE syntax, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat propagation cycles as errors")

	return cmd
}

func runValidate(opts *ValidateOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadSchemas(schemaDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, schemaDir)

	result := ValidationResult{Schemas: len(loadResult.Schemas)}
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			})
		}
	}

	for _, spec := range loadResult.Schemas {
		formatter.VerboseLog("Validating schema: %s", spec.Name)
		errs, warnings := validateSchema(spec)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warnings...)
	}

	if opts.Strict {
		for _, w := range result.Warnings {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   w.Schema,
				Message: w.Message,
				Code:    ErrCodeCycle,
			})
		}
		result.Warnings = nil
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}
	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

// ErrCodeCycle marks a propagation cycle reported under --strict.
const ErrCodeCycle = "E301"

// validateSchema runs the declaration checks and cycle analysis on spec.
// Error fields are prefixed with the schema name.
func validateSchema(spec ir.SchemaSpec) ([]compiler.ValidationError, []compiler.CycleWarning) {
	errs := compiler.Validate(spec)
	for i := range errs {
		errs[i].Field = spec.Name + "." + errs[i].Field
	}
	return errs, compiler.AnalyzeCycles(spec)
}

func lineOf(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		for _, w := range result.Warnings {
			resp.Warnings = append(resp.Warnings, w.Message)
		}
		return formatter.Encode(resp)
	}

	for _, w := range result.Warnings {
		formatter.Warn("%s", w.Message)
	}
	fmt.Fprintf(formatter.Writer, "✓ All %d schema(s) valid\n", result.Schemas)
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.JSON() {
		if err := formatter.Encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	for _, w := range result.Warnings {
		formatter.Warn("%s", w.Message)
	}
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateSchemaDir validates all schemas in a directory.
// Returns the validation errors and cycle warnings; the error is non-nil
// only when the directory could not be loaded.
func ValidateSchemaDir(schemaDir string) ([]compiler.ValidationError, []compiler.CycleWarning, error) {
	loadResult, loadErrors := LoadSchemas(schemaDir, LoadModeFailFast)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, nil, loadErrors[0]
	}
	if len(loadErrors) > 0 {
		return nil, nil, loadErrors[0]
	}

	var errs []compiler.ValidationError
	var warnings []compiler.CycleWarning
	for _, spec := range loadResult.Schemas {
		e, w := validateSchema(spec)
		errs = append(errs, e...)
		warnings = append(warnings, w...)
	}
	return errs, warnings, nil
}
