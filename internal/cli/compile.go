package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/flagsweep/internal/compiler"
	"github.com/roach88/flagsweep/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledSchema is one schema in the compile output.
type CompiledSchema struct {
	ir.SchemaSpec
	Hash string `json:"hash"`
}

// CompilationResult holds the compiled schemas.
type CompilationResult struct {
	Schemas []CompiledSchema `json:"schemas"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	SchemaCount     int
	FlagCount       int
	AliasCount      int
	DeprecatedCount int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <schema-dir>",
		Short: "Compile CUE flag schemas to IR",
		Long: `Compile the CUE flag schemas in a directory to IR.

Every struct under the package's top-level schema field is compiled and
validated. The output lists each schema with its flags in declaration
order and its content hash.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // we print our own errors
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadSchemas(schemaDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, schemaDir)

	result := &CompilationResult{Schemas: make([]CompiledSchema, 0, len(loadResult.Schemas))}
	errs := loadErrors
	for _, spec := range loadResult.Schemas {
		formatter.VerboseLog("Compiling schema: %s", spec.Name)
		if verrs := compiler.Validate(spec); len(verrs) > 0 {
			for _, v := range verrs {
				errs = append(errs, schemaValidationError{schema: spec.Name, err: v})
			}
			continue
		}
		hash, err := ir.SchemaHash(spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("schema %s: %w", spec.Name, err))
			continue
		}
		result.Schemas = append(result.Schemas, CompiledSchema{SchemaSpec: spec, Hash: hash})
	}

	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// schemaValidationError ties a validation error to its schema.
type schemaValidationError struct {
	schema string
	err    compiler.ValidationError
}

func (e schemaValidationError) Error() string {
	return fmt.Sprintf("schema %s: %s", e.schema, e.err.Error())
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{SchemaCount: len(result.Schemas)}
	for _, s := range result.Schemas {
		stats.FlagCount += len(s.Flags)
		for _, f := range s.Flags {
			if f.IsAlias() {
				stats.AliasCount++
			}
			if f.IsDeprecated() {
				stats.DeprecatedCount++
			}
		}
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d schema(s), %d flag(s)\n\n", stats.SchemaCount, stats.FlagCount)

	if len(result.Schemas) > 0 {
		fmt.Fprintln(w, "Schemas:")
		for _, s := range result.Schemas {
			fmt.Fprintf(w, "  %s (%s): %d flag(s) %s\n", s.Name, s.Priority, len(s.Flags), s.Hash[:12])
		}
		fmt.Fprintln(w)
	}
	if stats.AliasCount > 0 || stats.DeprecatedCount > 0 {
		fmt.Fprintf(w, "%d alias(es), %d deprecated flag(s)\n", stats.AliasCount, stats.DeprecatedCount)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote IR to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		if err := formatter.Encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var sv schemaValidationError
	if errors.As(err, &sv) {
		return sv.err.Code, fmt.Sprintf("%s: %s: %s", sv.schema, sv.err.Field, sv.err.Message)
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the compilation result as indented JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
