package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/flagsweep/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrUndeclaredPropagate = "E201" // propagate target not declared
	ErrUndeclaredReset     = "E202" // reset target not declared
	ErrDuplicateFlag       = "E203" // flag declared twice
	ErrEmptyFlagName       = "E204" // flag without a name
	ErrInvalidPriority     = "E205" // priority outside the enumeration
	ErrAliasNoPropagate    = "E206" // alias that forwards nowhere
	ErrDeprecationNoMsg    = "E207" // deprecation without a message
	ErrSelfReset           = "E208" // flag resets itself
	ErrPropagateResetBoth  = "E209" // same target both propagated and reset
	ErrEmptySchemaName     = "E210" // schema without a name
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled schema against the declaration rules.
// Returns all errors found (does not fail-fast), in declaration order.
//
// A schema with no validation errors is accepted by flags.NewSchema.
// Propagation cycles are legal and reported separately by AnalyzeCycles.
func Validate(spec ir.SchemaSpec) []ValidationError {
	var errs []ValidationError

	// E210: schema name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "schema name is required",
			Code:    ErrEmptySchemaName,
		})
	}

	// E205: priority must be declared
	if !spec.Priority.Valid() {
		errs = append(errs, ValidationError{
			Field:   "priority",
			Message: fmt.Sprintf("invalid priority %s (expected objects or perception)", spec.Priority),
			Code:    ErrInvalidPriority,
		})
	}

	declared := make(map[string]bool, len(spec.Flags))
	for i, f := range spec.Flags {
		// E204: flag name is required
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("flags[%d]", i),
				Message: "flag name is required",
				Code:    ErrEmptyFlagName,
			})
			continue
		}
		// E203: duplicate flag
		if declared[f.Name] {
			errs = append(errs, ValidationError{
				Field:   "flags." + f.Name,
				Message: "flag declared more than once",
				Code:    ErrDuplicateFlag,
			})
		}
		declared[f.Name] = true
	}

	for _, f := range spec.Flags {
		if f.Name == "" {
			continue
		}
		field := "flags." + f.Name
		errs = append(errs, validateTargets(field, "propagate", f.Propagate, declared, ErrUndeclaredPropagate)...)
		errs = append(errs, validateTargets(field, "reset", f.Reset, declared, ErrUndeclaredReset)...)

		// E206: alias must forward somewhere
		if f.Kind == ir.FlagAlias && len(f.Propagate) == 0 && len(f.Reset) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "alias has no propagate or reset targets",
				Code:    ErrAliasNoPropagate,
			})
		}

		// E207: deprecation needs a message
		missing := f.Kind == ir.FlagDeprecated && f.Deprecation == nil
		blank := f.Deprecation != nil && strings.TrimSpace(f.Deprecation.Message) == ""
		if missing || blank {
			errs = append(errs, ValidationError{
				Field:   field + ".deprecated",
				Message: "deprecation message is required",
				Code:    ErrDeprecationNoMsg,
			})
		}

		// E208: a flag resetting itself can never be active
		if slices.Contains(f.Reset, f.Name) {
			errs = append(errs, ValidationError{
				Field:   field + ".reset",
				Message: "flag resets itself",
				Code:    ErrSelfReset,
			})
		}

		// E209: resets win, so the propagate edge is dead
		for _, t := range f.Propagate {
			if slices.Contains(f.Reset, t) {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("%q is both propagated and reset", t),
					Code:    ErrPropagateResetBoth,
				})
			}
		}
	}

	return errs
}

func validateTargets(field, edge string, targets []string, declared map[string]bool, code string) []ValidationError {
	var errs []ValidationError
	for _, t := range targets {
		if !declared[t] {
			errs = append(errs, ValidationError{
				Field:   field + "." + edge,
				Message: fmt.Sprintf("target %q is not declared", t),
				Code:    code,
			})
		}
	}
	return errs
}
