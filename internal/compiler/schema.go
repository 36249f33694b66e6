package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/flagsweep/internal/ir"
)

// flagFields are the fields a flag declaration may carry.
var flagFields = []string{"propagate", "reset", "alias", "deprecated"}

// CompileSchema parses a CUE value into a SchemaSpec.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The CUE value should be the schema struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`schema: Ruler: { priority: "objects", flags: { ... } }`)
//	spec, err := CompileSchema(v.LookupPath(cue.ParsePath("schema.Ruler")))
//
// Flags keep their CUE declaration order. Structural problems (missing
// priority, unknown fields, wrong types) are a *CompileError; semantic
// problems such as undeclared targets are left to Validate.
func CompileSchema(v cue.Value) (*ir.SchemaSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.SchemaSpec{}

	// Schema name from the struct label (the path selector)
	selectors := v.Path().Selectors()
	if len(selectors) > 0 {
		spec.Name = selectors[len(selectors)-1].Unquoted()
	}

	// Priority (required)
	priorityVal := v.LookupPath(cue.ParsePath("priority"))
	if !priorityVal.Exists() {
		return nil, &CompileError{
			Field:   "priority",
			Message: "priority is required",
			Pos:     v.Pos(),
		}
	}
	priorityStr, err := priorityVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	priority, err := ir.ParsePriority(priorityStr)
	if err != nil {
		return nil, &CompileError{
			Field:   "priority",
			Message: err.Error(),
			Pos:     priorityVal.Pos(),
		}
	}
	spec.Priority = priority

	// Flags (required, may be empty)
	flagsVal := v.LookupPath(cue.ParsePath("flags"))
	if !flagsVal.Exists() {
		return nil, &CompileError{
			Field:   "flags",
			Message: "flags is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := flagsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		flag, err := parseFlag(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Flags = append(spec.Flags, flag)
	}

	return spec, nil
}

// CompileSchemas compiles every struct under v (typically the top-level
// `schema` field) in declaration order.
func CompileSchemas(v cue.Value) ([]ir.SchemaSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var specs []ir.SchemaSpec
	for iter.Next() {
		spec, err := CompileSchema(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", iter.Selector().Unquoted(), err)
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// parseFlag parses a single flag declaration.
func parseFlag(name string, v cue.Value) (ir.FlagDescriptor, error) {
	flag := ir.FlagDescriptor{Name: name, Kind: ir.FlagActive}

	// Reject unknown fields; a typo such as "propogate" would otherwise
	// silently declare a leaf.
	fields, err := v.Fields()
	if err != nil {
		return flag, &CompileError{
			Field:   "flags." + name,
			Message: "flag must be a struct",
			Pos:     v.Pos(),
		}
	}
	for fields.Next() {
		label := fields.Selector().Unquoted()
		if !slices.Contains(flagFields, label) {
			return flag, &CompileError{
				Field:   "flags." + name + "." + label,
				Message: fmt.Sprintf("unknown field; expected one of %v", flagFields),
				Pos:     fields.Value().Pos(),
			}
		}
	}

	if flag.Propagate, err = parseNameList(v, name, "propagate"); err != nil {
		return flag, err
	}
	if flag.Reset, err = parseNameList(v, name, "reset"); err != nil {
		return flag, err
	}

	if aliasVal := v.LookupPath(cue.ParsePath("alias")); aliasVal.Exists() {
		alias, err := aliasVal.Bool()
		if err != nil {
			return flag, formatCUEError(err)
		}
		if alias {
			flag.Kind = ir.FlagAlias
		}
	}

	if depVal := v.LookupPath(cue.ParsePath("deprecated")); depVal.Exists() {
		dep, err := parseDeprecation(name, depVal)
		if err != nil {
			return flag, err
		}
		flag.Deprecation = dep
		if flag.Kind != ir.FlagAlias {
			flag.Kind = ir.FlagDeprecated
		}
	}

	return flag, nil
}

// parseNameList parses an optional list of flag names.
func parseNameList(v cue.Value, flagName, field string) ([]string, error) {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "flags." + flagName + "." + field,
			Message: "must be a list of flag names",
			Pos:     listVal.Pos(),
		}
	}
	var names []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		names = append(names, s)
	}
	return names, nil
}

// parseDeprecation accepts either a message string or a struct
// {message, since?, until?}.
func parseDeprecation(flagName string, v cue.Value) (*ir.Deprecation, error) {
	if msg, err := v.String(); err == nil {
		return &ir.Deprecation{Message: msg}, nil
	}

	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "flags." + flagName + ".deprecated",
			Message: "must be a message string or {message, since, until}",
			Pos:     v.Pos(),
		}
	}

	dep := &ir.Deprecation{}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"message", &dep.Message},
		{"since", &dep.Since},
		{"until", &dep.Until},
	} {
		fv := v.LookupPath(cue.ParsePath(f.name))
		if !fv.Exists() {
			continue
		}
		s, err := fv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		*f.dst = s
	}
	return dep, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
