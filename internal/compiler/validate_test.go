package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/flagsweep/internal/ir"
	"github.com/roach88/flagsweep/internal/pipeline"
)

func codes(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidate_PerceptionSpecIsClean(t *testing.T) {
	assert.Empty(t, Validate(pipeline.PerceptionSpec()))
}

func TestValidate_SingleErrors(t *testing.T) {
	tests := []struct {
		name  string
		flags []ir.FlagDescriptor
		want  string
	}{
		{"undeclared propagate", []ir.FlagDescriptor{{Name: "a", Propagate: []string{"b"}}}, ErrUndeclaredPropagate},
		{"undeclared reset", []ir.FlagDescriptor{{Name: "a", Reset: []string{"b"}}}, ErrUndeclaredReset},
		{"duplicate", []ir.FlagDescriptor{{Name: "a"}, {Name: "a"}}, ErrDuplicateFlag},
		{"empty name", []ir.FlagDescriptor{{Name: ""}}, ErrEmptyFlagName},
		{"alias nowhere", []ir.FlagDescriptor{{Name: "a", Kind: ir.FlagAlias}}, ErrAliasNoPropagate},
		{"deprecated no message", []ir.FlagDescriptor{{Name: "a", Kind: ir.FlagDeprecated}}, ErrDeprecationNoMsg},
		{"blank deprecation message", []ir.FlagDescriptor{{Name: "a", Kind: ir.FlagActive, Deprecation: &ir.Deprecation{Message: " "}}}, ErrDeprecationNoMsg},
		{"self reset", []ir.FlagDescriptor{{Name: "a", Reset: []string{"a"}}}, ErrSelfReset},
		{"propagate and reset", []ir.FlagDescriptor{
			{Name: "a", Propagate: []string{"b"}, Reset: []string{"b"}},
			{Name: "b"},
		}, ErrPropagateResetBoth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(ir.SchemaSpec{Name: "X", Priority: ir.PriorityObjects, Flags: tt.flags})
			assert.Equal(t, []string{tt.want}, codes(errs))
		})
	}
}

func TestValidate_CollectsEveryError(t *testing.T) {
	errs := Validate(ir.SchemaSpec{
		Priority: ir.Priority(0),
		Flags: []ir.FlagDescriptor{
			{Name: "a", Propagate: []string{"missing"}, Reset: []string{"a"}},
			{Name: "a"},
		},
	})

	assert.Equal(t, []string{
		ErrEmptySchemaName,
		ErrInvalidPriority,
		ErrDuplicateFlag,
		ErrUndeclaredPropagate,
		ErrSelfReset,
	}, codes(errs))
}

func TestValidate_CyclesAreNotErrors(t *testing.T) {
	errs := Validate(ir.SchemaSpec{
		Name:     "Loop",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			{Name: "a", Propagate: []string{"b"}},
			{Name: "b", Propagate: []string{"a"}},
		},
	})
	assert.Empty(t, errs)
}

func TestValidationError_Error(t *testing.T) {
	e := ValidationError{Field: "flags.a", Message: "boom", Code: ErrSelfReset}
	assert.Equal(t, "[E208] flags.a: boom", e.Error())

	e.Line = 7
	assert.Equal(t, "[E208] line 7: flags.a: boom", e.Error())
}
