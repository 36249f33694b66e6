package flags

import (
	"fmt"
	"slices"

	"github.com/roach88/flagsweep/internal/ir"
)

// Schema is the compiled, immutable flag declaration shared by every owner
// of one kind.
//
// Flags are interned to ids 0..Len()-1 in declaration order. Edges are stored
// as id slices so propagation never touches a string after Set has resolved
// the caller's names.
//
// INVARIANTS:
//   - every propagate/reset target is a declared id
//   - names[i] and index[names[i]] == i agree for every i
//   - nothing is mutated after NewSchema returns (the deprecation logger
//     carries its own suppression state)
type Schema struct {
	name     string
	priority ir.Priority
	hash     string
	spec     ir.SchemaSpec

	names        []string
	index        map[string]int
	kinds        []ir.FlagKind
	deprecations []*ir.Deprecation
	propagate    [][]int
	reset        [][]int

	warner *DeprecationLogger
}

// SchemaOption configures schema construction.
type SchemaOption func(*Schema)

// WithDeprecationLogger routes deprecation warnings through d.
// Default: a fresh logger over slog.Default(), private to the schema.
func WithDeprecationLogger(d *DeprecationLogger) SchemaOption {
	return func(s *Schema) {
		s.warner = d
	}
}

// NewSchema compiles and validates spec.
//
// Validation is fail-fast: the first inconsistency is returned as a
// *ConfigError. A flag with an empty Kind is treated as ir.FlagActive.
func NewSchema(spec ir.SchemaSpec, opts ...SchemaOption) (*Schema, error) {
	if spec.Name == "" {
		return nil, &ConfigError{Code: ErrCodeEmptyName, Message: "schema name is required"}
	}
	if !spec.Priority.Valid() {
		return nil, &ConfigError{
			Code:    ErrCodeInvalidPriority,
			Schema:  spec.Name,
			Message: fmt.Sprintf("invalid priority %s", spec.Priority),
		}
	}

	n := len(spec.Flags)
	s := &Schema{
		name:         spec.Name,
		priority:     spec.Priority,
		names:        make([]string, n),
		index:        make(map[string]int, n),
		kinds:        make([]ir.FlagKind, n),
		deprecations: make([]*ir.Deprecation, n),
		propagate:    make([][]int, n),
		reset:        make([][]int, n),
	}

	// Pass 1: intern names.
	for i, f := range spec.Flags {
		if f.Name == "" {
			return nil, &ConfigError{
				Code:    ErrCodeEmptyName,
				Schema:  spec.Name,
				Message: fmt.Sprintf("flag #%d has no name", i),
			}
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, &ConfigError{
				Code:    ErrCodeDuplicateFlag,
				Schema:  spec.Name,
				Flag:    f.Name,
				Message: "flag declared more than once",
			}
		}
		s.index[f.Name] = i
		s.names[i] = f.Name
	}

	// Pass 2: kinds and edges. Needs every name interned first.
	for i, f := range spec.Flags {
		kind := f.Kind
		if kind == "" {
			kind = ir.FlagActive
		}
		if !kind.Valid() {
			return nil, &ConfigError{
				Code:    ErrCodeInvalidKind,
				Schema:  spec.Name,
				Flag:    f.Name,
				Message: fmt.Sprintf("unknown flag kind %q", f.Kind),
			}
		}
		if kind == ir.FlagDeprecated && (f.Deprecation == nil || f.Deprecation.Message == "") {
			return nil, &ConfigError{
				Code:    ErrCodeInvalidKind,
				Schema:  spec.Name,
				Flag:    f.Name,
				Message: "deprecated flag requires a deprecation message",
			}
		}
		s.kinds[i] = kind
		if f.Deprecation != nil {
			dep := *f.Deprecation
			s.deprecations[i] = &dep
		}

		var err error
		if s.propagate[i], err = s.resolve(f.Name, "propagate", f.Propagate); err != nil {
			return nil, err
		}
		if s.reset[i], err = s.resolve(f.Name, "reset", f.Reset); err != nil {
			return nil, err
		}
	}

	s.spec = cloneSpec(spec)
	for i := range s.spec.Flags {
		s.spec.Flags[i].Kind = s.kinds[i]
	}

	hash, err := ir.SchemaHash(s.spec)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", spec.Name, err)
	}
	s.hash = hash

	for _, opt := range opts {
		opt(s)
	}
	if s.warner == nil {
		s.warner = NewDeprecationLogger(nil)
	}

	return s, nil
}

// MustSchema is like NewSchema but panics on error.
// Intended for package-level declarations whose spec is a Go literal.
func MustSchema(spec ir.SchemaSpec, opts ...SchemaOption) *Schema {
	s, err := NewSchema(spec, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// resolve maps edge target names to ids.
func (s *Schema) resolve(from, edge string, targets []string) ([]int, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	ids := make([]int, 0, len(targets))
	for _, t := range targets {
		id, ok := s.index[t]
		if !ok {
			return nil, &ConfigError{
				Code:    ErrCodeUndeclaredTarget,
				Schema:  s.name,
				Flag:    from,
				Message: fmt.Sprintf("%s target %q is not declared", edge, t),
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Priority returns the scheduling class owners of this schema are flushed under.
func (s *Schema) Priority() ir.Priority { return s.priority }

// Hash returns the content hash of the declaration (ir.SchemaHash).
func (s *Schema) Hash() string { return s.hash }

// Len returns the number of declared flags.
func (s *Schema) Len() int { return len(s.names) }

// Names returns every declared flag name in declaration order.
func (s *Schema) Names() []string {
	return slices.Clone(s.names)
}

// ID returns the id of a declared flag.
func (s *Schema) ID(name string) (int, bool) {
	id, ok := s.index[name]
	return id, ok
}

// Has reports whether name is declared.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Descriptor returns a copy of the declaration of name.
func (s *Schema) Descriptor(name string) (ir.FlagDescriptor, bool) {
	id, ok := s.index[name]
	if !ok {
		return ir.FlagDescriptor{}, false
	}
	return cloneDescriptor(s.spec.Flags[id]), true
}

// Spec returns a copy of the normalized declaration.
func (s *Schema) Spec() ir.SchemaSpec {
	return cloneSpec(s.spec)
}

// Closure returns every flag that asserting name would record active, in
// declaration order. Aliases are excluded; reset edges are ignored.
// Used for introspection (CLI graph) and tests.
func (s *Schema) Closure(name string) ([]string, error) {
	id, ok := s.index[name]
	if !ok {
		return nil, unknownFlag(s.name, name)
	}
	visited := make([]bool, len(s.names))
	stack := []int{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		stack = append(stack, s.propagate[cur]...)
	}
	var out []string
	for i, v := range visited {
		if v && s.kinds[i] != ir.FlagAlias {
			out = append(out, s.names[i])
		}
	}
	return out, nil
}

func (s *Schema) isAlias(id int) bool { return s.kinds[id] == ir.FlagAlias }

func cloneSpec(spec ir.SchemaSpec) ir.SchemaSpec {
	out := ir.SchemaSpec{Name: spec.Name, Priority: spec.Priority}
	out.Flags = make([]ir.FlagDescriptor, len(spec.Flags))
	for i, f := range spec.Flags {
		out.Flags[i] = cloneDescriptor(f)
	}
	return out
}

func cloneDescriptor(f ir.FlagDescriptor) ir.FlagDescriptor {
	out := f
	out.Propagate = slices.Clone(f.Propagate)
	out.Reset = slices.Clone(f.Reset)
	if f.Deprecation != nil {
		dep := *f.Deprecation
		out.Deprecation = &dep
	}
	return out
}
