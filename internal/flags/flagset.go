package flags

import (
	"cmp"
	"slices"

	"github.com/roach88/flagsweep/internal/ir"
)

// FlagSet holds the pending render flags of one owner.
//
// The active set only ever contains non-alias flags, and a flag only becomes
// active through Set (directly or by propagation). Owners leave the registrar
// when their set becomes empty.
type FlagSet struct {
	schema    *Schema
	owner     Owner
	registrar Registrar

	active []bool // indexed by flag id
	count  int
}

// NewFlagSet creates an empty flag set.
//
// owner and registrar may both be nil for a detached set (tests, tooling);
// a detached set never registers anywhere.
func NewFlagSet(schema *Schema, owner Owner, registrar Registrar) *FlagSet {
	return &FlagSet{
		schema:    schema,
		owner:     owner,
		registrar: registrar,
		active:    make([]bool, schema.Len()),
	}
}

// Schema returns the schema this set was created with.
func (fs *FlagSet) Schema() *Schema { return fs.schema }

// Set asserts flags and everything they propagate to.
//
// Every name in changes must be declared; otherwise Set returns a
// *ConfigError and the set is left untouched. Entries whose value is false
// are ignored: flags are cleared only by reset edges, Handle or Clear.
//
// Resolution per asserted flag, using one visited bitmap for the whole call:
//  1. skip if already visited in this call
//  2. mark visited
//  3. warn once if deprecated
//  4. record active unless it is an alias
//  5. remove its reset targets
//  6. push its propagate targets
//
// A reset target that a later propagation reaches in the same call is active
// again afterwards. Map order does not decide the outcome: asserted flags are
// expanded in declaration order, with flags that carry reset edges after those
// that do not, so a reset asserted alongside its target always wins.
func (fs *FlagSet) Set(changes map[string]bool) error {
	if len(changes) == 0 {
		return nil
	}

	// Resolve every name before mutating anything.
	roots := make([]int, 0, len(changes))
	for name, value := range changes {
		id, ok := fs.schema.index[name]
		if !ok {
			return unknownFlag(fs.schema.name, name)
		}
		if value {
			roots = append(roots, id)
		}
	}
	if len(roots) == 0 {
		return nil
	}
	slices.SortFunc(roots, func(a, b int) int {
		ra, rb := len(fs.schema.reset[a]) > 0, len(fs.schema.reset[b]) > 0
		if ra != rb {
			if ra {
				return 1
			}
			return -1
		}
		return cmp.Compare(a, b)
	})

	fs.expand(roots)
	fs.syncRegistration()
	return nil
}

// SetFlags asserts every named flag. Shorthand for Set with all values true.
func (fs *FlagSet) SetFlags(names ...string) error {
	changes := make(map[string]bool, len(names))
	for _, n := range names {
		changes[n] = true
	}
	return fs.Set(changes)
}

// expand runs the worklist over the schema arena.
func (fs *FlagSet) expand(roots []int) {
	s := fs.schema
	visited := make([]bool, len(s.names))

	stack := make([]int, 0, len(roots)+len(s.names))
	// Push in reverse so roots are expanded in resolution order.
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			continue
		}
		visited[id] = true

		if dep := s.deprecations[id]; dep != nil {
			s.warner.Warn(s.name, s.names[id], *dep)
		}

		if !s.isAlias(id) {
			fs.mark(id)
		}

		for _, r := range s.reset[id] {
			fs.unmark(r)
		}

		targets := s.propagate[id]
		for i := len(targets) - 1; i >= 0; i-- {
			if !visited[targets[i]] {
				stack = append(stack, targets[i])
			}
		}
	}
}

// Handle tests and clears a single flag. Returns whether it was active.
//
// Meant for simple owners that react to one or two flags without a full
// ApplyRenderFlags dispatch. Clear is not the only way out of the
// registrar: an owner whose last flag is handled leaves it too, as does one
// whose Set resets empty the set, so membership always equals non-emptiness.
func (fs *FlagSet) Handle(name string) (bool, error) {
	id, ok := fs.schema.index[name]
	if !ok {
		return false, unknownFlag(fs.schema.name, name)
	}
	if !fs.active[id] {
		return false, nil
	}
	fs.unmark(id)
	fs.syncRegistration()
	return true, nil
}

// Clear empties the set and returns what was active, keyed by flag name.
// The owner leaves the registrar before Clear returns.
func (fs *FlagSet) Clear() map[string]bool {
	snapshot := make(map[string]bool, fs.count)
	if fs.count > 0 {
		for id, on := range fs.active {
			if on {
				snapshot[fs.schema.names[id]] = true
				fs.active[id] = false
			}
		}
		fs.count = 0
	}
	fs.syncRegistration()
	return snapshot
}

// Has reports whether name is currently active. Undeclared names are never active.
func (fs *FlagSet) Has(name string) bool {
	id, ok := fs.schema.index[name]
	return ok && fs.active[id]
}

// Len returns the number of active flags.
func (fs *FlagSet) Len() int { return fs.count }

// Empty reports whether no flag is active.
func (fs *FlagSet) Empty() bool { return fs.count == 0 }

// Active returns the active flag names in declaration order.
func (fs *FlagSet) Active() []string {
	out := make([]string, 0, fs.count)
	for id, on := range fs.active {
		if on {
			out = append(out, fs.schema.names[id])
		}
	}
	return out
}

func (fs *FlagSet) mark(id int) {
	if !fs.active[id] {
		fs.active[id] = true
		fs.count++
	}
}

func (fs *FlagSet) unmark(id int) {
	if fs.active[id] {
		fs.active[id] = false
		fs.count--
	}
}

// syncRegistration keeps registrar membership equal to non-emptiness.
// Registrar Add and Remove are idempotent.
func (fs *FlagSet) syncRegistration() {
	if fs.owner == nil || fs.registrar == nil {
		return
	}
	if fs.count > 0 {
		fs.registrar.Add(fs.schema.priority, fs.owner)
	} else {
		fs.registrar.Remove(fs.schema.priority, fs.owner)
	}
}

// Priority is shorthand for the schema priority.
func (fs *FlagSet) Priority() ir.Priority { return fs.schema.priority }
