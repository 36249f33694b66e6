package ir

import "fmt"

// FlagKind is the variant tag of a flag descriptor.
//
// A flag is exactly one of:
//   - FlagActive: an ordinary flag that is recorded in the active set.
//   - FlagDeprecated: behaves like FlagActive but warns once when asserted.
//   - FlagAlias: only fans out to its propagate targets, never recorded active.
//
// An alias may additionally carry a Deprecation; it still warns once.
type FlagKind string

const (
	FlagActive     FlagKind = "active"
	FlagDeprecated FlagKind = "deprecated"
	FlagAlias      FlagKind = "alias"
)

// Valid reports whether k is one of the declared kinds.
func (k FlagKind) Valid() bool {
	switch k {
	case FlagActive, FlagDeprecated, FlagAlias:
		return true
	}
	return false
}

// Deprecation describes a compatibility flag kept for old call sites.
type Deprecation struct {
	Message string `json:"message"`
	Since   string `json:"since,omitempty"`
	Until   string `json:"until,omitempty"` // version in which the flag is removed
}

// String renders the warning text emitted when the flag is asserted.
func (d Deprecation) String() string {
	switch {
	case d.Since != "" && d.Until != "":
		return fmt.Sprintf("%s (deprecated since %s, removed in %s)", d.Message, d.Since, d.Until)
	case d.Until != "":
		return fmt.Sprintf("%s (removed in %s)", d.Message, d.Until)
	case d.Since != "":
		return fmt.Sprintf("%s (deprecated since %s)", d.Message, d.Since)
	}
	return d.Message
}

// FlagDescriptor is the static declaration of one flag.
//
// Propagate lists flags asserted whenever this flag is asserted. Reset lists
// flags retracted whenever this flag is asserted. Every name in either list
// must be declared in the same schema.
type FlagDescriptor struct {
	Name        string       `json:"name"`
	Propagate   []string     `json:"propagate,omitempty"`
	Reset       []string     `json:"reset,omitempty"`
	Kind        FlagKind     `json:"kind"`
	Deprecation *Deprecation `json:"deprecation,omitempty"`
}

// IsAlias reports whether the flag only forwards to its propagate targets.
func (d FlagDescriptor) IsAlias() bool {
	return d.Kind == FlagAlias
}

// IsDeprecated reports whether asserting the flag should emit a warning.
func (d FlagDescriptor) IsDeprecated() bool {
	return d.Kind == FlagDeprecated || d.Deprecation != nil
}

// SchemaSpec is the declaration of one owner kind's flags.
//
// Flags are kept in declaration order. Priority selects the sweep the owners
// of this kind are flushed in; it has no effect on propagation.
type SchemaSpec struct {
	Name     string           `json:"name"`
	Priority Priority         `json:"priority"`
	Flags    []FlagDescriptor `json:"flags"`
}

// Lookup returns the descriptor named name.
func (s SchemaSpec) Lookup(name string) (FlagDescriptor, bool) {
	for _, f := range s.Flags {
		if f.Name == name {
			return f, true
		}
	}
	return FlagDescriptor{}, false
}

// SweepRecord is the journal entry for one owner flushed during a sweep.
//
// Flags holds the snapshot returned by the owner's Clear, in schema
// declaration order.
type SweepRecord struct {
	ID       string   `json:"id"`
	Seq      int64    `json:"seq"`
	Tick     int64    `json:"tick"`
	Priority Priority `json:"priority"`
	OwnerID  string   `json:"owner_id"`
	Flags    []string `json:"flags"`
}
