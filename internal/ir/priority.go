package ir

import (
	"encoding/json"
	"fmt"
)

// Priority is the scheduling class an owner is flushed under.
//
// Priorities form a small closed enumeration. They decide which sweep an
// owner belongs to; sweeps run in the order given by the scheduler
// (DefaultPriorityOrder unless the host configures another).
type Priority int

const (
	// PriorityObjects holds placeable objects (walls, lights, rulers).
	PriorityObjects Priority = iota + 1
	// PriorityPerception holds the perception pipeline coordinator.
	PriorityPerception
)

// DefaultPriorityOrder is the sweep order used when none is configured.
var DefaultPriorityOrder = []Priority{PriorityObjects, PriorityPerception}

// AllPriorities lists every declared priority.
func AllPriorities() []Priority {
	return []Priority{PriorityObjects, PriorityPerception}
}

// String returns the lower-case name used in CUE, TOML and JSON.
func (p Priority) String() string {
	switch p {
	case PriorityObjects:
		return "objects"
	case PriorityPerception:
		return "perception"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p is a declared priority.
func (p Priority) Valid() bool {
	return p == PriorityObjects || p == PriorityPerception
}

// ParsePriority converts a name ("objects", "perception") to a Priority.
// Upper-case names are accepted as well.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "objects", "OBJECTS":
		return PriorityObjects, nil
	case "perception", "PERCEPTION":
		return PriorityPerception, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// MarshalJSON encodes the priority as its name.
func (p Priority) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid priority %d", int(p))
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a priority name.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("priority must be a string: %w", err)
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// UnmarshalText lets TOML and YAML decoders read priority names.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText is the inverse of UnmarshalText.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}
