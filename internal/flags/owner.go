package flags

import (
	"context"

	"github.com/roach88/flagsweep/internal/ir"
)

// Owner is anything that carries render flags and knows how to apply them.
//
// Placeable objects, the perception coordinator and the ruler are owners.
// The scheduler never inspects an owner beyond this interface.
type Owner interface {
	// OwnerID identifies the owner inside the pending registry. It must be
	// unique among live owners and stable for the owner's lifetime.
	OwnerID() string

	// RenderFlags returns the owner's flag set.
	RenderFlags() *FlagSet

	// ApplyRenderFlags performs the work requested by a snapshot returned
	// from Clear. The owner is already out of the registry when this runs,
	// so flags asserted from inside it are deferred to a later sweep.
	ApplyRenderFlags(ctx context.Context, flags map[string]bool) error
}

// Registrar tracks which owners have pending flags.
// Implemented by engine.Registry.
type Registrar interface {
	Add(p ir.Priority, o Owner)
	Remove(p ir.Priority, o Owner)
}
