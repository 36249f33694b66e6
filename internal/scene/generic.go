package scene

import (
	"context"

	"github.com/roach88/flagsweep/internal/flags"
)

// Generic is an owner driven entirely by a compiled schema.
// It performs no work beyond recording what it was asked to apply.
type Generic struct {
	id    string
	flags *flags.FlagSet

	// Applied holds every applied snapshot as flag names in declaration order.
	Applied [][]string
}

func newGeneric(id string, schema *flags.Schema, reg flags.Registrar) *Generic {
	g := &Generic{id: id}
	g.flags = flags.NewFlagSet(schema, g, reg)
	return g
}

// OwnerID implements flags.Owner.
func (g *Generic) OwnerID() string { return g.id }

// Kind implements Placeable.
func (g *Generic) Kind() string { return g.flags.Schema().Name() }

// RenderFlags implements flags.Owner.
func (g *Generic) RenderFlags() *flags.FlagSet { return g.flags }

// ApplyRenderFlags implements flags.Owner.
func (g *Generic) ApplyRenderFlags(_ context.Context, f map[string]bool) error {
	names := make([]string, 0, len(f))
	for _, n := range g.flags.Schema().Names() {
		if f[n] {
			names = append(names, n)
		}
	}
	g.Applied = append(g.Applied, names)
	return nil
}
