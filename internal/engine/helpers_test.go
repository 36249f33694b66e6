package engine

import (
	"context"

	"github.com/roach88/flagsweep/internal/flags"
	"github.com/roach88/flagsweep/internal/ir"
)

var objectSchema = flags.MustSchema(ir.SchemaSpec{
	Name:     "Object",
	Priority: ir.PriorityObjects,
	Flags: []ir.FlagDescriptor{
		{Name: "redraw", Propagate: []string{"refreshState"}},
		{Name: "refreshState"},
		{Name: "refreshLine"},
	},
})

var perceptionSchema = flags.MustSchema(ir.SchemaSpec{
	Name:     "Perception",
	Priority: ir.PriorityPerception,
	Flags: []ir.FlagDescriptor{
		{Name: "refreshEdges"},
		{Name: "refreshLighting"},
	},
})

// stubOwner records applied snapshots and runs an optional hook.
type stubOwner struct {
	id      string
	flags   *flags.FlagSet
	applied []map[string]bool
	onApply func(ctx context.Context, f map[string]bool) error
}

func newStubOwner(id string, schema *flags.Schema, reg flags.Registrar) *stubOwner {
	o := &stubOwner{id: id}
	o.flags = flags.NewFlagSet(schema, o, reg)
	return o
}

func (o *stubOwner) OwnerID() string              { return o.id }
func (o *stubOwner) RenderFlags() *flags.FlagSet { return o.flags }

func (o *stubOwner) ApplyRenderFlags(ctx context.Context, f map[string]bool) error {
	o.applied = append(o.applied, f)
	if o.onApply != nil {
		return o.onApply(ctx, f)
	}
	return nil
}

// failingJournal rejects every write.
type failingJournal struct{ err error }

func (j failingJournal) WriteSweep(context.Context, ir.SweepRecord) error { return j.err }
