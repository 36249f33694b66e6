package flags

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/roach88/flagsweep/internal/ir"
)

// fakeRegistrar records membership per priority.
type fakeRegistrar struct {
	members map[ir.Priority]map[string]bool
	adds    int
	removes int
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{members: make(map[ir.Priority]map[string]bool)}
}

func (r *fakeRegistrar) Add(p ir.Priority, o Owner) {
	if r.members[p] == nil {
		r.members[p] = make(map[string]bool)
	}
	r.members[p][o.OwnerID()] = true
	r.adds++
}

func (r *fakeRegistrar) Remove(p ir.Priority, o Owner) {
	delete(r.members[p], o.OwnerID())
	r.removes++
}

// priorities returns every priority the owner is registered under.
func (r *fakeRegistrar) priorities(id string) []ir.Priority {
	var out []ir.Priority
	for _, p := range ir.AllPriorities() {
		if r.members[p][id] {
			out = append(out, p)
		}
	}
	return out
}

// testOwner is a minimal Owner.
type testOwner struct {
	id      string
	flags   *FlagSet
	applied []map[string]bool
}

func newTestOwner(id string, schema *Schema, reg Registrar) *testOwner {
	o := &testOwner{id: id}
	o.flags = NewFlagSet(schema, o, reg)
	return o
}

func (o *testOwner) OwnerID() string        { return o.id }
func (o *testOwner) RenderFlags() *FlagSet { return o.flags }
func (o *testOwner) ApplyRenderFlags(_ context.Context, f map[string]bool) error {
	o.applied = append(o.applied, f)
	return nil
}

// captureLogger returns a DeprecationLogger writing to buf.
func captureLogger(buf *bytes.Buffer) *DeprecationLogger {
	return NewDeprecationLogger(slog.New(slog.NewTextHandler(buf, nil)))
}

func flag(name string, propagate ...string) ir.FlagDescriptor {
	return ir.FlagDescriptor{Name: name, Kind: ir.FlagActive, Propagate: propagate}
}

// lightingSpec is the four-flag lighting chain.
func lightingSpec() ir.SchemaSpec {
	return ir.SchemaSpec{
		Name:     "Lighting",
		Priority: ir.PriorityPerception,
		Flags: []ir.FlagDescriptor{
			flag("initLighting", "initLightSources"),
			flag("initLightSources", "refreshLighting", "refreshVision"),
			flag("refreshLighting"),
			flag("refreshVision"),
		},
	}
}
