package scene

import (
	"context"

	"github.com/roach88/flagsweep/internal/flags"
	"github.com/roach88/flagsweep/internal/pipeline"
)

// Light is an ambient light source.
type Light struct {
	id         string
	position   Point
	radius     float64
	flags      *flags.FlagSet
	perception Perception

	Draws             int
	FieldRefreshes    int
	PositionRefreshes int
}

func newLight(id string, pos Point, radius float64, schema *flags.Schema, reg flags.Registrar, p Perception) *Light {
	l := &Light{id: id, position: pos, radius: radius, perception: p}
	l.flags = flags.NewFlagSet(schema, l, reg)
	return l
}

// OwnerID implements flags.Owner.
func (l *Light) OwnerID() string { return l.id }

// Kind implements Placeable.
func (l *Light) Kind() string { return "AmbientLight" }

// RenderFlags implements flags.Owner.
func (l *Light) RenderFlags() *flags.FlagSet { return l.flags }

// Position returns the light's center.
func (l *Light) Position() Point { return l.position }

// Radius returns the light's radius.
func (l *Light) Radius() float64 { return l.radius }

// MoveTo relocates the light. The field and its position are refreshed.
func (l *Light) MoveTo(p Point) error {
	l.position = p
	return l.flags.SetFlags(FlagRefreshField)
}

// SetRadius resizes the light field.
func (l *Light) SetRadius(r float64) error {
	l.radius = r
	return l.flags.SetFlags(FlagRefreshField)
}

// ApplyRenderFlags implements flags.Owner. A changed field re-initializes
// lighting; a changed state only refreshes it.
func (l *Light) ApplyRenderFlags(_ context.Context, f map[string]bool) error {
	if f[FlagRedraw] {
		l.Draws++
	}
	if f[FlagRefreshPosition] {
		l.PositionRefreshes++
	}

	changes := make(map[string]bool, 2)
	if f[FlagRefreshField] {
		l.FieldRefreshes++
		changes[pipeline.FlagInitializeLighting] = true
	}
	if f[FlagRefreshState] {
		changes[pipeline.FlagRefreshLighting] = true
	}
	if len(changes) == 0 {
		return nil
	}
	return l.perception.UpdatePerception(changes)
}
