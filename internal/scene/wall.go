package scene

import (
	"context"

	"github.com/roach88/flagsweep/internal/flags"
	"github.com/roach88/flagsweep/internal/pipeline"
)

// Wall is a line segment that blocks light, sight and sound.
//
// Any change to its line invalidates edges and every perception source, so
// applying refreshLine asks perception for a full re-initialization of
// lighting, vision and sound.
type Wall struct {
	id         string
	a, b       Point
	flags      *flags.FlagSet
	perception Perception

	// Applied redraw, refreshState and refreshLine counts.
	Draws          int
	StateRefreshes int
	LineRefreshes  int
}

func newWall(id string, a, b Point, schema *flags.Schema, reg flags.Registrar, p Perception) *Wall {
	w := &Wall{id: id, a: a, b: b, perception: p}
	w.flags = flags.NewFlagSet(schema, w, reg)
	return w
}

// OwnerID implements flags.Owner.
func (w *Wall) OwnerID() string { return w.id }

// Kind implements Placeable.
func (w *Wall) Kind() string { return "Wall" }

// RenderFlags implements flags.Owner.
func (w *Wall) RenderFlags() *flags.FlagSet { return w.flags }

// Endpoints returns the wall's segment.
func (w *Wall) Endpoints() (Point, Point) { return w.a, w.b }

// Move relocates the wall and schedules a line refresh.
func (w *Wall) Move(a, b Point) error {
	w.a, w.b = a, b
	return w.flags.SetFlags(FlagRefreshLine)
}

// ApplyRenderFlags implements flags.Owner.
func (w *Wall) ApplyRenderFlags(_ context.Context, f map[string]bool) error {
	if f[FlagRedraw] {
		w.Draws++
	}
	if f[FlagRefreshState] {
		w.StateRefreshes++
	}
	if f[FlagRefreshLine] {
		w.LineRefreshes++
		return w.perception.UpdatePerception(wallPerceptionChanges())
	}
	return nil
}

// wallPerceptionChanges is the perception work a changed wall line needs.
func wallPerceptionChanges() map[string]bool {
	return map[string]bool{
		pipeline.FlagRefreshEdges:       true,
		pipeline.FlagInitializeLighting: true,
		pipeline.FlagInitializeVision:   true,
		pipeline.FlagInitializeSounds:   true,
	}
}
