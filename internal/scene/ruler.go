package scene

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/flagsweep/internal/flags"
)

// Ruler measures a path of waypoints.
//
// Segment lengths are recomputed lazily on refreshSegments. Measure needs
// current lengths immediately, so it handles a pending refreshSegments
// itself instead of waiting for the next sweep.
type Ruler struct {
	id        string
	waypoints []Point
	segments  []float64
	labels    []string
	flags     *flags.FlagSet

	Draws int
}

func newRuler(id string, schema *flags.Schema, reg flags.Registrar) *Ruler {
	r := &Ruler{id: id}
	r.flags = flags.NewFlagSet(schema, r, reg)
	return r
}

// OwnerID implements flags.Owner.
func (r *Ruler) OwnerID() string { return r.id }

// Kind implements Placeable.
func (r *Ruler) Kind() string { return "Ruler" }

// RenderFlags implements flags.Owner.
func (r *Ruler) RenderFlags() *flags.FlagSet { return r.flags }

// SetWaypoints replaces the measured path.
func (r *Ruler) SetWaypoints(points ...Point) error {
	r.waypoints = slices.Clone(points)
	return r.flags.SetFlags(FlagRefreshSegments)
}

// Measure returns the total path length, refreshing segments first if a
// refresh or a redraw is pending.
func (r *Ruler) Measure() (float64, error) {
	pending, err := r.flags.Handle(FlagRefreshSegments)
	if err != nil {
		return 0, err
	}
	// redraw resets refreshSegments but still needs current lengths; it stays
	// pending for the labels.
	if pending || r.flags.Has(FlagRedraw) {
		r.computeSegments()
	}
	total := 0.0
	for _, s := range r.segments {
		total += s
	}
	return total, nil
}

// Labels returns the segment labels computed by the last refreshLabels.
func (r *Ruler) Labels() []string { return slices.Clone(r.labels) }

// ApplyRenderFlags implements flags.Owner. redraw recomputes everything.
func (r *Ruler) ApplyRenderFlags(_ context.Context, f map[string]bool) error {
	if f[FlagRedraw] {
		r.Draws++
	}
	if f[FlagRedraw] || f[FlagRefreshSegments] {
		r.computeSegments()
	}
	if f[FlagRefreshLabels] {
		r.computeLabels()
	}
	return nil
}

func (r *Ruler) computeSegments() {
	r.segments = r.segments[:0]
	for i := 1; i < len(r.waypoints); i++ {
		r.segments = append(r.segments, r.waypoints[i-1].Distance(r.waypoints[i]))
	}
}

func (r *Ruler) computeLabels() {
	r.labels = r.labels[:0]
	for i, s := range r.segments {
		r.labels = append(r.labels, fmt.Sprintf("%d: %.2f", i+1, s))
	}
}
