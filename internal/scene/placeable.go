package scene

import (
	"math"

	"github.com/roach88/flagsweep/internal/flags"
)

// Placeable is an objects-priority owner managed by a Scene.
type Placeable interface {
	flags.Owner

	// Kind names the placeable type ("Wall", "AmbientLight", "Ruler" or the
	// schema name of a generic owner).
	Kind() string
}

// Perception accepts perception work requested by placeables.
// Implemented by Scene.
type Perception interface {
	UpdatePerception(changes map[string]bool) error
}

// Point is a scene coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the euclidean distance to q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}
