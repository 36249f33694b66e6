package scene

import (
	"github.com/roach88/flagsweep/internal/ir"
)

// Placeable flag names shared by the built-in kinds.
const (
	FlagRedraw          = "redraw"
	FlagRefresh         = "refresh"
	FlagRefreshState    = "refreshState"
	FlagRefreshLine     = "refreshLine"
	FlagRefreshField    = "refreshField"
	FlagRefreshPosition = "refreshPosition"
	FlagRefreshSegments = "refreshSegments"
	FlagRefreshLabels   = "refreshLabels"
	FlagRefreshPath     = "refreshPath"
)

// WallSpec declares the wall flags.
//
//	redraw  -> refresh
//	refresh (alias) -> refreshState, refreshLine
func WallSpec() ir.SchemaSpec {
	return ir.SchemaSpec{
		Name:     "Wall",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			{Name: FlagRedraw, Kind: ir.FlagActive, Propagate: []string{FlagRefresh}},
			{Name: FlagRefresh, Kind: ir.FlagAlias, Propagate: []string{FlagRefreshState, FlagRefreshLine}},
			{Name: FlagRefreshState, Kind: ir.FlagActive},
			{Name: FlagRefreshLine, Kind: ir.FlagActive},
		},
	}
}

// LightSpec declares the ambient light flags.
//
//	redraw       -> refresh
//	refresh (alias) -> refreshState, refreshField
//	refreshField -> refreshPosition
func LightSpec() ir.SchemaSpec {
	return ir.SchemaSpec{
		Name:     "AmbientLight",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			{Name: FlagRedraw, Kind: ir.FlagActive, Propagate: []string{FlagRefresh}},
			{Name: FlagRefresh, Kind: ir.FlagAlias, Propagate: []string{FlagRefreshState, FlagRefreshField}},
			{Name: FlagRefreshState, Kind: ir.FlagActive},
			{Name: FlagRefreshField, Kind: ir.FlagActive, Propagate: []string{FlagRefreshPosition}},
			{Name: FlagRefreshPosition, Kind: ir.FlagActive},
		},
	}
}

// RulerSpec declares the ruler flags.
//
//	redraw  -> refreshLabels, resets refreshSegments
//	refresh (alias) -> refreshSegments, refreshLabels
//	refreshPath (deprecated) -> refreshSegments
func RulerSpec() ir.SchemaSpec {
	return ir.SchemaSpec{
		Name:     "Ruler",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			{
				Name:      FlagRedraw,
				Kind:      ir.FlagActive,
				Propagate: []string{FlagRefreshLabels},
				Reset:     []string{FlagRefreshSegments},
			},
			{Name: FlagRefresh, Kind: ir.FlagAlias, Propagate: []string{FlagRefreshSegments, FlagRefreshLabels}},
			{Name: FlagRefreshSegments, Kind: ir.FlagActive},
			{Name: FlagRefreshLabels, Kind: ir.FlagActive},
			{
				Name:      FlagRefreshPath,
				Kind:      ir.FlagDeprecated,
				Propagate: []string{FlagRefreshSegments},
				Deprecation: &ir.Deprecation{
					Message: "refreshPath is deprecated in favor of refreshSegments",
					Since:   "0.1",
					Until:   "0.3",
				},
			},
		},
	}
}
