package pipeline

import (
	"github.com/roach88/flagsweep/internal/ir"
)

// Perception flag names.
const (
	FlagInitializeLighting     = "initializeLighting"
	FlagInitializeLightSources = "initializeLightSources"
	FlagInitializeVision       = "initializeVision"
	FlagInitializeVisionModes  = "initializeVisionModes"
	FlagInitializeSounds       = "initializeSounds"
	FlagRefreshLighting        = "refreshLighting"
	FlagRefreshVision          = "refreshVision"
	FlagRefreshOcclusion       = "refreshOcclusion"
	FlagRefreshEdges           = "refreshEdges"
	FlagRefreshLightSources    = "refreshLightSources"
	FlagRefreshVisionSources   = "refreshVisionSources"
	FlagRefreshPrimary         = "refreshPrimary"
	FlagRefreshOcclusionStates = "refreshOcclusionStates"
	FlagRefreshOcclusionMask   = "refreshOcclusionMask"
	FlagRefreshSounds          = "refreshSounds"
	FlagSoundFadeDuration      = "soundFadeDuration"

	// FlagRefreshTiles is the legacy name of FlagRefreshOcclusion.
	FlagRefreshTiles = "refreshTiles"
)

// SchemaName is the schema name of the perception coordinator.
const SchemaName = "PerceptionManager"

// PerceptionSpec returns the perception flag graph.
//
//	initializeLighting     -> initializeLightSources
//	initializeLightSources -> refreshLighting, refreshVision, refreshEdges
//	refreshLighting        -> refreshLightSources
//	initializeVision       -> initializeVisionModes, refreshVision
//	initializeVisionModes  -> refreshVisionSources, refreshLighting, refreshPrimary
//	refreshVision          -> refreshVisionSources, refreshOcclusionMask
//	initializeSounds       -> refreshSounds
//	refreshOcclusion       -> refreshOcclusionStates, refreshOcclusionMask
//	refreshTiles (alias, deprecated) -> refreshOcclusion
//
// Every other flag is a leaf. soundFadeDuration only modifies refreshSounds.
func PerceptionSpec() ir.SchemaSpec {
	return ir.SchemaSpec{
		Name:     SchemaName,
		Priority: ir.PriorityPerception,
		Flags: []ir.FlagDescriptor{
			active(FlagInitializeLighting, FlagInitializeLightSources),
			active(FlagInitializeLightSources, FlagRefreshLighting, FlagRefreshVision, FlagRefreshEdges),
			active(FlagRefreshLighting, FlagRefreshLightSources),
			active(FlagInitializeVision, FlagInitializeVisionModes, FlagRefreshVision),
			active(FlagInitializeVisionModes, FlagRefreshVisionSources, FlagRefreshLighting, FlagRefreshPrimary),
			active(FlagRefreshVision, FlagRefreshVisionSources, FlagRefreshOcclusionMask),
			active(FlagInitializeSounds, FlagRefreshSounds),
			active(FlagRefreshOcclusion, FlagRefreshOcclusionStates, FlagRefreshOcclusionMask),
			active(FlagRefreshEdges),
			active(FlagRefreshLightSources),
			active(FlagRefreshVisionSources),
			active(FlagRefreshPrimary),
			active(FlagRefreshOcclusionStates),
			active(FlagRefreshOcclusionMask),
			active(FlagRefreshSounds),
			active(FlagSoundFadeDuration),
			{
				Name:      FlagRefreshTiles,
				Kind:      ir.FlagAlias,
				Propagate: []string{FlagRefreshOcclusion},
				Deprecation: &ir.Deprecation{
					Message: "refreshTiles is deprecated in favor of refreshOcclusion",
					Since:   "0.1",
					Until:   "0.3",
				},
			},
		},
	}
}

func active(name string, propagate ...string) ir.FlagDescriptor {
	return ir.FlagDescriptor{Name: name, Kind: ir.FlagActive, Propagate: propagate}
}

// InitializeFlags is the minimal top-level set that forces a full pipeline
// recomputation.
func InitializeFlags() []string {
	return []string{
		FlagRefreshEdges,
		FlagInitializeLighting,
		FlagInitializeVision,
		FlagInitializeSounds,
		FlagRefreshOcclusion,
	}
}
