// Package scene wires owners, the pending registry, the scheduler and the
// perception coordinator into one unit with an activate/teardown lifecycle.
//
// Placeables (walls, lights, the ruler and schema-driven generic owners)
// live in the objects priority. When a placeable's change affects what can
// be seen or heard, its ApplyRenderFlags asks the coordinator for perception
// work; the perception sweep of the same tick performs it.
package scene
