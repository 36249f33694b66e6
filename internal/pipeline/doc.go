// Package pipeline implements the perception coordinator: the owner whose
// flags drive the scene's lighting, vision, sound and occlusion stages.
//
// The coordinator's flag graph is a fixed declaration (PerceptionSpec).
// Other owners ask for perception work by calling Update with top-level
// flags; propagation fills in every dependent stage. When the scheduler
// flushes the perception priority, ApplyRenderFlags runs the stage
// operations in a fixed order that is a topological sort of the graph, so
// every stage sees the results of the stages before it in the same sweep.
package pipeline
