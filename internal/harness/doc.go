// Package harness runs YAML scenarios against a scene and checks what the
// scheduler and the perception pipeline did.
//
// # Scenario Format
//
//	name: wall_move_relights
//	description: "Moving a wall re-initializes lighting in the same tick"
//	schemas:
//	  - schemas/token.cue
//	config: |
//	  [perception]
//	  fade_duration = "100ms"
//	steps:
//	  - add_wall: {id: wall-1, from: [0, 0], to: [10, 0]}
//	  - activate: true
//	  - tick: 1
//	  - move_wall: {id: wall-1, from: [0, 0], to: [0, 10]}
//	  - tick: 1
//	assertions:
//	  - type: stage_order
//	    tick: 2
//	    stages: [refreshEdges, refreshLighting]
//	  - type: sweep_contains
//	    owner: wall-1
//	    flags: [refreshLine]
//	  - type: pending
//	    owners: []
//
// # Steps
//
// Each step performs exactly one operation: activate, teardown, add_wall,
// add_light, add_ruler, add_generic, move_wall, move_light, set_waypoints,
// measure, set, update_perception, remove, tick, fail_stage or heal. A step
// may carry expect_error to require a failure.
//
// # Assertion Types
//
//   - stage_order: stages ran in the given relative order
//   - stage_count: a stage ran exactly N times
//   - sweep_contains: the journal holds a sweep of an owner with the flags
//   - sweep_count: the journal holds N sweeps matching owner/priority/tick
//   - pending: exactly these owners are still pending, in sweep order
//
// # Deterministic Testing
//
// The harness uses testutil.DeterministicClock for seq, a
// testutil.SequentialIDGenerator for sweep ids and an in-memory SQLite
// journal per run, so traces are byte-identical across runs and can be
// compared with golden files.
package harness
