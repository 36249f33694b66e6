// Package engine implements the pending registry and the sweep scheduler.
//
// The engine decides when deferred render work runs; the flags package
// decides what that work is.
//
// ARCHITECTURE:
//
// Pending Registry:
// One insertion-ordered owner collection per priority. FlagSet keeps its
// owner registered exactly while it has active flags, so the registry always
// answers "who needs flushing" without scanning every owner.
//
// Tick Processing Flow:
//  1. Tick increments the tick counter
//  2. For each priority in the configured order, Sweep snapshots the
//     pending owners
//  3. Each owner's FlagSet is cleared (owner leaves the registry)
//  4. The owner's ApplyRenderFlags runs with the cleared snapshot
//  5. A SweepRecord is written to the journal
//
// An owner that asserts flags on an owner of a later priority hands work
// forward within the same tick; re-asserting its own flags defers them to
// the next tick.
//
// Single-Writer Loop:
// Flag sets and the registry carry no locks. Run owns them while active;
// other goroutines submit mutations through Do.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Sweep records are stamped by SeqSource.Next(), never by wall time.
//
// Deterministic Scheduling:
// Priorities sweep in a fixed global order. Within one priority, owners are
// visited in registry insertion order; owners must not rely on it.
package engine
