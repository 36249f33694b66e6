// Package flags implements render flags: named boolean intents ("this stage
// needs recomputation") tracked per owner and expanded through a static
// dependency graph.
//
// ARCHITECTURE:
//
// Schema:
// A Schema is the compiled, immutable form of an ir.SchemaSpec. Flags are
// interned into small integer ids in declaration order; propagate and reset
// edges become id slices. A Schema is built once per owner kind and shared by
// every owner of that kind. Building it validates every edge target, so an
// inconsistent declaration fails at registration, never during a sweep.
//
// FlagSet:
// A FlagSet is the per-owner mutable collection of pending flags. Set expands
// the asserted flags with an explicit worklist over the schema arena, using a
// per-call visited bitmap so propagation cycles terminate. Alias flags fan
// out but are never recorded. Deprecated flags warn once through the
// schema's DeprecationLogger.
//
// Registration:
// A FlagSet keeps its owner in the pending Registrar under the schema
// priority for exactly as long as it holds at least one flag. The scheduler
// (package engine) drains the registrar once per tick and hands each owner
// the snapshot returned by Clear.
//
// Thread-safety: none. Flag sets and registrars are mutated from the single
// goroutine that runs the scheduler.
package flags
