// Package ir provides the plain data types shared by every flagsweep package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the flag declarations
// (FlagDescriptor, SchemaSpec) and the journal records (SweepRecord) at the
// bottom of the dependency graph, so the compiler, the flag engine and the
// store can agree on them without importing each other.
//
// Key design constraints:
//   - A SchemaSpec is a declaration, not a runtime structure. The flags
//     package compiles it into an immutable arena before use.
//   - Flag order inside a SchemaSpec is declaration order and is preserved
//     end to end (CUE source, JSON output, hashing).
//   - All JSON tags use snake_case.
//   - Logical clocks (seq) only, never wall-clock timestamps, for ordering.
package ir
