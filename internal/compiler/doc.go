// Package compiler turns CUE schema declarations into ir.SchemaSpec values
// and checks them.
//
//   - CompileSchema / CompileSchemas: CUE -> ir (structural errors as
//     *CompileError with source position)
//   - Validate: declaration rules, every problem reported (codes E2xx)
//   - AnalyzeCycles: propagation cycles, reported as warnings
//   - LoadFiles: compile and validate standalone schema files
package compiler
