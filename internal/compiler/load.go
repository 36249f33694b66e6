package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/flagsweep/internal/ir"
)

// LoadFiles compiles the top-level `schema` field of each CUE file and
// checks every result with Validate. Schemas come back in file order, then
// declaration order.
//
// Files are compiled independently, so one file cannot reference another.
// Use the CLI loader for a package of files that share definitions.
func LoadFiles(paths ...string) ([]ir.SchemaSpec, error) {
	ctx := cuecontext.New()
	var specs []ir.SchemaSpec
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		schemaVal := v.LookupPath(cue.ParsePath("schema"))
		if !schemaVal.Exists() {
			return nil, fmt.Errorf("%s: no schema field", path)
		}
		compiled, err := CompileSchemas(schemaVal)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, spec := range compiled {
			if errs := Validate(spec); len(errs) > 0 {
				return nil, fmt.Errorf("%s: schema %s: %w", path, spec.Name, errs[0])
			}
		}
		specs = append(specs, compiled...)
	}
	return specs, nil
}
