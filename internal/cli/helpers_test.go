package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// schemaDir is a valid two-file CUE package shared by the command tests.
var schemaDir = filepath.Join("testdata", "schemas")

// writeCUE writes files into a fresh temp dir and returns it.
func writeCUE(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

const cycleSchema = `package test

schema: Loop: {
	priority: "objects"
	flags: {
		a: propagate: ["b"]
		b: propagate: ["a"]
		c: {}
	}
}
`

const undeclaredSchema = `package test

schema: Broken: {
	priority: "objects"
	flags: {
		redraw: propagate: ["refreshMissing"]
	}
}
`

const noPrioritySchema = `package test

schema: Orphan: {
	flags: {
		redraw: {}
	}
}
`
