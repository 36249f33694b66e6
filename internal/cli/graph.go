package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flagsweep/internal/compiler"
	"github.com/roach88/flagsweep/internal/flags"
	"github.com/roach88/flagsweep/internal/ir"
	"github.com/roach88/flagsweep/internal/pipeline"
	"github.com/roach88/flagsweep/internal/scene"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	Schema string // only this schema
	Dot    bool   // Graphviz output
}

// FlagNode is one flag with its edges and propagation closure.
type FlagNode struct {
	Name       string      `json:"name"`
	Kind       ir.FlagKind `json:"kind"`
	Propagate  []string    `json:"propagate,omitempty"`
	Reset      []string    `json:"reset,omitempty"`
	Deprecated string      `json:"deprecated,omitempty"`
	Closure    []string    `json:"closure"`
}

// SchemaGraph is the propagation graph of one schema.
type SchemaGraph struct {
	Name     string                  `json:"name"`
	Priority ir.Priority             `json:"priority"`
	Hash     string                  `json:"hash"`
	Flags    []FlagNode              `json:"flags"`
	Cycles   []compiler.CycleWarning `json:"cycles,omitempty"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph [schema-dir]",
		Short: "Show flag propagation graphs",
		Long: `Show each flag's propagate and reset edges and the set of flags that
asserting it records active.

Without a directory the built-in schemas are shown: Wall, AmbientLight,
Ruler and the perception pipeline.

Examples:
  flagsweep graph
  flagsweep graph --schema PerceptionManager
  flagsweep graph ./schemas --dot | dot -Tsvg > flags.svg`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runGraph(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "show only the named schema")
	cmd.Flags().BoolVar(&opts.Dot, "dot", false, "emit Graphviz dot instead of text")

	return cmd
}

// BuiltinSpecs returns the schemas compiled into the scene and pipeline.
func BuiltinSpecs() []ir.SchemaSpec {
	return []ir.SchemaSpec{
		scene.WallSpec(),
		scene.LightSpec(),
		scene.RulerSpec(),
		pipeline.PerceptionSpec(),
	}
}

func runGraph(opts *GraphOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	specs := BuiltinSpecs()
	if dir != "" {
		loadResult, loadErrors := LoadSchemas(dir, LoadModeFailFast)
		if len(loadErrors) > 0 {
			code, message := parseCompileError(loadErrors[0])
			_ = formatter.Error(code, message, nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
		}
		specs = loadResult.Schemas
	}

	var graphs []SchemaGraph
	for _, spec := range specs {
		if opts.Schema != "" && spec.Name != opts.Schema {
			continue
		}
		g, err := BuildGraph(spec)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "invalid schema", err)
		}
		graphs = append(graphs, g)
	}
	if len(graphs) == 0 {
		msg := fmt.Sprintf("schema %q not found", opts.Schema)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	switch {
	case opts.Dot:
		writeDot(formatter.Writer, graphs)
		return nil
	case formatter.JSON():
		return formatter.Success(graphs)
	}
	writeGraphText(formatter.Writer, graphs)
	return nil
}

// BuildGraph compiles spec and computes the closure of every flag.
func BuildGraph(spec ir.SchemaSpec) (SchemaGraph, error) {
	if errs := compiler.Validate(spec); len(errs) > 0 {
		return SchemaGraph{}, fmt.Errorf("schema %s: %w", spec.Name, errs[0])
	}
	schema, err := flags.NewSchema(spec)
	if err != nil {
		return SchemaGraph{}, err
	}

	g := SchemaGraph{
		Name:     schema.Name(),
		Priority: schema.Priority(),
		Hash:     schema.Hash(),
		Cycles:   compiler.AnalyzeCycles(spec),
	}
	for _, f := range spec.Flags {
		closure, err := schema.Closure(f.Name)
		if err != nil {
			return SchemaGraph{}, err
		}
		node := FlagNode{
			Name:      f.Name,
			Kind:      f.Kind,
			Propagate: f.Propagate,
			Reset:     f.Reset,
			Closure:   closure,
		}
		if f.Deprecation != nil {
			node.Deprecated = f.Deprecation.String()
		}
		g.Flags = append(g.Flags, node)
	}
	return g, nil
}

func writeGraphText(w io.Writer, graphs []SchemaGraph) {
	for i, g := range graphs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s): %d flag(s)\n", g.Name, g.Priority, len(g.Flags))
		for _, f := range g.Flags {
			label := f.Name
			if f.Kind != ir.FlagActive {
				label += " [" + string(f.Kind) + "]"
			}
			fmt.Fprintf(w, "  %s\n", label)
			if len(f.Propagate) > 0 {
				fmt.Fprintf(w, "    propagate: %s\n", strings.Join(f.Propagate, ", "))
			}
			if len(f.Reset) > 0 {
				fmt.Fprintf(w, "    reset:     %s\n", strings.Join(f.Reset, ", "))
			}
			if f.Deprecated != "" {
				fmt.Fprintf(w, "    warns:     %s\n", f.Deprecated)
			}
			fmt.Fprintf(w, "    closure:   %s\n", strings.Join(f.Closure, ", "))
		}
		for _, c := range g.Cycles {
			fmt.Fprintf(w, "  ! %s\n", c.Message)
		}
	}
}

// writeDot renders propagate edges solid and reset edges dashed. Aliases
// are drawn as ellipses, deprecated flags greyed.
func writeDot(w io.Writer, graphs []SchemaGraph) {
	fmt.Fprintln(w, "digraph flags {")
	fmt.Fprintln(w, "  node [shape=box];")
	for _, g := range graphs {
		fmt.Fprintf(w, "  subgraph %q {\n", "cluster_"+g.Name)
		fmt.Fprintf(w, "    label=%q;\n", g.Name+" ("+g.Priority.String()+")")
		for _, f := range g.Flags {
			var attrs []string
			if f.Kind == ir.FlagAlias {
				attrs = append(attrs, "shape=ellipse")
			}
			if f.Deprecated != "" {
				attrs = append(attrs, "color=gray", "fontcolor=gray")
			}
			attrs = append(attrs, fmt.Sprintf("label=%q", f.Name))
			fmt.Fprintf(w, "    %q [%s];\n", g.Name+"."+f.Name, strings.Join(attrs, ","))
		}
		for _, f := range g.Flags {
			for _, t := range f.Propagate {
				fmt.Fprintf(w, "    %q -> %q;\n", g.Name+"."+f.Name, g.Name+"."+t)
			}
			for _, t := range f.Reset {
				fmt.Fprintf(w, "    %q -> %q [style=dashed];\n", g.Name+"."+f.Name, g.Name+"."+t)
			}
		}
		fmt.Fprintln(w, "  }")
	}
	fmt.Fprintln(w, "}")
}
