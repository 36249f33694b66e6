package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/flagsweep/internal/ir"
)

// CycleWarning represents a propagation cycle in a schema.
//
// Cycles are warnings, not errors: propagation marks each flag at most once
// per Set call, so a cycle only means asserting any member asserts all of
// them. That is occasionally intended (two flags that always travel
// together) but usually a declaration mistake.
type CycleWarning struct {
	Schema  string   `json:"schema"`
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis over propagate edges.
//
// The algorithm:
//  1. Build the flag -> propagate-target graph in declaration order
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle warning
//
// Reset edges are ignored; they never assert anything. Undeclared targets
// are ignored too (Validate reports them). Output order is deterministic.
func AnalyzeCycles(spec ir.SchemaSpec) []CycleWarning {
	g := buildPropagateGraph(spec)
	if len(g.nodes) == 0 {
		return []CycleWarning{}
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			warnings = append(warnings, cycleSCCToWarning(spec.Name, scc, g))
		}
	}
	return warnings
}

// propagateGraph is an adjacency list keyed by flag name, with the
// declaration order kept for deterministic traversal.
type propagateGraph struct {
	nodes []string
	pos   map[string]int
	edges map[string][]string
}

func buildPropagateGraph(spec ir.SchemaSpec) propagateGraph {
	g := propagateGraph{
		pos:   make(map[string]int, len(spec.Flags)),
		edges: make(map[string][]string, len(spec.Flags)),
	}
	for _, f := range spec.Flags {
		if _, dup := g.pos[f.Name]; dup || f.Name == "" {
			continue
		}
		g.pos[f.Name] = len(g.nodes)
		g.nodes = append(g.nodes, f.Name)
	}
	for _, f := range spec.Flags {
		for _, t := range f.Propagate {
			if _, ok := g.pos[t]; ok {
				g.edges[f.Name] = append(g.edges[f.Name], t)
			}
		}
	}
	return g
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, g propagateGraph) bool {
	for _, neighbor := range g.edges[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Each SCC is returned sorted by declaration order, and SCCs are ordered by
// their first member.
func tarjanSCC(g propagateGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// Root node: pop the stack into a new SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	for _, scc := range sccs {
		slices.SortFunc(scc, func(a, b string) int { return g.pos[a] - g.pos[b] })
	}
	slices.SortFunc(sccs, func(a, b []string) int { return g.pos[a[0]] - g.pos[b[0]] })
	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(schema string, scc []string, g propagateGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Schema:  schema,
			Path:    []string{name, name},
			Message: fmt.Sprintf("%s: flag propagates to itself: %s → %s", schema, name, name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, g)
	return CycleWarning{
		Schema:  schema,
		Path:    path,
		Message: fmt.Sprintf("%s: propagation cycle: %s", schema, strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path through an SCC.
//
// Strategy: depth-first from the first member, following only edges inside
// the SCC, until an edge leads back to the start. Every SCC of size > 1 has
// such a cycle through any of its members.
func reconstructCyclePath(scc []string, g propagateGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	inSCC := make(map[string]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}
	start := scc[0]
	visited := map[string]bool{start: true}
	path := []string{start}

	var dfs func(cur string) bool
	dfs = func(cur string) bool {
		for _, next := range g.edges[cur] {
			if !inSCC[next] {
				continue
			}
			if next == start {
				path = append(path, start)
				return true
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			path = append(path, next)
			if dfs(next) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	dfs(start)
	return path
}
