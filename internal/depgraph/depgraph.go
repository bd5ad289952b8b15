// Package depgraph validates the dependency DAG between plugins and
// computes which jobs are ready to run given a set of already-completed
// jobs (spec.md §4.6).
package depgraph

import "fmt"

// ErrKind classifies why a graph failed validation.
type ErrKind int

const (
	// ErrSelfDep: a node lists itself as a dependency.
	ErrSelfDep ErrKind = iota
	// ErrMissingDep: a node depends on a name not present in the graph.
	ErrMissingDep
	// ErrCycle: the graph contains a dependency cycle.
	ErrCycle
)

func (k ErrKind) String() string {
	switch k {
	case ErrSelfDep:
		return "self-dependency"
	case ErrMissingDep:
		return "missing dependency"
	case ErrCycle:
		return "cycle"
	default:
		return "unknown"
	}
}

// ValidationError reports a single structural defect in a dependency graph.
type ValidationError struct {
	Kind    ErrKind
	Node    string
	Related string // the missing/self/cycle-closing dependency name, if any
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ErrSelfDep:
		return fmt.Sprintf("depgraph: %q depends on itself", e.Node)
	case ErrMissingDep:
		return fmt.Sprintf("depgraph: %q depends on unregistered node %q", e.Node, e.Related)
	case ErrCycle:
		return fmt.Sprintf("depgraph: cycle detected: %q -> %q", e.Node, e.Related)
	default:
		return "depgraph: invalid graph"
	}
}

// Graph is an adjacency list of node name -> the names it depends on.
type Graph struct {
	edges map[string][]string
	order []string
}

// New builds a Graph from a map of node name to its dependency names.
// Node order is preserved from the given slice for deterministic Ready
// output.
func New(nodes []string, deps map[string][]string) *Graph {
	g := &Graph{edges: make(map[string][]string, len(nodes)), order: append([]string(nil), nodes...)}
	for _, n := range nodes {
		g.edges[n] = deps[n]
	}
	return g
}

// color marks DFS visitation state for cycle detection.
type color int

const (
	white color = iota
	gray
	black
)

// Validate checks the graph for self-dependencies, dependencies on
// unregistered nodes, and cycles, using a three-colour DFS. It returns the
// first defect found.
func (g *Graph) Validate() error {
	for _, n := range g.order {
		for _, d := range g.edges[n] {
			if d == n {
				return &ValidationError{Kind: ErrSelfDep, Node: n}
			}
			if _, ok := g.edges[d]; !ok {
				return &ValidationError{Kind: ErrMissingDep, Node: n, Related: d}
			}
		}
	}

	colors := make(map[string]color, len(g.order))
	var visit func(n string) error
	visit = func(n string) error {
		colors[n] = gray
		for _, d := range g.edges[n] {
			switch colors[d] {
			case gray:
				return &ValidationError{Kind: ErrCycle, Node: n, Related: d}
			case white:
				if err := visit(d); err != nil {
					return err
				}
			}
		}
		colors[n] = black
		return nil
	}

	for _, n := range g.order {
		if colors[n] == white {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// Ready returns, in graph order, the nodes whose dependencies are all
// present in done and which are not themselves in done.
func (g *Graph) Ready(done map[string]bool) []string {
	var ready []string
	for _, n := range g.order {
		if done[n] {
			continue
		}
		blocked := false
		for _, d := range g.edges[n] {
			if !done[d] {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, n)
		}
	}
	return ready
}

// Nodes returns the graph's node names in their original order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// DepsOf returns the direct dependency names declared for node.
func (g *Graph) DepsOf(node string) []string {
	return append([]string(nil), g.edges[node]...)
}
