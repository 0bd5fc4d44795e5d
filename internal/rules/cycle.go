package rules

import (
	"context"
	"fmt"
	"strings"
)

// CycleWarning reports a set of rules that can trigger each other.
//
// Cycles are warnings, not errors: the dispatch pipeline's recursion guard
// stops them at runtime, and a cycle through a payload-sensitive predicate
// may never actually close.
type CycleWarning struct {
	Path    []string `json:"path"`    // rule names: ["a", "b", "a"]
	Message string   `json:"message"` // human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeCycles builds the rule dependency graph and reports each strongly
// connected component that forms a cycle.
//
// Rule actions are concrete, so an edge A -> B exists exactly when B's
// trigger matches one of A's actions. Triggers that fail to evaluate
// contribute no edges.
func AnalyzeCycles(ctx context.Context, rs []*Rule) []CycleWarning {
	if len(rs) == 0 {
		return []CycleWarning{}
	}

	graph := buildDependencyGraph(ctx, rs)
	sccs := tarjanSCC(graph, len(rs))

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph, rs))
		}
	}
	return warnings
}

// dependencyGraph maps a rule index to the indices of rules its actions
// would trigger.
type dependencyGraph map[int][]int

func buildDependencyGraph(ctx context.Context, rs []*Rule) dependencyGraph {
	graph := make(dependencyGraph, len(rs))
	for i, from := range rs {
		graph[i] = []int{}
		for j, to := range rs {
			for _, a := range from.Actions {
				if ok, _ := to.Match(ctx, a); ok {
					graph[i] = append(graph[i], j)
					break
				}
			}
		}
	}
	return graph
}

func hasSelfLoop(node int, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components. Nodes are visited in
// index order so output is deterministic.
func tarjanSCC(graph dependencyGraph, n int) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		sccs    [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
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

	for node := 0; node < n; node++ {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []int, graph dependencyGraph, rs []*Rule) CycleWarning {
	if len(scc) == 1 {
		name := rs[scc[0]].Name
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-triggering rule detected: %s → %s", name, name),
			Level:   "warning",
		}
	}

	nodes := reconstructCyclePath(scc, graph)
	path := make([]string, len(nodes))
	for i, n := range nodes {
		path[i] = rs[n].Name
	}
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the SCC from its lowest index
// until it returns to the start.
func reconstructCyclePath(scc []int, graph dependencyGraph) []int {
	if len(scc) == 0 {
		return []int{}
	}

	members := make(map[int]bool, len(scc))
	start := scc[0]
	for _, node := range scc {
		members[node] = true
		start = min(start, node)
	}

	current := start
	path := []int{current}
	visited := make(map[int]bool)
	for {
		visited[current] = true

		next := -1
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == -1 {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
