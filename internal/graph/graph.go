// Package graph implements the dependency traversal shared by the module
// build pipeline: a single three-color depth-first search that computes the
// transitive dependency closure of a set of roots while detecting cycles and
// collecting unknown dependency names in the same pass.
package graph

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError reports a dependency cycle. Path begins and ends with the same
// name, e.g. [a b a].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// UnknownDependencyError reports dependency names that resolve to no known
// node. All unknown names found during the traversal are collected so the
// whole configuration problem is reported at once.
type UnknownDependencyError struct {
	Missing []string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("unknown modules: %s", strings.Join(e.Missing, ", "))
}

// DepsFunc resolves a node name to its direct dependencies. The second
// return value is false when the name is unknown.
type DepsFunc func(name string) ([]string, bool)

// dfs colors for the traversal.
const (
	white = iota // unvisited
	gray         // on the current recursion stack
	black        // fully explored
)

// Closure returns the transitive dependency closure of roots, including the
// roots themselves, in sorted order. Unknown root or dependency names are
// gathered into an UnknownDependencyError; a cycle anywhere in the reachable
// graph yields a CycleError carrying the cycle path. A cycle takes precedence
// over unknown names since it invalidates the graph shape itself.
func Closure(roots []string, deps DepsFunc) ([]string, error) {
	color := make(map[string]int)
	stack := make([]string, 0, len(roots))
	unknown := make(map[string]struct{})
	var closure []string
	var cycle *CycleError

	var visit func(name string)
	visit = func(name string) {
		if cycle != nil {
			return
		}
		switch color[name] {
		case black:
			return
		case gray:
			// The node is on our own recursion stack: trace the cycle.
			start := 0
			for i, n := range stack {
				if n == name {
					start = i
					break
				}
			}
			path := append(append([]string{}, stack[start:]...), name)
			cycle = &CycleError{Path: path}
			return
		}

		color[name] = gray
		stack = append(stack, name)

		depNames, ok := deps(name)
		if !ok {
			unknown[name] = struct{}{}
		}
		for _, dep := range depNames {
			visit(dep)
			if cycle != nil {
				return
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = black
		if ok {
			closure = append(closure, name)
		}
	}

	for _, root := range roots {
		visit(root)
		if cycle != nil {
			return nil, cycle
		}
	}

	if len(unknown) > 0 {
		missing := make([]string, 0, len(unknown))
		for name := range unknown {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return nil, &UnknownDependencyError{Missing: missing}
	}

	sort.Strings(closure)
	return closure, nil
}
