// Package graph implements C5: building the dependency graph over a
// FQDN-keyed task registry, partitioning it into execution levels, and
// running each level with a bounded worker pool.
package graph

import (
	"fmt"
	"sort"

	"github.com/cuenv/cuenv/internal/model"
)

// Registry is the global FQDN-keyed set of tasks available for graph
// construction, assembled after reference resolution, workspace injection,
// and dependency normalization (C4).
type Registry map[string]*model.Task

// CycleError reports a dependency cycle found during graph construction,
// carrying the offending path for diagnostics.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph: dependency cycle: %s", formatPath(e.Path))
}

func formatPath(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += " -> " + p
	}
	return out
}

type nodeState int

const (
	stateUnvisited nodeState = iota
	stateOnStack
	stateDone
)

// Graph is a built, acyclic dependency graph over a Registry.
type Graph struct {
	reg    Registry
	levels [][]string
}

// Build constructs the dependency graph for reg, returning a CycleError if
// any dependency edge closes a cycle.
func Build(reg Registry) (*Graph, error) {
	state := make(map[string]nodeState, len(reg))
	levelOf := make(map[string]int, len(reg))

	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if state[name] == stateDone {
			continue
		}
		if err := visit(name, reg, state, levelOf, nil); err != nil {
			return nil, err
		}
	}

	maxLevel := 0
	for _, lvl := range levelOf {
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}
	levels := make([][]string, maxLevel+1)
	for _, name := range names {
		lvl := levelOf[name]
		levels[lvl] = append(levels[lvl], name)
	}
	for _, lvl := range levels {
		sort.Strings(lvl)
	}

	return &Graph{reg: reg, levels: levels}, nil
}

// visit performs the iterative-in-spirit (recursive-in-implementation) DFS
// with a three-state marker: unvisited/on-stack/done. Go's call stack
// stands in for the explicit stack; the three states are what spec.md §4.6
// actually requires for cycle detection, not the traversal mechanism.
func visit(name string, reg Registry, state map[string]nodeState, levelOf map[string]int, path []string) error {
	state[name] = stateOnStack
	path = append(path, name)

	task, ok := reg[name]
	if !ok {
		return fmt.Errorf("graph: unknown dependency %q", name)
	}

	maxDepLevel := -1
	for _, dep := range task.DependsOn {
		switch state[dep] {
		case stateOnStack:
			cyclePath := append([]string{}, path...)
			cyclePath = append(cyclePath, dep)
			return &CycleError{Path: cyclePath}
		case stateDone:
			if lvl := levelOf[dep]; lvl > maxDepLevel {
				maxDepLevel = lvl
			}
		default:
			if err := visit(dep, reg, state, levelOf, path); err != nil {
				return err
			}
			if lvl := levelOf[dep]; lvl > maxDepLevel {
				maxDepLevel = lvl
			}
		}
	}

	levelOf[name] = maxDepLevel + 1
	state[name] = stateDone
	return nil
}

// Levels returns the level partitioning: levels[0] holds every root task
// (no dependencies), levels[i] holds tasks whose deepest dependency finished
// at level i-1. Order within a level is unspecified (sorted here only for
// determinism in logs and tests).
func (g *Graph) Levels() [][]string {
	return g.levels
}

// IsSingleTask reports whether reg contains exactly one task with no
// dependencies, the fast path that skips graph construction entirely
// (spec.md §4.6).
func IsSingleTask(reg Registry) (string, bool) {
	if len(reg) != 1 {
		return "", false
	}
	for name, t := range reg {
		if len(t.DependsOn) == 0 {
			return name, true
		}
	}
	return "", false
}
