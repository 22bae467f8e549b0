// Package cli builds the cuenv command tree: the cobra root command plus
// one subcommand per spec.md §6 CLI surface entry, wiring each onto the
// internal C1-C9 components. CUE evaluation itself is an external FFI
// collaborator (spec.md §1); cueBridge in cue_bridge.go is this binary's
// concrete implementation of that boundary, shelling out to the `cue` CLI.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuenv/cuenv/internal/discovery"
	"github.com/cuenv/cuenv/internal/envmodel"
	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/internal/taskindex"
	"github.com/cuenv/cuenv/pkg/logger"
)

var log = logger.New("cli")

// redactionTable is the process-wide registry every command registers
// resolved secret fragments with before producing any output (spec.md §7).
var redactionTable = envmodel.NewTable()

// moduleContext is the result of discovering every project under a module
// root, resolved once per invocation and threaded through a command's flags.
type moduleContext struct {
	root     string
	service  *discovery.Service
	projects []*model.Project
}

// loadModule walks up from start to find the module root, then discovers
// every project beneath it.
func loadModule(start string) (*moduleContext, error) {
	root, err := discovery.FindModuleRoot(start)
	if err != nil {
		return nil, err
	}

	eval := newCueBridge()
	projects, err := discovery.Discover(root, nil, eval)
	if err != nil {
		return nil, fmt.Errorf("cli: evaluate module: %w", err)
	}

	svc, err := discovery.NewService(root, projects)
	if err != nil {
		return nil, err
	}
	return &moduleContext{root: root, service: svc, projects: projects}, nil
}

// resolveProject picks the project addressed by pathFlag/pkgFlag (relative
// to the module root), defaulting to the project owning the current
// working directory.
func (mc *moduleContext) resolveProject(pathFlag, pkgFlag string) (*model.Project, string, error) {
	target := pathFlag
	if target == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		rel, err := filepath.Rel(mc.root, cwd)
		if err != nil {
			return nil, "", err
		}
		target = rel
	}
	target = filepath.Clean(target)

	var want string
	if target == "." || target == "" {
		want = mc.root
	} else {
		want = filepath.Join(mc.root, target)
	}

	for root, project := range mc.service.ByRoot {
		if root != want {
			continue
		}
		if pkgFlag != "" && project.Name != pkgFlag {
			continue
		}
		id, _ := mc.service.ProjectIDOf(root)
		return project, id, nil
	}

	if pkgFlag != "" {
		for root, project := range mc.service.ByRoot {
			if project.Name == pkgFlag {
				id, _ := mc.service.ProjectIDOf(root)
				return project, id, nil
			}
		}
	}

	return nil, "", fmt.Errorf("cli: no project found at %q", want)
}

// buildIndex flattens project's task table, attributing every entry to its
// project's manifest file for list-command display.
func buildIndex(project *model.Project) (*taskindex.Index, error) {
	return taskindex.Build(project.Tasks, filepath.Join(project.Root, "env.cue"))
}

// closure returns the minimal Registry needed to run root and everything it
// transitively depends on, built from idx's flattened single-task entries.
func closure(idx *taskindex.Index, roots []string) (map[string]*model.Task, error) {
	reg := map[string]*model.Task{}
	var visit func(name string) error
	visit = func(name string) error {
		if _, done := reg[name]; done {
			return nil
		}
		it, ok := idx.Resolve(name)
		if !ok || it.IsGroup || it.Definition.Single == nil {
			return fmt.Errorf("cli: unknown task %q", name)
		}
		reg[name] = it.Definition.Single
		for _, dep := range it.Definition.Single.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := visit(r); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// labelMatch reports whether task carries every label in required.
func labelMatch(t *model.Task, required []string) bool {
	for _, label := range required {
		if _, ok := t.Labels[label]; !ok {
			return false
		}
	}
	return true
}

func splitArgs(args []string) (before, after []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func joinOrDash(parts []string) string {
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
