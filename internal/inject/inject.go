// Package inject implements C4: the two manifest-to-manifest rewrites
// applied to a project's task table before it is flattened by taskindex —
// task-reference resolution and workspace setup injection — plus the
// dependency-normalization pass (spec.md §4.5) that follows them.
package inject

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuenv/cuenv/internal/ident"
	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/pkg/logger"
)

var log = logger.New("inject")

// ReferenceResolver looks up the task a TaskRef points at, returning a deep
// clone ready for embedding plus the dotted name of its parent namespace
// (used to canonicalize the clone's own dependencies, spec.md §4.4a).
type ReferenceResolver interface {
	ResolveTaskRef(ref model.TaskRef) (task model.Task, parentNamespace string, err error)
}

// ResolveReferences walks tasks depth-first and replaces every placeholder
// single-task whose TaskRef is set with a deep clone of the referenced task.
func ResolveReferences(tasks map[string]model.TaskDefinition, resolver ReferenceResolver) error {
	for name, def := range tasks {
		resolved, err := resolveDefinition(def, resolver)
		if err != nil {
			return fmt.Errorf("inject: resolve %q: %w", name, err)
		}
		tasks[name] = resolved
	}
	return nil
}

func resolveDefinition(def model.TaskDefinition, resolver ReferenceResolver) (model.TaskDefinition, error) {
	if def.IsGroup() {
		group := *def.Group
		if group.IsParallel() {
			next := make(map[string]model.TaskDefinition, len(group.Parallel))
			for child, childDef := range group.Parallel {
				resolved, err := resolveDefinition(childDef, resolver)
				if err != nil {
					return def, err
				}
				next[child] = resolved
			}
			group.Parallel = next
		} else {
			next := make([]model.TaskDefinition, len(group.Sequential))
			for i, childDef := range group.Sequential {
				resolved, err := resolveDefinition(childDef, resolver)
				if err != nil {
					return def, err
				}
				next[i] = resolved
			}
			group.Sequential = next
		}
		return model.TaskDefinition{Group: &group}, nil
	}

	if def.Single == nil || def.Single.TaskRef == nil {
		return def, nil
	}

	placeholder := *def.Single
	referenced, parentNamespace, err := resolver.ResolveTaskRef(*placeholder.TaskRef)
	if err != nil {
		return def, err
	}

	clone := referenced
	clone.Name = placeholder.Name

	canonDeps := make([]string, 0, len(referenced.DependsOn))
	for _, dep := range referenced.DependsOn {
		// parentNamespace is a namespace, not a task name: a bare dep is
		// prefixed with it directly.
		qualified := dep
		if parentNamespace != "" && !strings.ContainsAny(dep, ".:") {
			qualified = parentNamespace + "." + dep
		}
		canon, err := ident.Normalize(qualified)
		if err != nil {
			return def, err
		}
		canonDeps = append(canonDeps, canon)
	}
	clone.DependsOn = append(canonDeps, placeholder.DependsOn...)
	clone.TaskRef = nil

	log.Printf("resolved task_ref for %q against %s (project_root=%s)", placeholder.Name, parentNamespace, clone.ProjectRoot)
	return model.TaskDefinition{Single: &clone}, nil
}

// WorkspaceMatcher finds upstream tasks (possibly in other projects)
// satisfying a declarative TaskMatcher, used by beforeInstall "match" steps.
type WorkspaceMatcher interface {
	Match(m model.TaskMatcher) ([]MatchedClone, error)
}

// MatchedClone is one task found by a workspace match step, ready to be
// embedded with its dependencies canonicalized relative to its own
// namespace.
type MatchedClone struct {
	Name            string
	Task            model.Task
	ParentNamespace string
}

// InjectWorkspaces synthesizes the setup chain for every enabled workspace
// that is actually referenced by at least one task (spec.md §4.4b).
func InjectWorkspaces(tasks map[string]model.TaskDefinition, workspaces map[string]model.Workspace, matcher WorkspaceMatcher) error {
	names := make([]string, 0, len(workspaces))
	for name := range workspaces {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ws := workspaces[name]
		if !ws.Enabled {
			continue
		}
		if !usesWorkspace(tasks, name) {
			continue
		}
		if err := injectOne(tasks, name, ws, matcher); err != nil {
			return fmt.Errorf("inject: workspace %q: %w", name, err)
		}
	}
	return nil
}

func usesWorkspace(tasks map[string]model.TaskDefinition, name string) bool {
	for _, def := range tasks {
		if definitionUsesWorkspace(def, name) {
			return true
		}
	}
	return false
}

func definitionUsesWorkspace(def model.TaskDefinition, name string) bool {
	if def.Single != nil {
		for _, w := range def.Single.Workspaces {
			if w == name {
				return true
			}
		}
		return false
	}
	if def.Group == nil {
		return false
	}
	if def.Group.IsParallel() {
		for _, child := range def.Group.Parallel {
			if definitionUsesWorkspace(child, name) {
				return true
			}
		}
		return false
	}
	for _, child := range def.Group.Sequential {
		if definitionUsesWorkspace(child, name) {
			return true
		}
	}
	return false
}

func injectOne(tasks map[string]model.TaskDefinition, wsName string, ws model.Workspace, matcher WorkspaceMatcher) error {
	installTask := ws.InstallTask
	if installTask == "" {
		installTask = wsName + ".install"
	}
	setupTask := ws.SetupTask
	if setupTask == "" {
		setupTask = wsName + ".setup"
	}

	var terminal []string
	prevStep := ""
	for i, step := range ws.BeforeInstall {
		stepName := fmt.Sprintf("%s.hooks.beforeInstall[%d]", wsName, i)
		var stepDeps []string
		if prevStep != "" {
			stepDeps = []string{prevStep}
		}

		switch {
		case step.Script != "":
			tasks[stepName] = model.TaskDefinition{Single: &model.Task{
				Name:      stepName,
				Script:    step.Script,
				DependsOn: stepDeps,
			}}
			terminal = []string{stepName}
		case step.Match != nil:
			clones, err := matcher.Match(*step.Match)
			if err != nil {
				return fmt.Errorf("match step %d: %w", i, err)
			}
			sort.Slice(clones, func(a, b int) bool { return clones[a].Name < clones[b].Name })

			var last string
			chained := step.Match.Parallel == false
			for ci, clone := range clones {
				cloneName := fmt.Sprintf("%s.%d", stepName, ci)
				t := clone.Task
				t.Name = cloneName
				canonDeps := make([]string, 0, len(clone.Task.DependsOn))
				for _, dep := range clone.Task.DependsOn {
					qualified := dep
					if clone.ParentNamespace != "" && !strings.ContainsAny(dep, ".:") {
						qualified = clone.ParentNamespace + "." + dep
					}
					canon, err := ident.Normalize(qualified)
					if err != nil {
						return err
					}
					canonDeps = append(canonDeps, canon)
				}
				deps := append([]string{}, stepDeps...)
				deps = append(deps, canonDeps...)
				if chained && last != "" {
					deps = append(deps, last)
				}
				t.DependsOn = deps
				tasks[cloneName] = model.TaskDefinition{Single: &t}
				last = cloneName
				terminal = append(terminal, cloneName)
			}
			if chained && len(clones) > 0 {
				terminal = []string{last}
			}
		}
		prevStep = stepName
	}

	if existing, ok := tasks[installTask]; ok && existing.Single != nil {
		existing.Single.DependsOn = append(existing.Single.DependsOn, terminal...)
		tasks[installTask] = existing
	} else {
		tasks[installTask] = model.TaskDefinition{Single: &model.Task{
			Name:      installTask,
			Script:    ":",
			DependsOn: terminal,
		}}
	}

	if _, ok := tasks[setupTask]; !ok {
		tasks[setupTask] = model.TaskDefinition{Single: &model.Task{
			Name:      setupTask,
			Script:    ":",
			DependsOn: []string{installTask},
		}}
	}

	for name, def := range tasks {
		if name == installTask || name == setupTask || hasPrefixDotted(name, wsName+".hooks.") {
			continue
		}
		if def.Single == nil {
			continue
		}
		uses := false
		for _, w := range def.Single.Workspaces {
			if w == wsName {
				uses = true
				break
			}
		}
		if !uses {
			continue
		}
		def.Single.DependsOn = append(def.Single.DependsOn, setupTask)
		tasks[name] = def
	}

	log.Printf("injected workspace %q: install=%s setup=%s hooks=%d", wsName, installTask, setupTask, len(ws.BeforeInstall))
	return nil
}

func hasPrefixDotted(name, prefix string) bool {
	if len(name) < len(prefix) {
		return false
	}
	return name[:len(prefix)] == prefix
}

// ProjectResolver supplies the lookups NormalizeDependencies needs to turn
// raw depends_on strings into FQDNs (spec.md §4.5).
type ProjectResolver interface {
	// ProjectIDByRoot returns the project-id owning an absolute project root.
	ProjectIDByRoot(root string) (string, error)
	// ProjectIDByName returns the project-id for a manifest name, used for
	// "#name:task" cross-project references.
	ProjectIDByName(name string) (string, error)
}

// NormalizeDependencies rewrites every depends_on entry across tasks into
// FQDN form. localProjectID is the FQDN scope of the project the task table
// belongs to; a task whose ProjectRoot differs (a cross-project clone) is
// instead scoped to the project that owns that root.
func NormalizeDependencies(tasks map[string]model.TaskDefinition, localProjectID, localProjectRoot string, resolver ProjectResolver) error {
	for name, def := range tasks {
		if err := normalizeDefinition(name, def, localProjectID, localProjectRoot, resolver); err != nil {
			return fmt.Errorf("inject: normalize deps for %q: %w", name, err)
		}
	}
	return nil
}

func normalizeDefinition(name string, def model.TaskDefinition, localProjectID, localProjectRoot string, resolver ProjectResolver) error {
	if def.Single != nil {
		scope := localProjectID
		if def.Single.ProjectRoot != "" && def.Single.ProjectRoot != localProjectRoot {
			owner, err := resolver.ProjectIDByRoot(def.Single.ProjectRoot)
			if err != nil {
				return err
			}
			scope = owner
		}
		out := make([]string, len(def.Single.DependsOn))
		for i, dep := range def.Single.DependsOn {
			fqdn, err := normalizeDep(dep, scope, resolver)
			if err != nil {
				return err
			}
			out[i] = fqdn
		}
		def.Single.DependsOn = out
		return nil
	}
	if def.Group == nil {
		return nil
	}
	if def.Group.IsParallel() {
		for child, childDef := range def.Group.Parallel {
			if err := normalizeDefinition(name+"."+child, childDef, localProjectID, localProjectRoot, resolver); err != nil {
				return err
			}
		}
		return nil
	}
	for i, childDef := range def.Group.Sequential {
		if err := normalizeDefinition(fmt.Sprintf("%s[%d]", name, i), childDef, localProjectID, localProjectRoot, resolver); err != nil {
			return err
		}
	}
	return nil
}

func normalizeDep(dep, scope string, resolver ProjectResolver) (string, error) {
	if isFQDN(dep) {
		return dep, nil
	}
	if len(dep) > 0 && dep[0] == '#' {
		ref, err := parseRef(dep)
		if err != nil {
			return "", err
		}
		projectID, err := resolver.ProjectIDByName(ref.Project)
		if err != nil {
			return "", err
		}
		return ident.FQDN(projectID, ref.Task)
	}
	return ident.FQDN(scope, dep)
}

func isFQDN(s string) bool {
	return len(s) > 5 && s[:5] == "task:"
}

func parseRef(s string) (model.TaskRef, error) {
	// "#project:task"
	rest := s[1:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			return model.TaskRef{Project: rest[:i], Task: rest[i+1:]}, nil
		}
	}
	return model.TaskRef{}, fmt.Errorf("inject: malformed reference %q, want #project:task", s)
}
