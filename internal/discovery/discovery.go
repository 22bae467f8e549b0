// Package discovery implements C3: walking a module root to find every
// project directory and loading its typed manifest. The CUE evaluator
// itself is an external collaborator (spec.md §1) — this package only
// defines the boundary interface and the two supported paths: iterating
// a previously computed (cached) module evaluation, or falling back to
// evaluating each project directory on demand.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuenv/cuenv/internal/ident"
	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/pkg/logger"
)

var log = logger.New("discovery")

// ModuleMarkerDir is the directory whose presence identifies a module root.
const ModuleMarkerDir = "cue.mod"

// ProjectMarkerFile is the file whose presence identifies a project directory.
const ProjectMarkerFile = "env.cue"

// Evaluator is the external CUE FFI boundary: a synchronous call that
// evaluates a single project directory into a typed manifest.
type Evaluator interface {
	EvaluateProject(projectPath string) (*model.Project, error)
}

// ModuleEvaluation is a previously computed, whole-module evaluation result,
// keyed by each project's absolute root directory.
type ModuleEvaluation struct {
	ModuleRoot string
	Projects   map[string]*model.Project
}

// FindModuleRoot walks up from start looking for a cue.mod/ directory.
func FindModuleRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ModuleMarkerDir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("discovery: no %s found above %s", ModuleMarkerDir, start)
		}
		dir = parent
	}
}

// WalkProjectDirs walks moduleRoot and returns every directory containing
// a project marker file, sorted for deterministic iteration order.
func WalkProjectDirs(moduleRoot string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(moduleRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ModuleMarkerDir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == ProjectMarkerFile {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: walk %s: %w", moduleRoot, err)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Discover yields every project in the module, either by replaying a cached
// ModuleEvaluation (when non-nil) or by invoking eval per discovered
// directory.
func Discover(moduleRoot string, cached *ModuleEvaluation, eval Evaluator) ([]*model.Project, error) {
	if cached != nil {
		log.Printf("using cached module evaluation with %d projects", len(cached.Projects))
		projects := make([]*model.Project, 0, len(cached.Projects))
		for _, p := range cached.Projects {
			projects = append(projects, p)
		}
		sort.Slice(projects, func(i, j int) bool { return projects[i].Root < projects[j].Root })
		return projects, nil
	}

	dirs, err := WalkProjectDirs(moduleRoot)
	if err != nil {
		return nil, err
	}

	log.Printf("per-project fallback evaluation over %d directories", len(dirs))
	projects := make([]*model.Project, 0, len(dirs))
	for _, dir := range dirs {
		p, err := eval.EvaluateProject(dir)
		if err != nil {
			return nil, fmt.Errorf("discovery: evaluate %s: %w", dir, err)
		}
		p.Root = dir
		p.ModuleRoot = moduleRoot
		projects = append(projects, p)
	}
	return projects, nil
}

// Service indexes a discovered project set for reference resolution (C4)
// and matcher-based lookup (workspace pre-install hooks).
type Service struct {
	ModuleRoot string
	ByID       map[string]*model.Project
	ByRoot     map[string]*model.Project
}

// NewService builds a Service from a discovered project list, assigning
// each project a ProjectID (disambiguated on collision, spec.md §3).
func NewService(moduleRoot string, projects []*model.Project) (*Service, error) {
	svc := &Service{
		ModuleRoot: moduleRoot,
		ByID:       map[string]*model.Project{},
		ByRoot:     map[string]*model.Project{},
	}

	seen := map[string]struct{}{}
	for _, p := range projects {
		id, err := ident.ProjectID(p.Name, p.Root, moduleRoot)
		if err != nil {
			return nil, err
		}
		id = ident.Disambiguate(id, p.Root, moduleRoot, seen)
		svc.ByID[id] = p
		svc.ByRoot[p.Root] = p
	}
	return svc, nil
}

// ResolveRef resolves a cross-project TaskRef to the project and task name
// it points at.
func (s *Service) ResolveRef(ref model.TaskRef) (*model.Project, string, error) {
	p, ok := s.ByID[ref.Project]
	if !ok {
		return nil, "", fmt.Errorf("discovery: unknown project %q in reference #%s:%s", ref.Project, ref.Project, ref.Task)
	}
	return p, ref.Task, nil
}

// ProjectIDOf returns the ProjectID assigned to the project owning root,
// if any.
func (s *Service) ProjectIDOf(root string) (string, bool) {
	for id, p := range s.ByID {
		if p.Root == root {
			return id, true
		}
	}
	return "", false
}

// MatchTasks finds every task across every discovered project whose
// labels/command satisfy matcher, used by workspace beforeInstall Match
// steps (C4).
func (s *Service) MatchTasks(matcher model.TaskMatcher, indexOf func(*model.Project) (TaskLister, error)) ([]MatchedTask, error) {
	var matches []MatchedTask

	ids := make([]string, 0, len(s.ByID))
	for id := range s.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		project := s.ByID[id]
		lister, err := indexOf(project)
		if err != nil {
			return nil, err
		}
		for _, it := range lister.List() {
			if it.IsGroup || it.Definition.Single == nil {
				continue
			}
			if matchesTask(it.Definition.Single, matcher) {
				matches = append(matches, MatchedTask{ProjectID: id, Project: project, TaskName: it.Name})
			}
		}
	}
	return matches, nil
}

// TaskLister is the subset of taskindex.Index the matcher needs; declared
// here (rather than imported) to avoid a discovery<->taskindex cycle.
type TaskLister interface {
	List() []*model.IndexedTask
}

// MatchedTask is one task found by MatchTasks.
type MatchedTask struct {
	ProjectID string
	Project   *model.Project
	TaskName  string
}

func matchesTask(t *model.Task, m model.TaskMatcher) bool {
	for _, label := range m.LabelsRequired {
		if _, ok := t.Labels[label]; !ok {
			return false
		}
	}
	if len(m.LabelsOptional) > 0 {
		found := false
		for _, label := range m.LabelsOptional {
			if _, ok := t.Labels[label]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if m.CommandPrefix != "" && !strings.HasPrefix(t.Command, m.CommandPrefix) {
		return false
	}
	return true
}
