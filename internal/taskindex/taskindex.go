// Package taskindex implements C2: flattening a project's nested task
// table into a flat, dotted-name lookup.
package taskindex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuenv/cuenv/internal/ident"
	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/pkg/logger"
)

var log = logger.New("taskindex")

// ErrReservedPrefix is returned when a user-authored task name starts with
// the reserved synthetic-task namespace (DESIGN.md Open Question 2).
type ErrReservedPrefix struct {
	Name string
}

func (e *ErrReservedPrefix) Error() string {
	return fmt.Sprintf("taskindex: task name %q uses the reserved %q prefix", e.Name, ident.ReservedPrefix)
}

// Index is a flattened lookup over a project's (possibly nested) task table.
type Index struct {
	byName map[string]*model.IndexedTask
	order  []string
}

// Build flattens tasks into an Index. sourceFile attributes every top-level
// entry (and its descendants) to the file the task table was loaded from.
func Build(tasks map[string]model.TaskDefinition, sourceFile string) (*Index, error) {
	idx := &Index{byName: map[string]*model.IndexedTask{}}

	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if ident.IsReserved(name) {
			return nil, &ErrReservedPrefix{Name: name}
		}
		if err := idx.indexDefinition(name, tasks[name], sourceFile); err != nil {
			return nil, err
		}
	}

	log.Printf("built task index with %d entries from %s", len(idx.order), sourceFile)
	return idx, nil
}

func (idx *Index) indexDefinition(name string, def model.TaskDefinition, sourceFile string) error {
	if idx.byName[name] != nil {
		return fmt.Errorf("taskindex: duplicate task name %q", name)
	}

	it := &model.IndexedTask{
		Name:       name,
		Definition: def,
		SourceFile: sourceFile,
		IsGroup:    def.IsGroup(),
	}
	idx.byName[name] = it
	idx.order = append(idx.order, name)

	if !def.IsGroup() {
		return nil
	}

	group := def.Group
	if group.IsParallel() {
		children := make([]string, 0, len(group.Parallel))
		for child := range group.Parallel {
			children = append(children, child)
		}
		sort.Strings(children)
		for _, child := range children {
			childName := name + "." + child
			if err := idx.indexDefinition(childName, group.Parallel[child], sourceFile); err != nil {
				return err
			}
		}
		return nil
	}

	for i, childDef := range group.Sequential {
		childName := fmt.Sprintf("%s[%d]", name, i)
		if err := idx.indexDefinition(childName, childDef, sourceFile); err != nil {
			return err
		}
	}
	return nil
}

// Resolve accepts either "a.b.c" or "a:b:c" spellings and returns the
// matching entry, if any.
func (idx *Index) Resolve(nameOrAlias string) (*model.IndexedTask, bool) {
	normalized, err := ident.Normalize(nameOrAlias)
	if err != nil {
		return nil, false
	}
	it, ok := idx.byName[normalized]
	return it, ok
}

// List returns every indexed task in index order (top-level and parallel
// names sorted, sequential children by position, each group before its
// children), preserving source-file attribution, for listing commands.
func (idx *Index) List() []*model.IndexedTask {
	out := make([]*model.IndexedTask, 0, len(idx.order))
	for _, name := range idx.order {
		out = append(out, idx.byName[name])
	}
	return out
}

// Names returns the dotted names of every indexed task, in the same order as
// List.
func (idx *Index) Names() []string {
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// HasPrefix reports whether any indexed name equals prefix or has it as a
// dotted ("prefix.") or indexed ("prefix[") prefix.
func (idx *Index) HasPrefix(prefix string) bool {
	for _, name := range idx.order {
		if name == prefix || strings.HasPrefix(name, prefix+".") || strings.HasPrefix(name, prefix+"[") {
			return true
		}
	}
	return false
}
