// Package ident implements the identifier and path model (spec.md C1):
// canonical task names, project IDs, and FQDNs. Canonicalization happens
// once, at the boundary between the source model and the dependency
// graph, so every later layer can compare identifiers by equality.
package ident

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cuenv/cuenv/pkg/logger"
)

var log = logger.New("ident")

// ReservedPrefix is the task-name prefix reserved for synthetic tasks; user
// task names that start with it are rejected (spec.md §9: "a stricter implementation
// would reject user task names starting with __cuenv_" — this port takes
// that stricter reading; see DESIGN.md Open Question 2).
const ReservedPrefix = "__cuenv_"

// Normalize replaces every ':' with '.' and rejects empty dotted segments.
func Normalize(name string) (string, error) {
	normalized := strings.ReplaceAll(name, ":", ".")
	for _, segment := range strings.Split(normalized, ".") {
		if segment == "" {
			return "", fmt.Errorf("ident: empty segment in task name %q", name)
		}
	}
	return normalized, nil
}

// CanonicalizeDep resolves a raw dependency name relative to its parent
// task's namespace. If dep already looks qualified (contains '.' or ':'),
// it is normalized and returned as-is; otherwise it is interpreted as a
// sibling within the parent's namespace (all dotted segments of the
// parent except the last).
func CanonicalizeDep(dep, parentTask string) (string, error) {
	if strings.ContainsAny(dep, ".:") {
		return Normalize(dep)
	}

	parent, err := Normalize(parentTask)
	if err != nil {
		return "", err
	}

	segments := strings.Split(parent, ".")
	if len(segments) <= 1 {
		return Normalize(dep)
	}

	namespace := strings.Join(segments[:len(segments)-1], ".")
	return Normalize(namespace + "." + dep)
}

// ProjectID derives a stable string identifier for a project within a
// module: the trimmed manifest name if non-empty, otherwise
// "path.<relpath-with-separators-dotted>".
func ProjectID(manifestName, projectRoot, moduleRoot string) (string, error) {
	if name := strings.TrimSpace(manifestName); name != "" {
		return name, nil
	}

	rel, err := filepath.Rel(moduleRoot, projectRoot)
	if err != nil {
		return "", fmt.Errorf("ident: project root %q not under module root %q: %w", projectRoot, moduleRoot, err)
	}
	rel = filepath.ToSlash(rel)
	dotted := strings.ReplaceAll(rel, "/", ".")
	return "path." + dotted, nil
}

// Disambiguate resolves a ProjectID collision: first by appending the
// relative path, then — if that still collides — by appending an
// incrementing integer. seen tracks IDs already assigned in this module
// and is mutated to record the returned ID.
func Disambiguate(id, projectRoot, moduleRoot string, seen map[string]struct{}) string {
	if _, taken := seen[id]; !taken {
		seen[id] = struct{}{}
		return id
	}

	rel, err := filepath.Rel(moduleRoot, projectRoot)
	candidate := id
	if err == nil {
		candidate = id + "." + strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
	}

	if _, taken := seen[candidate]; !taken {
		log.Printf("disambiguated project id %q -> %q via path suffix", id, candidate)
		seen[candidate] = struct{}{}
		return candidate
	}

	for i := 2; ; i++ {
		next := fmt.Sprintf("%s.%d", candidate, i)
		if _, taken := seen[next]; !taken {
			log.Printf("disambiguated project id %q -> %q via integer suffix", id, next)
			seen[next] = struct{}{}
			return next
		}
	}
}

// FQDN is the canonical identity used in the global registry and graph:
// "task:<project-id>:<dotted-task-name>".
func FQDN(projectID, taskName string) (string, error) {
	normalized, err := Normalize(taskName)
	if err != nil {
		return "", err
	}
	return "task:" + projectID + ":" + normalized, nil
}

// IsReserved reports whether name starts with the synthetic-task prefix.
func IsReserved(name string) bool {
	return strings.HasPrefix(name, ReservedPrefix)
}
