// Package envmodel implements C6: the tagged environment Value type,
// policy-gated access, secret redaction, override layering, and PATH-aware
// command resolution.
package envmodel

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/cuenv/cuenv/pkg/logger"
)

var log = logger.New("envmodel")

// RedactionPlaceholder replaces every resolved secret fragment in displayed
// output.
const RedactionPlaceholder = "***"

// keyPattern is the manifest-boundary validation rule for environment keys.
var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ValidateKey reports whether name is a legal environment variable key.
func ValidateKey(name string) error {
	if !keyPattern.MatchString(name) {
		return fmt.Errorf("envmodel: invalid environment key %q, want %s", name, keyPattern.String())
	}
	return nil
}

// SecretResolver resolves an opaque secret descriptor to its plaintext value.
type SecretResolver interface {
	Resolve(ref model.SecretRef) (string, error)
}

// Table is the global, process-wide redaction table: every resolved secret
// fragment discovered during resolution is registered here so that any
// later rendering — executor output, logs, error messages — can redact it.
// Generalizes pkg/stringutil's pattern-based redaction into exact-fragment
// redaction of values resolved at runtime rather than heuristically-named
// identifiers.
type Table struct {
	mu      sync.RWMutex
	secrets map[string]struct{}
}

// NewTable constructs an empty redaction table.
func NewTable() *Table {
	return &Table{secrets: map[string]struct{}{}}
}

// Register adds a resolved secret fragment to the table. Empty fragments are
// ignored to avoid pathological whole-string redaction.
func (t *Table) Register(value string) {
	if value == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.secrets[value] = struct{}{}
}

// Redact replaces every registered secret fragment found in s with
// RedactionPlaceholder.
func (t *Table) Redact(s string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.secrets) == 0 {
		return s
	}
	// Longest-first avoids a short secret masking part of a longer one that
	// contains it as a substring.
	fragments := make([]string, 0, len(t.secrets))
	for frag := range t.secrets {
		fragments = append(fragments, frag)
	}
	sort.Slice(fragments, func(i, j int) bool { return len(fragments[i]) > len(fragments[j]) })

	out := s
	for _, frag := range fragments {
		out = strings.ReplaceAll(out, frag, RedactionPlaceholder)
	}
	return out
}

// ToStringRedacted renders v for display, replacing any secret content with
// RedactionPlaceholder without needing a resolver.
func ToStringRedacted(v model.Value) string {
	switch v.Kind {
	case model.ValueString:
		return v.Str
	case model.ValueInt:
		return fmt.Sprintf("%d", v.Int)
	case model.ValueBool:
		return fmt.Sprintf("%t", v.Bool)
	case model.ValueSecret:
		return RedactionPlaceholder
	case model.ValueInterpolated:
		var b strings.Builder
		for _, part := range v.Parts {
			if part.Secret != nil {
				b.WriteString(RedactionPlaceholder)
			} else {
				b.WriteString(part.Literal)
			}
		}
		return b.String()
	case model.ValuePolicy:
		if v.Inner != nil {
			return ToStringRedacted(*v.Inner)
		}
		return ""
	default:
		return ""
	}
}

// accessible reports whether v (possibly policy-wrapped) is visible to
// taskName: no policies (or an empty list) means unconditionally accessible;
// otherwise at least one policy must list taskName under AllowTasks.
func accessible(v model.Value, taskName string) bool {
	if v.Kind != model.ValuePolicy || len(v.Policies) == 0 {
		return true
	}
	for _, p := range v.Policies {
		for _, allowed := range p.AllowTasks {
			if allowed == taskName {
				return true
			}
		}
	}
	return false
}

// unwrap strips a ValuePolicy wrapper, if present.
func unwrap(v model.Value) model.Value {
	if v.Kind == model.ValuePolicy && v.Inner != nil {
		return *v.Inner
	}
	return v
}

// ResolveForTask resolves env for taskName: filters out values the task's
// policies forbid, resolves secrets via resolver, and returns both the
// resolved string map and the distinct secret fragments produced (for
// downstream output redaction). Only secret fragments are returned — never
// a full interpolated string that merely contains one.
func ResolveForTask(env map[string]model.Value, taskName string, resolver SecretResolver) (map[string]string, []string, error) {
	resolved := make(map[string]string, len(env))
	var secretValues []string
	seen := map[string]struct{}{}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := env[key]
		if !accessible(v, taskName) {
			log.Printf("dropping %q for task %q: policy denies access", key, taskName)
			continue
		}
		inner := unwrap(v)

		switch inner.Kind {
		case model.ValueString:
			resolved[key] = inner.Str
		case model.ValueInt:
			resolved[key] = fmt.Sprintf("%d", inner.Int)
		case model.ValueBool:
			resolved[key] = fmt.Sprintf("%t", inner.Bool)
		case model.ValueSecret:
			s, err := resolver.Resolve(*inner.Secret)
			if err != nil {
				return nil, nil, fmt.Errorf("envmodel: resolve secret for %q: %w", key, err)
			}
			resolved[key] = s
			if _, dup := seen[s]; !dup {
				seen[s] = struct{}{}
				secretValues = append(secretValues, s)
			}
		case model.ValueInterpolated:
			var b strings.Builder
			for _, part := range inner.Parts {
				if part.Secret != nil {
					s, err := resolver.Resolve(*part.Secret)
					if err != nil {
						return nil, nil, fmt.Errorf("envmodel: resolve secret fragment for %q: %w", key, err)
					}
					b.WriteString(s)
					if _, dup := seen[s]; !dup {
						seen[s] = struct{}{}
						secretValues = append(secretValues, s)
					}
				} else {
					b.WriteString(part.Literal)
				}
			}
			resolved[key] = b.String()
		}
	}
	return resolved, secretValues, nil
}

// AllowsExec reports whether v's policies permit subprocess execution; a
// value with no policies (or an empty list) always allows it.
func AllowsExec(v model.Value) bool {
	if v.Kind != model.ValuePolicy || len(v.Policies) == 0 {
		return true
	}
	for _, p := range v.Policies {
		if p.AllowExec {
			return true
		}
	}
	return false
}

// ForEnvironment computes base ∪ overrides[name]; override entries win on
// key collision.
func ForEnvironment(table model.EnvTable, name string) map[string]model.Value {
	merged := make(map[string]model.Value, len(table.Base))
	for k, v := range table.Base {
		merged[k] = v
	}
	if overrides, ok := table.Environment[name]; ok {
		for k, v := range overrides {
			merged[k] = v
		}
	}
	return merged
}

// ResolveCommand finds the executable for name using overlay-first PATH
// resolution: the overlay's PATH is searched before the inherited system
// PATH; executability is checked via the Unix mode bit where available,
// otherwise plain existence. Absolute paths pass through unchanged.
func ResolveCommand(name string, overlay map[string]string) (string, error) {
	if filepath.IsAbs(name) {
		if isExecutable(name) {
			return name, nil
		}
		return "", fmt.Errorf("envmodel: %q is not executable", name)
	}

	var dirs []string
	if overlayPath, ok := overlay["PATH"]; ok {
		dirs = append(dirs, filepath.SplitList(overlayPath)...)
	}
	dirs = append(dirs, filepath.SplitList(os.Getenv("PATH"))...)

	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("envmodel: %q not found on PATH", name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
