package ci

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// IsShallowClone reports whether the current checkout is a shallow clone,
// grounded on original_source's GitHubProvider::is_shallow_clone.
func IsShallowClone() bool {
	out, err := exec.Command("git", "rev-parse", "--is-shallow-repository").Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

// FetchRef shallow-fetches refspec from origin, reporting success. Shallow
// clones (the common case in CI) only hold the tip commit, so diffing
// against an older ref first requires fetching it (original_source's
// GitHubProvider::fetch_ref).
func FetchRef(refspec string) bool {
	return exec.Command("git", "fetch", "--depth=1", "origin", refspec).Run() == nil
}

// ChangedPathsSince returns the paths that differ between baseRef and the
// working tree, fetching baseRef first if the checkout is shallow
// (spec.md §4.10's "changed since last success" contributor-activation
// input).
func ChangedPathsSince(baseRef string) ([]string, error) {
	if IsShallowClone() {
		FetchRef(baseRef)
	}

	var stdout bytes.Buffer
	cmd := exec.Command("git", "diff", "--name-only", baseRef)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ci: git diff against %s: %w", baseRef, err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}
