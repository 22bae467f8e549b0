// Package release implements the version-arithmetic subset of release
// tooling: computing the next semantic version for a bump kind. Changeset
// file generation and publishing are out of scope.
package release

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind is a semantic-version bump category.
type Kind string

const (
	Major      Kind = "major"
	Minor      Kind = "minor"
	Patch      Kind = "patch"
	Prerelease Kind = "prerelease"
)

var semverPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z.-]+))?$`)

// version is a parsed semantic version: major.minor.patch[-prerelease].
type version struct {
	major, minor, patch int
	prerelease          string
}

func parseVersion(s string) (version, error) {
	m := semverPattern.FindStringSubmatch(s)
	if m == nil {
		return version{}, fmt.Errorf("release: %q is not a valid semantic version", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return version{major: major, minor: minor, patch: patch, prerelease: m[4]}, nil
}

func (v version) String() string {
	base := fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
	if v.prerelease != "" {
		return base + "-" + v.prerelease
	}
	return base
}

// Bump computes the next version string for current given a bump kind.
// Major/minor/patch reset all lower components and drop any prerelease
// suffix. Prerelease increments the trailing numeric field of the existing
// prerelease identifier (default "rc.1" if current carries none).
func Bump(current string, kind Kind) (string, error) {
	v, err := parseVersion(current)
	if err != nil {
		return "", err
	}

	switch kind {
	case Major:
		v.major++
		v.minor = 0
		v.patch = 0
		v.prerelease = ""
	case Minor:
		v.minor++
		v.patch = 0
		v.prerelease = ""
	case Patch:
		v.patch++
		v.prerelease = ""
	case Prerelease:
		v.prerelease = nextPrerelease(v.prerelease)
	default:
		return "", fmt.Errorf("release: unknown bump kind %q", kind)
	}
	return v.String(), nil
}

// nextPrerelease increments the trailing numeric dot-component of a
// prerelease identifier, e.g. "rc.1" -> "rc.2", or seeds "rc.1" if absent.
func nextPrerelease(current string) string {
	if current == "" {
		return "rc.1"
	}
	parts := strings.Split(current, ".")
	last := parts[len(parts)-1]
	n, err := strconv.Atoi(last)
	if err != nil {
		return current + ".1"
	}
	parts[len(parts)-1] = strconv.Itoa(n + 1)
	return strings.Join(parts, ".")
}

// Max returns the higher-priority of two bump kinds, using the ordering
// Major > Minor > Patch > Prerelease, matching the "largest bump wins"
// aggregation rule release tooling applies across multiple change entries.
func Max(a, b Kind) Kind {
	rank := map[Kind]int{Major: 3, Minor: 2, Patch: 1, Prerelease: 0}
	if rank[a] >= rank[b] {
		return a
	}
	return b
}
