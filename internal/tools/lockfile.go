package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cuenv/cuenv/pkg/gitutil"
	"github.com/cuenv/cuenv/pkg/parser"
	"gopkg.in/yaml.v3"
)

// LockedArtifact is one entry in a lockfile: a provisioned tool pinned to an
// exact version with a per-platform content digest.
type LockedArtifact struct {
	Name    string                `yaml:"name"`
	Version string                `yaml:"version"`
	Source  LockedSource          `yaml:"source"`
	Digests map[string]string     `yaml:"digests"` // "darwin/aarch64" -> sha256
	Config  map[string]any        `yaml:"config,omitempty"`
}

// LockedSource names which provider kind produced the artifact; the
// provider-specific fields live in Config.
type LockedSource struct {
	Kind string `yaml:"kind"`
}

// Lockfile is the on-disk artifact manifest consumed by `runtime oci
// activate`.
type Lockfile struct {
	Version   int               `yaml:"version"`
	Artifacts []LockedArtifact  `yaml:"artifacts"`
}

// ParseLockfile decodes a lockfile's YAML body.
func ParseLockfile(data []byte) (*Lockfile, error) {
	var lock Lockfile
	if err := yaml.Unmarshal(data, &lock); err != nil {
		if line, _, message := parser.ExtractYAMLError(err, 0); line > 0 && message != "" {
			return nil, fmt.Errorf("tools: parse lockfile: line %d: %s", line, message)
		}
		return nil, fmt.Errorf("tools: parse lockfile: %w", err)
	}

	for _, artifact := range lock.Artifacts {
		for platformKey, digest := range artifact.Digests {
			if !gitutil.IsHexString(digest) {
				return nil, fmt.Errorf("tools: parse lockfile: %s: digest for %s is not a valid hex string", artifact.Name, platformKey)
			}
		}
	}

	return &lock, nil
}

// LoadLockfile reads and parses the lockfile at path.
func LoadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tools: read lockfile %s: %w", path, err)
	}
	return ParseLockfile(data)
}

func sourceKindFromString(s string) SourceKind {
	switch s {
	case "oci":
		return SourceOci
	case "homebrew":
		return SourceHomebrew
	case "nix":
		return SourceNix
	case "rustup":
		return SourceRustup
	default:
		return SourceGitHub
	}
}

// ActivationResult accumulates the directories activation must expose, plus
// the platform-filtered artifacts it ensured were cached.
type ActivationResult struct {
	BinDirs []string
	LibDirs []string
}

// Activate ensures every lockfile artifact applicable to platform is
// cached (fetching any missing ones), then accumulates their bin/lib
// directories in lockfile declaration order.
func Activate(lock *Lockfile, registry *Registry, platform Platform, opts Options) (*ActivationResult, error) {
	result := &ActivationResult{}
	platformKey := platform.String()

	for _, artifact := range lock.Artifacts {
		if _, ok := artifact.Digests[platformKey]; !ok {
			continue
		}

		resolved := ResolvedTool{
			Name:     artifact.Name,
			Version:  artifact.Version,
			Platform: platform,
			Source:   sourceFromConfig(artifact, platform),
		}

		fetched, err := registry.Fetch(resolved, opts)
		if err != nil {
			return nil, fmt.Errorf("tools: activate %s@%s: %w", artifact.Name, artifact.Version, err)
		}

		dir := filepath.Dir(fetched.BinaryPath)
		base := filepath.Base(dir)
		if base == "bin" {
			result.BinDirs = append(result.BinDirs, dir)
			libDir := filepath.Join(filepath.Dir(dir), "lib")
			if info, err := os.Stat(libDir); err == nil && info.IsDir() {
				result.LibDirs = append(result.LibDirs, libDir)
			}
		} else {
			result.BinDirs = append(result.BinDirs, dir)
		}
	}
	return result, nil
}

func sourceFromConfig(artifact LockedArtifact, platform Platform) Source {
	kind := sourceKindFromString(artifact.Source.Kind)
	switch kind {
	case SourceHomebrew:
		name, _ := artifact.Config["name"].(string)
		if name == "" {
			name = artifact.Name
		}
		return Source{Kind: SourceHomebrew, Formula: name, Version: artifact.Version}
	case SourceOci:
		image, _ := artifact.Config["image"].(string)
		path, _ := artifact.Config["path"].(string)
		return Source{Kind: SourceOci, Image: expandTemplate(image, artifact.Version, platform), Path: expandTemplate(path, artifact.Version, platform)}
	case SourceGitHub:
		repo, _ := artifact.Config["repo"].(string)
		tag, _ := artifact.Config["tag"].(string)
		asset, _ := artifact.Config["asset"].(string)
		path, _ := artifact.Config["path"].(string)
		return Source{
			Kind:  SourceGitHub,
			Repo:  repo,
			Tag:   expandTemplate(tag, artifact.Version, platform),
			Asset: expandTemplate(asset, artifact.Version, platform),
			Path:  expandTemplate(path, artifact.Version, platform),
		}
	default:
		return Source{Kind: kind}
	}
}

// libPathEnvVar is DYLD_LIBRARY_PATH on macOS, LD_LIBRARY_PATH elsewhere.
func libPathEnvVar(platform Platform) string {
	if platform.OS == OSDarwin {
		return "DYLD_LIBRARY_PATH"
	}
	return "LD_LIBRARY_PATH"
}

// ShellActivationLines renders result as POSIX-shell export statements.
// Library paths are emitted before PATH so dynamic loaders resolve
// dependencies before the binaries that need them are invoked.
func ShellActivationLines(result *ActivationResult, platform Platform) []string {
	var lines []string

	if len(result.LibDirs) > 0 {
		dirs := dedupPreserveOrder(result.LibDirs)
		lines = append(lines, fmt.Sprintf("export %s=%q:$%s", libPathEnvVar(platform), joinPaths(dirs), libPathEnvVar(platform)))
	}
	if len(result.BinDirs) > 0 {
		dirs := dedupPreserveOrder(result.BinDirs)
		lines = append(lines, fmt.Sprintf("export PATH=%q:$PATH", joinPaths(dirs)))
	}
	return lines
}

func joinPaths(dirs []string) string {
	out := ""
	for i, d := range dirs {
		if i > 0 {
			out += ":"
		}
		out += d
	}
	return out
}

func dedupPreserveOrder(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Formulas returns a map from each Homebrew formula name declared in the
// lockfile to its pinned version, used to build the
// HomebrewProvider.Dependencies graph for inter-bottle reference patching.
func (l *Lockfile) Formulas() map[string]string {
	out := map[string]string{}
	for _, a := range l.Artifacts {
		if sourceKindFromString(a.Source.Kind) == SourceHomebrew {
			out[a.Name] = a.Version
		}
	}
	return out
}

// ArtifactNames returns the sorted artifact names in the lockfile.
func (l *Lockfile) ArtifactNames() []string {
	names := make([]string, 0, len(l.Artifacts))
	for _, a := range l.Artifacts {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}
