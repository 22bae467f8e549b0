// Package tools implements C9: tool provisioning. It resolves a requested
// (tool, version, platform) tuple against a tagged provider source, fetches
// and caches the artifact, and computes the shell-sourceable activation
// lines a lockfile-driven runtime environment needs.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cuenv/cuenv/pkg/logger"
)

var log = logger.New("tools")

// OS is a recognized target operating system.
type OS string

const (
	OSDarwin OS = "darwin"
	OSLinux  OS = "linux"
)

// Arch is a recognized target CPU architecture.
type Arch string

const (
	ArchARM64 Arch = "aarch64"
	ArchX8664 Arch = "x86_64"
)

// Platform is the (os, arch) pair a tool is being resolved for.
type Platform struct {
	OS   OS
	Arch Arch
}

func (p Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.Arch)
}

// HostPlatform returns the platform of the process running this code.
func HostPlatform() Platform {
	osName := OSLinux
	if runtime.GOOS == "darwin" {
		osName = OSDarwin
	}
	archName := ArchX8664
	if runtime.GOARCH == "arm64" {
		archName = ArchARM64
	}
	return Platform{OS: osName, Arch: archName}
}

// SourceKind tags which provider variant a Source carries.
type SourceKind int

const (
	SourceGitHub SourceKind = iota
	SourceOci
	SourceHomebrew
	SourceNix
	SourceRustup
)

// Source is a tagged union over the five provider variants spec.md §4.10
// names. Exactly the fields relevant to Kind are populated.
type Source struct {
	Kind SourceKind

	// GitHub
	Repo  string
	Tag   string
	Asset string
	Path  string // optional, archive-internal path to the binary

	// Oci
	Image string
	// Path is reused for the in-image binary path.

	// Homebrew
	Formula string
	Version string

	// Nix
	Flake   string
	Package string
	Output  string

	// Rustup
	Toolchain  string
	Profile    string
	Components []string
	Targets    []string
}

// ResolvedTool is the outcome of resolving a named tool request against a
// provider: a concrete, platform-specific Source ready to fetch.
type ResolvedTool struct {
	Name     string
	Version  string
	Platform Platform
	Source   Source
}

// FetchedTool is the outcome of a successful fetch: the on-disk binary path
// plus a content digest for cache validation.
type FetchedTool struct {
	Name       string
	BinaryPath string
	SHA256     string
}

// Options configures resolution and fetch behavior.
type Options struct {
	CacheDir     string
	ForceRefetch bool
	GitHubToken  string
}

func (o Options) cacheRoot() string {
	if o.CacheDir != "" {
		return o.CacheDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "cuenv", "tools")
	}
	return filepath.Join(home, ".cache", "cuenv", "tools")
}

// Provider resolves and fetches tools for the Source variants it advertises
// via CanHandle.
type Provider interface {
	Name() string
	CanHandle(source Source) bool
	Resolve(toolName, version string, platform Platform, config map[string]any) (ResolvedTool, error)
	Fetch(resolved ResolvedTool, opts Options) (FetchedTool, error)
	IsCached(resolved ResolvedTool, opts Options) bool
}

// expandTemplate replaces the three recognized placeholders in template with
// the concrete values for version and platform.
func expandTemplate(template, version string, platform Platform) string {
	r := strings.NewReplacer(
		"{version}", version,
		"{os}", string(platform.OS),
		"{arch}", string(platform.Arch),
	)
	return r.Replace(template)
}

// toolCacheDir returns <cache>/<provider>/<name>/<version>.
func toolCacheDir(opts Options, provider, name, version string) string {
	return filepath.Join(opts.cacheRoot(), provider, name, version)
}

// markExecutable sets the Unix executable bits (mode ≥ 0o755) on path.
func markExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm() | 0o755
	return os.Chmod(path, mode)
}

// atomicExtractDir returns the sibling temp directory used for atomic
// archive extraction: .<name>.tmp next to dest.
func atomicExtractDir(dest string) string {
	return filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp")
}

// finalizeExtraction removes any existing dest, renames tmp into place, and
// removes tmp on failure so no partial state is left behind.
func finalizeExtraction(tmp, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			_ = os.RemoveAll(tmp)
			return err
		}
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("tools: finalize extraction: %w", err)
	}
	return nil
}

func abortExtraction(tmp string, cause error) error {
	_ = os.RemoveAll(tmp)
	log.Printf("extraction aborted, removed %s: %v", tmp, cause)
	return cause
}
