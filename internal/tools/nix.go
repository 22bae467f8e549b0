package tools

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// NixProvider resolves tools through a local Nix installation, building (or
// fetching from a binary cache) the requested flake output and caching the
// resulting store path's binary.
type NixProvider struct{}

func NewNixProvider() *NixProvider { return &NixProvider{} }

func (p *NixProvider) Name() string { return "nix" }

func (p *NixProvider) CanHandle(source Source) bool { return source.Kind == SourceNix }

func (p *NixProvider) Resolve(toolName, version string, platform Platform, config map[string]any) (ResolvedTool, error) {
	flake, _ := config["flake"].(string)
	if flake == "" {
		return ResolvedTool{}, fmt.Errorf("tools: nix provider: missing %q in config", "flake")
	}
	pkg, _ := config["package"].(string)
	if pkg == "" {
		pkg = toolName
	}
	output, _ := config["output"].(string)

	return ResolvedTool{
		Name:     toolName,
		Version:  version,
		Platform: platform,
		Source:   Source{Kind: SourceNix, Flake: expandTemplate(flake, version, platform), Package: pkg, Output: output},
	}, nil
}

func (p *NixProvider) flakeRef(src Source) string {
	ref := src.Flake + "#" + src.Package
	if src.Output != "" {
		ref += "^" + src.Output
	}
	return ref
}

// Fetch shells out to `nix build --print-out-paths --no-link` and symlinks
// the resolved store path's binary into the cache directory so later
// activation lookups don't depend on the store path surviving GC.
func (p *NixProvider) Fetch(resolved ResolvedTool, opts Options) (FetchedTool, error) {
	if resolved.Source.Kind != SourceNix {
		return FetchedTool{}, fmt.Errorf("tools: nix provider received non-nix source")
	}

	destDir := toolCacheDir(opts, "nix", resolved.Name, resolved.Version)
	binaryPath := filepath.Join(destDir, "bin", resolved.Name)

	if !opts.ForceRefetch {
		if info, err := os.Stat(binaryPath); err == nil && !info.IsDir() {
			sum, err := sha256File(binaryPath)
			if err != nil {
				return FetchedTool{}, err
			}
			return FetchedTool{Name: resolved.Name, BinaryPath: binaryPath, SHA256: sum}, nil
		}
	}

	cmd := exec.Command("nix", "build", "--print-out-paths", "--no-link", p.flakeRef(resolved.Source))
	out, err := cmd.Output()
	if err != nil {
		return FetchedTool{}, fmt.Errorf("tools: nix build %s: %w", p.flakeRef(resolved.Source), err)
	}
	storePath := strings.TrimSpace(strings.Split(string(out), "\n")[0])
	if storePath == "" {
		return FetchedTool{}, fmt.Errorf("tools: nix build produced no output path for %s", p.flakeRef(resolved.Source))
	}

	if err := os.MkdirAll(filepath.Dir(binaryPath), 0o755); err != nil {
		return FetchedTool{}, err
	}
	storeBinary := filepath.Join(storePath, "bin", resolved.Name)
	_ = os.Remove(binaryPath)
	if err := os.Symlink(storeBinary, binaryPath); err != nil {
		return FetchedTool{}, fmt.Errorf("tools: link nix store path: %w", err)
	}

	sum, err := sha256File(storeBinary)
	if err != nil {
		return FetchedTool{}, err
	}
	return FetchedTool{Name: resolved.Name, BinaryPath: binaryPath, SHA256: sum}, nil
}

func (p *NixProvider) IsCached(resolved ResolvedTool, opts Options) bool {
	binaryPath := filepath.Join(toolCacheDir(opts, "nix", resolved.Name, resolved.Version), "bin", resolved.Name)
	info, err := os.Lstat(binaryPath)
	return err == nil && (info.Mode()&os.ModeSymlink != 0 || !info.IsDir())
}
