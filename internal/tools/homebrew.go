package tools

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// HomebrewProvider fetches Homebrew "bottles" — prebuilt OCI-packaged
// formula archives — and relocates their hardcoded Cellar paths into the
// per-formula cache directory.
type HomebrewProvider struct {
	oci *OciProvider
	// Dependencies maps each formula a bottle may reference to its pinned
	// version, driving inter-bottle reference patching. Populated from
	// lockfile-declared versions by the activation path.
	Dependencies map[string]string
}

// NewHomebrewProvider constructs a provider backed by the OCI pull path
// (Homebrew bottles are distributed as OCI images on ghcr.io).
func NewHomebrewProvider() *HomebrewProvider {
	return &HomebrewProvider{oci: NewOciProvider(), Dependencies: map[string]string{}}
}

func (p *HomebrewProvider) Name() string { return "homebrew" }

func (p *HomebrewProvider) CanHandle(source Source) bool { return source.Kind == SourceHomebrew }

func (p *HomebrewProvider) Resolve(toolName, version string, platform Platform, config map[string]any) (ResolvedTool, error) {
	name, _ := config["name"].(string)
	if name == "" {
		name = toolName
	}
	return ResolvedTool{
		Name:     toolName,
		Version:  version,
		Platform: platform,
		Source:   Source{Kind: SourceHomebrew, Formula: name, Version: version},
	}, nil
}

// bottleTag maps this package's platform naming onto Homebrew's bottle tag
// convention (e.g. arm64_sonoma, x86_64_linux). A coarse mapping suffices
// since bottles are selected per-OS/arch, not per-OS-version.
func bottleTag(platform Platform) string {
	switch {
	case platform.OS == OSDarwin && platform.Arch == ArchARM64:
		return "arm64_sonoma"
	case platform.OS == OSDarwin:
		return "sonoma"
	default:
		return string(platform.Arch) + "_linux"
	}
}

// Fetch pulls the bottle image, extracts its tree preserving bin/ and lib/,
// and relocates the placeholder Cellar install paths baked into binaries
// and pkg-config/library metadata.
func (p *HomebrewProvider) Fetch(resolved ResolvedTool, opts Options) (FetchedTool, error) {
	if resolved.Source.Kind != SourceHomebrew {
		return FetchedTool{}, fmt.Errorf("tools: homebrew provider received non-homebrew source")
	}
	formula := resolved.Source.Formula
	version := resolved.Source.Version

	destDir := toolCacheDir(opts, "homebrew", formula, version)
	binaryPath := filepath.Join(destDir, "bin", formula)

	if !opts.ForceRefetch {
		if info, err := os.Stat(binaryPath); err == nil && !info.IsDir() {
			sum, err := sha256File(binaryPath)
			if err != nil {
				return FetchedTool{}, err
			}
			return FetchedTool{Name: formula, BinaryPath: binaryPath, SHA256: sum}, nil
		}
	}

	image := fmt.Sprintf("ghcr.io/homebrew/core/%s:%s", formula, version+"."+bottleTag(resolved.Platform))
	registry, repo, ref := splitImageRef(image)
	digest, err := p.oci.resolveDigest(registry, repo, ref)
	if err != nil {
		return FetchedTool{}, fmt.Errorf("tools: resolve homebrew bottle %s@%s: %w", formula, version, err)
	}
	layer, err := p.oci.pullFlattenedLayer(registry, repo, digest)
	if err != nil {
		return FetchedTool{}, err
	}

	tmp := atomicExtractDir(destDir)
	if err := os.RemoveAll(tmp); err != nil {
		return FetchedTool{}, err
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return FetchedTool{}, err
	}
	if err := extractTarGzAll(layer, tmp); err != nil {
		return FetchedTool{}, abortExtraction(tmp, err)
	}

	if err := p.relocate(tmp, formula, version, destDir); err != nil {
		return FetchedTool{}, abortExtraction(tmp, err)
	}

	if err := finalizeExtraction(tmp, destDir); err != nil {
		return FetchedTool{}, err
	}

	if _, err := os.Stat(binaryPath); err != nil {
		return FetchedTool{}, fmt.Errorf("tools: homebrew bottle %s@%s has no bin/%s", formula, version, formula)
	}
	if err := markExecutable(binaryPath); err != nil {
		return FetchedTool{}, err
	}

	sum, err := sha256File(binaryPath)
	if err != nil {
		return FetchedTool{}, err
	}
	return FetchedTool{Name: formula, BinaryPath: binaryPath, SHA256: sum}, nil
}

// relocate rewrites the bottle's baked-in Cellar placeholder paths to point
// at destDir, and patches references to any dependency formula whose
// installed location is known (from p.Dependencies, lockfile-derived) so
// that dynamic loaders resolve inter-bottle links correctly.
func (p *HomebrewProvider) relocate(tree, formula, version, destDir string) error {
	placeholder := []byte(fmt.Sprintf("/opt/homebrew/Cellar/%s/%s", formula, version))
	replacement := []byte(destDir)

	return filepath.Walk(tree, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !bytes.Contains(data, placeholder) && len(p.Dependencies) == 0 {
			return nil
		}

		patched := bytes.ReplaceAll(data, placeholder, replacement)
		for dep, depVersion := range p.Dependencies {
			depPlaceholder := []byte(fmt.Sprintf("/opt/homebrew/Cellar/%s/%s", dep, depVersion))
			if !bytes.Contains(patched, depPlaceholder) {
				continue
			}
			depDest := []byte(toolCacheDir(Options{}, "homebrew", dep, depVersion))
			patched = bytes.ReplaceAll(patched, depPlaceholder, depDest)
		}
		if bytes.Equal(patched, data) {
			return nil
		}
		return os.WriteFile(path, patched, info.Mode())
	})
}

func (p *HomebrewProvider) IsCached(resolved ResolvedTool, opts Options) bool {
	binaryPath := filepath.Join(toolCacheDir(opts, "homebrew", resolved.Source.Formula, resolved.Source.Version), "bin", resolved.Source.Formula)
	info, err := os.Stat(binaryPath)
	return err == nil && !info.IsDir()
}
