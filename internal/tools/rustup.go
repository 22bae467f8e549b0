package tools

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RustupProvider provisions toolchains via a local rustup installation
// rather than fetching an artifact into the shared cache — the cache entry
// records the toolchain's bin directory inside rustup's own home.
type RustupProvider struct{}

func NewRustupProvider() *RustupProvider { return &RustupProvider{} }

func (p *RustupProvider) Name() string { return "rustup" }

func (p *RustupProvider) CanHandle(source Source) bool { return source.Kind == SourceRustup }

func (p *RustupProvider) Resolve(toolName, version string, platform Platform, config map[string]any) (ResolvedTool, error) {
	toolchain, _ := config["toolchain"].(string)
	if toolchain == "" {
		toolchain = version
	}
	profile, _ := config["profile"].(string)
	components := stringSlice(config["components"])
	targets := stringSlice(config["targets"])

	return ResolvedTool{
		Name:     toolName,
		Version:  version,
		Platform: platform,
		Source: Source{
			Kind:       SourceRustup,
			Toolchain:  toolchain,
			Profile:    profile,
			Components: components,
			Targets:    targets,
		},
	}, nil
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Fetch installs the toolchain (and any requested components/targets) via
// `rustup toolchain install`, idempotent if already installed.
func (p *RustupProvider) Fetch(resolved ResolvedTool, opts Options) (FetchedTool, error) {
	if resolved.Source.Kind != SourceRustup {
		return FetchedTool{}, fmt.Errorf("tools: rustup provider received non-rustup source")
	}
	src := resolved.Source

	args := []string{"toolchain", "install", src.Toolchain}
	if src.Profile != "" {
		args = append(args, "--profile", src.Profile)
	}
	for _, c := range src.Components {
		args = append(args, "--component", c)
	}
	for _, t := range src.Targets {
		args = append(args, "--target", t)
	}

	cmd := exec.Command("rustup", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return FetchedTool{}, fmt.Errorf("tools: rustup toolchain install %s: %w: %s", src.Toolchain, err, out)
	}

	binDir, err := p.toolchainBinDir(src.Toolchain)
	if err != nil {
		return FetchedTool{}, err
	}
	binaryPath := filepath.Join(binDir, resolved.Name)
	sum, err := sha256File(binaryPath)
	if err != nil {
		return FetchedTool{}, err
	}
	return FetchedTool{Name: resolved.Name, BinaryPath: binaryPath, SHA256: sum}, nil
}

func (p *RustupProvider) toolchainBinDir(toolchain string) (string, error) {
	home := os.Getenv("RUSTUP_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		home = filepath.Join(userHome, ".rustup")
	}
	return filepath.Join(home, "toolchains", toolchain+"-"+hostTriple(), "bin"), nil
}

func hostTriple() string {
	if out, err := exec.Command("rustc", "-vV").Output(); err == nil {
		for _, line := range strings.Split(string(out), "\n") {
			if rest, ok := strings.CutPrefix(line, "host: "); ok {
				return rest
			}
		}
	}
	return "x86_64-unknown-linux-gnu"
}

func (p *RustupProvider) IsCached(resolved ResolvedTool, opts Options) bool {
	binDir, err := p.toolchainBinDir(resolved.Source.Toolchain)
	if err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(binDir, resolved.Name))
	return err == nil && !info.IsDir()
}
