package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLockfile = `
version: 1
artifacts:
  - name: jq
    version: 1.7.1
    source:
      kind: homebrew
    config:
      name: jq
    digests:
      darwin/aarch64: deadbeef
      linux/x86_64: cafebabe
`

func TestParseLockfile(t *testing.T) {
	lock, err := ParseLockfile([]byte(testLockfile))
	require.NoError(t, err)
	require.Len(t, lock.Artifacts, 1)
	assert.Equal(t, "jq", lock.Artifacts[0].Name)
	assert.Equal(t, "homebrew", lock.Artifacts[0].Source.Kind)
}

func TestLockfileFormulas(t *testing.T) {
	lock, err := ParseLockfile([]byte(testLockfile))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"jq": "1.7.1"}, lock.Formulas())
}

func TestParseLockfileReportsLineOnMalformedYAML(t *testing.T) {
	_, err := ParseLockfile([]byte("version: 1\nartifacts: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tools: parse lockfile")
}

func TestParseLockfileRejectsNonHexDigest(t *testing.T) {
	const lockfile = `
version: 1
artifacts:
  - name: jq
    version: 1.7.1
    source:
      kind: homebrew
    digests:
      darwin/aarch64: not-hex!
`
	_, err := ParseLockfile([]byte(lockfile))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid hex string")
}

// fakeProvider lets activation tests avoid any network access.
type fakeProvider struct {
	kind    SourceKind
	binDirs map[string]string // name -> cache dir
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) CanHandle(source Source) bool { return source.Kind == f.kind }
func (f *fakeProvider) Resolve(name, version string, platform Platform, config map[string]any) (ResolvedTool, error) {
	return ResolvedTool{Name: name, Version: version, Platform: platform, Source: Source{Kind: f.kind}}, nil
}
func (f *fakeProvider) Fetch(resolved ResolvedTool, opts Options) (FetchedTool, error) {
	dir, ok := f.binDirs[resolved.Name]
	if !ok {
		return FetchedTool{}, fmt.Errorf("fakeProvider: no fixture dir for %q", resolved.Name)
	}
	binPath := filepath.Join(dir, "bin", resolved.Name)
	if err := os.MkdirAll(filepath.Dir(binPath), 0o755); err != nil {
		return FetchedTool{}, err
	}
	if err := os.WriteFile(binPath, []byte("x"), 0o755); err != nil {
		return FetchedTool{}, err
	}
	return FetchedTool{Name: resolved.Name, BinaryPath: binPath, SHA256: "x"}, nil
}
func (f *fakeProvider) IsCached(resolved ResolvedTool, opts Options) bool { return false }

func TestActivateEmitsLibBeforePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))

	registry := &Registry{providers: []Provider{&fakeProvider{kind: SourceHomebrew, binDirs: map[string]string{"jq": dir}}}}
	lock, err := ParseLockfile([]byte(testLockfile))
	require.NoError(t, err)

	platform := Platform{OS: OSDarwin, Arch: ArchARM64}
	result, err := Activate(lock, registry, platform, Options{CacheDir: t.TempDir()})
	require.NoError(t, err)

	require.Len(t, result.BinDirs, 1)
	require.Len(t, result.LibDirs, 1)

	lines := ShellActivationLines(result, platform)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "DYLD_LIBRARY_PATH")
	assert.Contains(t, lines[1], "PATH")
}

func TestActivateSkipsArtifactsWithoutPlatformDigest(t *testing.T) {
	registry := &Registry{providers: []Provider{&fakeProvider{kind: SourceHomebrew}}}
	lock, err := ParseLockfile([]byte(testLockfile))
	require.NoError(t, err)

	platform := Platform{OS: OSLinux, Arch: ArchARM64} // no digest for linux/aarch64
	result, err := Activate(lock, registry, platform, Options{CacheDir: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, result.BinDirs)
}

func TestRateLimitErrorMessage(t *testing.T) {
	err := &RateLimitError{Resource: "release a/b v1", ResetAt: time.Unix(0, 0).UTC(), Authenticated: false}
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.Contains(t, err.Error(), "GITHUB_TOKEN")
}

func TestEffectiveTokenPrefersGithubToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "gh-token")
	t.Setenv("GH_TOKEN", "other-token")
	assert.Equal(t, "gh-token", effectiveToken("runtime-token"))
}

func TestEffectiveTokenFallsBackToRuntime(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
	assert.Equal(t, "runtime-token", effectiveToken("runtime-token"))
}
