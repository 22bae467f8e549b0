package tools

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTemplate(t *testing.T) {
	platform := Platform{OS: OSDarwin, Arch: ArchARM64}
	assert.Equal(t, "bun-darwin-aarch64.zip", expandTemplate("bun-{os}-{arch}.zip", "1.0.0", platform))
	assert.Equal(t, "v1.0.0", expandTemplate("v{version}", "1.0.0", platform))
}

func TestExpandTemplateLinuxX8664(t *testing.T) {
	platform := Platform{OS: OSLinux, Arch: ArchX8664}
	assert.Equal(t, "linux-x86_64", expandTemplate("{os}-{arch}", "1.0.0", platform))
}

func TestToolCacheDir(t *testing.T) {
	dir := t.TempDir()
	opts := Options{CacheDir: dir}
	cacheDir := toolCacheDir(opts, "github", "mytool", "1.2.3")
	assert.True(t, filepath.IsAbs(cacheDir))
	assert.Equal(t, filepath.Join(dir, "github", "mytool", "1.2.3"), cacheDir)
}

func TestExtractBinaryRawBinary(t *testing.T) {
	dest := t.TempDir()
	path, err := extractBinary([]byte("#!/bin/sh\necho hi\n"), "mytool", "", dest)
	require.NoError(t, err)
	assert.FileExists(t, path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111)
}

func TestExtractBinaryStripsExtension(t *testing.T) {
	dest := t.TempDir()
	path, err := extractBinary([]byte("data"), "tool.exe", "", dest)
	require.NoError(t, err)
	assert.Equal(t, "tool", filepath.Base(path))
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractZipWholeTree(t *testing.T) {
	data := buildZip(t, map[string]string{"bin/tool": "binary-data", "lib/libtool.so": "lib-data"})
	dest := filepath.Join(t.TempDir(), "extracted")

	path, err := extractBinary(data, "tool.zip", "", dest)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.FileExists(t, filepath.Join(dest, "lib", "libtool.so"))
	assert.NoDirExists(t, atomicExtractDir(dest))
}

func TestExtractZipSpecificPath(t *testing.T) {
	data := buildZip(t, map[string]string{"pkg/bin/tool": "binary-data"})
	dest := t.TempDir()

	path, err := extractBinary(data, "tool.zip", "pkg/bin/tool", dest)
	require.NoError(t, err)
	assert.Equal(t, "tool", filepath.Base(path))
}

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o755, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestExtractTarGzWholeTree(t *testing.T) {
	data := buildTarGz(t, map[string]string{"bin/tool": "binary-data"})
	dest := filepath.Join(t.TempDir(), "extracted")

	path, err := extractBinary(data, "tool.tar.gz", "", dest)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestFindMainBinaryPrefersBinDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "tool"), []byte("x"), 0o755))

	path, err := findMainBinary(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bin", "tool"), path)
}

func TestFindMainBinaryEmptyDirErrors(t *testing.T) {
	_, err := findMainBinary(t.TempDir())
	assert.Error(t, err)
}

func TestRegistryDispatchesByKind(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	p, err := reg.providerFor(Source{Kind: SourceHomebrew})
	require.NoError(t, err)
	assert.Equal(t, "homebrew", p.Name())

	p, err = reg.providerFor(Source{Kind: SourceNix})
	require.NoError(t, err)
	assert.Equal(t, "nix", p.Name())
}

func TestHostPlatformProducesKnownValues(t *testing.T) {
	p := HostPlatform()
	assert.Contains(t, []OS{OSDarwin, OSLinux}, p.OS)
	assert.Contains(t, []Arch{ArchARM64, ArchX8664}, p.Arch)
}
