package ci

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGit puts a fake `git` script on PATH that records its arguments and
// prints a canned response, so these tests don't depend on a real repo.
func stubGit(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub relies on a POSIX shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "git")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestIsShallowCloneTrue(t *testing.T) {
	stubGit(t, `echo true`)
	assert.True(t, IsShallowClone())
}

func TestIsShallowCloneFalse(t *testing.T) {
	stubGit(t, `echo false`)
	assert.False(t, IsShallowClone())
}

func TestIsShallowCloneFalseOnGitFailure(t *testing.T) {
	stubGit(t, `exit 1`)
	assert.False(t, IsShallowClone())
}

func TestFetchRefReportsSuccess(t *testing.T) {
	stubGit(t, `exit 0`)
	assert.True(t, FetchRef("main"))
}

func TestFetchRefReportsFailure(t *testing.T) {
	stubGit(t, `exit 1`)
	assert.False(t, FetchRef("main"))
}

func TestChangedPathsSinceParsesOutput(t *testing.T) {
	stubGit(t, `
if [ "$1" = "rev-parse" ]; then echo false; exit 0; fi
if [ "$1" = "diff" ]; then printf "a.go\nb/c.go\n\n"; exit 0; fi
exit 1
`)
	paths, err := ChangedPathsSince("main")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b/c.go"}, paths)
}

func TestChangedPathsSinceFetchesWhenShallow(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "fetched")
	stubGit(t, `
if [ "$1" = "rev-parse" ]; then echo true; exit 0; fi
if [ "$1" = "fetch" ]; then touch `+marker+`; exit 0; fi
if [ "$1" = "diff" ]; then echo x.go; exit 0; fi
exit 1
`)
	_, err := ChangedPathsSince("main")
	require.NoError(t, err)
	_, statErr := os.Stat(marker)
	assert.NoError(t, statErr, "expected FetchRef to run for a shallow clone")
}

func TestChangedPathsSinceErrorsOnGitFailure(t *testing.T) {
	stubGit(t, `
if [ "$1" = "rev-parse" ]; then echo false; exit 0; fi
exit 1
`)
	_, err := ChangedPathsSince("main")
	assert.Error(t, err)
}
