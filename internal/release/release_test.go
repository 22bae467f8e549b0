package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBumpMajor(t *testing.T) {
	v, err := Bump("1.2.3", Major)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v)
}

func TestBumpMinorResetsPatch(t *testing.T) {
	v, err := Bump("1.2.3", Minor)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", v)
}

func TestBumpPatch(t *testing.T) {
	v, err := Bump("1.2.3", Patch)
	require.NoError(t, err)
	assert.Equal(t, "1.2.4", v)
}

func TestBumpDropsExistingPrerelease(t *testing.T) {
	v, err := Bump("1.2.3-rc.4", Patch)
	require.NoError(t, err)
	assert.Equal(t, "1.2.4", v)
}

func TestBumpPrereleaseIncrementsTrailingNumber(t *testing.T) {
	v, err := Bump("1.2.3-rc.1", Prerelease)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3-rc.2", v)
}

func TestBumpPrereleaseSeedsWhenAbsent(t *testing.T) {
	v, err := Bump("1.2.3", Prerelease)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3-rc.1", v)
}

func TestBumpRejectsInvalidVersion(t *testing.T) {
	_, err := Bump("not-a-version", Patch)
	assert.Error(t, err)
}

func TestBumpAcceptsVPrefix(t *testing.T) {
	v, err := Bump("v1.0.0", Minor)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v)
}

func TestMaxPrefersHigherSeverity(t *testing.T) {
	assert.Equal(t, Major, Max(Major, Patch))
	assert.Equal(t, Minor, Max(Patch, Minor))
	assert.Equal(t, Patch, Max(Patch, Prerelease))
}
