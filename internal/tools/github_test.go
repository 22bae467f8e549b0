package tools

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHubProviderResolveRejectsMalformedRepoSlug(t *testing.T) {
	p, err := NewGitHubProvider()
	require.NoError(t, err)

	_, err = p.Resolve("jq", "1.7.1", Platform{OS: "linux", Arch: "x86_64"}, map[string]any{
		"repo":  "not-a-slug",
		"asset": "jq-{os}-{arch}",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner/repo slug")
}

func TestGitHubProviderResolveRequiresRepoAndAsset(t *testing.T) {
	p, err := NewGitHubProvider()
	require.NoError(t, err)

	_, err = p.Resolve("jq", "1.7.1", Platform{OS: "linux", Arch: "x86_64"}, map[string]any{})
	assert.Error(t, err)
}

func TestBuildAPIErrorAddsAuthHintOnUnauthenticatedForbidden(t *testing.T) {
	p, err := NewGitHubProvider()
	require.NoError(t, err)

	resp := &http.Response{StatusCode: http.StatusForbidden, Header: http.Header{}}
	apiErr := p.buildAPIError(resp, "release a/b v1", false, []byte("Bad credentials: authentication required"))
	assert.Contains(t, apiErr.Error(), "GITHUB_TOKEN or GH_TOKEN")
}

func TestBuildAPIErrorOmitsAuthHintWhenAlreadyAuthenticated(t *testing.T) {
	p, err := NewGitHubProvider()
	require.NoError(t, err)

	resp := &http.Response{StatusCode: http.StatusForbidden, Header: http.Header{}}
	apiErr := p.buildAPIError(resp, "release a/b v1", true, []byte("Bad credentials: authentication required"))
	assert.NotContains(t, apiErr.Error(), "GITHUB_TOKEN or GH_TOKEN")
}
