package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	gogh "github.com/cli/go-gh/v2/pkg/api"
	"github.com/cuenv/cuenv/pkg/gitutil"
	"github.com/cuenv/cuenv/pkg/httputil"
	"github.com/cuenv/cuenv/pkg/ratelimit"
	"github.com/cuenv/cuenv/pkg/repoutil"
)

// RateLimitError reports a GitHub API rate-limit rejection, including
// whether authenticating would raise the limit (spec.md §4.10).
type RateLimitError struct {
	Resource      string
	ResetAt       time.Time
	Authenticated bool
}

func (e *RateLimitError) Error() string {
	help := "set GITHUB_TOKEN for 5000 requests/hour (unauthenticated: 60/hour)"
	if e.Authenticated {
		help = "wait for the rate limit to reset, or use a different token"
	}
	return fmt.Sprintf("tools: GitHub API rate limit exceeded fetching %s, resets at %s: %s",
		e.Resource, e.ResetAt.Format(time.RFC3339), help)
}

type ghRelease struct {
	TagName string    `json:"tag_name"`
	Assets  []ghAsset `json:"assets"`
}

type ghAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// GitHubProvider fetches tools published as GitHub Release assets.
type GitHubProvider struct {
	limiter *ratelimit.TokenBucket
}

// NewGitHubProvider constructs a provider backed by the shared GitHub-API
// token bucket (pkg/ratelimit's OperationGitHubAPI defaults).
func NewGitHubProvider() (*GitHubProvider, error) {
	bucket, err := ratelimit.NewTokenBucket(ratelimit.OperationGitHubAPI, nil)
	if err != nil {
		return nil, err
	}
	return &GitHubProvider{limiter: bucket}, nil
}

func (p *GitHubProvider) Name() string { return "github" }

func (p *GitHubProvider) CanHandle(source Source) bool { return source.Kind == SourceGitHub }

// effectiveToken prefers GITHUB_TOKEN, then GH_TOKEN, then the Options-
// supplied runtime token.
func effectiveToken(runtimeToken string) string {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		return v
	}
	if v := os.Getenv("GH_TOKEN"); v != "" {
		return v
	}
	return runtimeToken
}

func (p *GitHubProvider) restClient(token string) (*gogh.RESTClient, error) {
	return gogh.NewRESTClient(gogh.ClientOptions{
		Host:      "github.com",
		AuthToken: token,
		Headers:   map[string]string{"User-Agent": httputil.DefaultUserAgent},
	})
}

func (p *GitHubProvider) fetchRelease(repo, tag, token string) (*ghRelease, error) {
	if !p.limiter.Allow() {
		return nil, fmt.Errorf("tools: local rate limit exceeded fetching %s@%s", repo, tag)
	}

	client, err := p.restClient(token)
	if err != nil {
		return nil, fmt.Errorf("tools: build GitHub client: %w", err)
	}

	resp, err := client.Request(http.MethodGet, fmt.Sprintf("repos/%s/releases/tags/%s", repo, tag), nil)
	if err != nil {
		return nil, fmt.Errorf("tools: fetch release %s@%s: %w", repo, tag, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := httputil.ReadResponseBody(resp)
		return nil, p.buildAPIError(resp, fmt.Sprintf("release %s %s", repo, tag), token != "", body)
	}

	var release ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("tools: parse release %s@%s: %w", repo, tag, err)
	}
	return &release, nil
}

// buildAPIError inspects X-RateLimit-* headers to distinguish a rate-limit
// rejection (403 with Remaining=0) from an ordinary HTTP failure.
func (p *GitHubProvider) buildAPIError(resp *http.Response, resource string, authenticated bool, body []byte) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if resp.StatusCode == http.StatusForbidden && remaining == "0" {
		resetAt := time.Now().Add(time.Hour)
		if resetSec, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
			resetAt = time.Unix(resetSec, 0)
		}
		return &RateLimitError{Resource: resource, ResetAt: resetAt, Authenticated: authenticated}
	}

	baseErr := httputil.FormatHTTPError(resp.StatusCode, body, resource)
	if !authenticated && gitutil.IsAuthError(string(body)) {
		return fmt.Errorf("%w (set GITHUB_TOKEN or GH_TOKEN to authenticate)", baseErr)
	}
	return baseErr
}

// downloadAsset fetches browser_download_url directly: release assets are
// served from an arbitrary CDN host (not api.github.com), so this bypasses
// the go-gh REST client (which is scoped to the API host) in favor of the
// plain HTTP client, still presenting a bearer token for private releases.
func (p *GitHubProvider) downloadAsset(url, token string) ([]byte, error) {
	if !p.limiter.Allow() {
		return nil, fmt.Errorf("tools: local rate limit exceeded downloading %s", url)
	}

	httpClient := httputil.NewClient(&httputil.ClientOptions{UserAgent: httputil.DefaultUserAgent})
	req, err := httpClient.NewRequest(http.MethodGet, url)
	if err != nil {
		return nil, fmt.Errorf("tools: build asset download request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tools: download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := httputil.ReadResponseBody(resp)
		return nil, p.buildAPIError(resp, "asset download", token != "", body)
	}
	return httputil.ReadResponseBody(resp)
}

// Resolve expands the repo/tag/asset/path templates and confirms the
// referenced asset exists in the release.
func (p *GitHubProvider) Resolve(toolName, version string, platform Platform, config map[string]any) (ResolvedTool, error) {
	repo, _ := config["repo"].(string)
	if repo == "" {
		return ResolvedTool{}, fmt.Errorf("tools: github provider: missing %q in config", "repo")
	}
	if _, _, err := repoutil.SplitRepoSlug(repo); err != nil {
		return ResolvedTool{}, fmt.Errorf("tools: github provider: %q must be an owner/repo slug: %w", "repo", err)
	}
	assetTemplate, _ := config["asset"].(string)
	if assetTemplate == "" {
		return ResolvedTool{}, fmt.Errorf("tools: github provider: missing %q in config", "asset")
	}
	tagTemplate, _ := config["tag"].(string)
	if tagTemplate == "" {
		prefix, _ := config["tagPrefix"].(string)
		tagTemplate = prefix + "{version}"
	}
	path, _ := config["path"].(string)

	tag := expandTemplate(tagTemplate, version, platform)
	asset := expandTemplate(assetTemplate, version, platform)
	expandedPath := ""
	if path != "" {
		expandedPath = expandTemplate(path, version, platform)
	}

	token := effectiveToken("")
	release, err := p.fetchRelease(repo, tag, token)
	if err != nil {
		return ResolvedTool{}, err
	}

	found := false
	for _, a := range release.Assets {
		if a.Name == asset {
			found = true
			break
		}
	}
	if !found {
		return ResolvedTool{}, fmt.Errorf("tools: asset %q not found in release %s@%s", asset, repo, tag)
	}

	return ResolvedTool{
		Name:     toolName,
		Version:  version,
		Platform: platform,
		Source: Source{
			Kind:  SourceGitHub,
			Repo:  repo,
			Tag:   tag,
			Asset: asset,
			Path:  expandedPath,
		},
	}, nil
}

// Fetch downloads and caches resolved's asset, returning the final on-disk
// binary path at <cache>/github/<name>/<version>/bin/<name>.
func (p *GitHubProvider) Fetch(resolved ResolvedTool, opts Options) (FetchedTool, error) {
	if resolved.Source.Kind != SourceGitHub {
		return FetchedTool{}, fmt.Errorf("tools: github provider received non-github source")
	}
	src := resolved.Source

	cacheDir := toolCacheDir(opts, "github", resolved.Name, resolved.Version)
	binDir := filepath.Join(cacheDir, "bin")
	binaryPath := filepath.Join(binDir, resolved.Name)

	if !opts.ForceRefetch {
		if info, err := os.Stat(binaryPath); err == nil && !info.IsDir() {
			sum, err := sha256File(binaryPath)
			if err != nil {
				return FetchedTool{}, err
			}
			return FetchedTool{Name: resolved.Name, BinaryPath: binaryPath, SHA256: sum}, nil
		}
	}

	token := effectiveToken(opts.GitHubToken)
	release, err := p.fetchRelease(src.Repo, src.Tag, token)
	if err != nil {
		return FetchedTool{}, err
	}

	var downloadURL string
	for _, a := range release.Assets {
		if a.Name == src.Asset {
			downloadURL = a.BrowserDownloadURL
			break
		}
	}
	if downloadURL == "" {
		return FetchedTool{}, fmt.Errorf("tools: asset %q not found", src.Asset)
	}

	data, err := p.downloadAsset(downloadURL, token)
	if err != nil {
		return FetchedTool{}, err
	}

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return FetchedTool{}, err
	}

	extracted, err := extractBinary(data, src.Asset, src.Path, cacheDir)
	if err != nil {
		return FetchedTool{}, err
	}

	if extracted != binaryPath {
		_ = os.Remove(binaryPath)
		if err := os.Rename(extracted, binaryPath); err != nil {
			return FetchedTool{}, fmt.Errorf("tools: move extracted binary into place: %w", err)
		}
	}

	sum, err := sha256File(binaryPath)
	if err != nil {
		return FetchedTool{}, err
	}
	log.Printf("fetched %s@%s from %s -> %s", resolved.Name, resolved.Version, src.Repo, binaryPath)
	return FetchedTool{Name: resolved.Name, BinaryPath: binaryPath, SHA256: sum}, nil
}

func (p *GitHubProvider) IsCached(resolved ResolvedTool, opts Options) bool {
	binaryPath := filepath.Join(toolCacheDir(opts, "github", resolved.Name, resolved.Version), "bin", resolved.Name)
	info, err := os.Stat(binaryPath)
	return err == nil && !info.IsDir()
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
