package tools

import "fmt"

// Registry dispatches resolution/fetch requests to the first registered
// Provider that advertises support for a given Source.
type Registry struct {
	providers []Provider
}

// NewRegistry builds a registry with the standard GitHub, OCI, Homebrew,
// Nix, and Rustup providers.
func NewRegistry() (*Registry, error) {
	gh, err := NewGitHubProvider()
	if err != nil {
		return nil, err
	}
	return &Registry{providers: []Provider{
		gh,
		NewOciProvider(),
		NewHomebrewProvider(),
		NewNixProvider(),
		NewRustupProvider(),
	}}, nil
}

// Register adds an additional provider, taking priority over the defaults
// for any Source it claims to handle.
func (r *Registry) Register(p Provider) {
	r.providers = append([]Provider{p}, r.providers...)
}

func (r *Registry) providerFor(source Source) (Provider, error) {
	for _, p := range r.providers {
		if p.CanHandle(source) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("tools: no provider registered for source kind %d", source.Kind)
}

// Fetch ensures resolved is present in the cache, fetching it if necessary.
func (r *Registry) Fetch(resolved ResolvedTool, opts Options) (FetchedTool, error) {
	p, err := r.providerFor(resolved.Source)
	if err != nil {
		return FetchedTool{}, err
	}
	return p.Fetch(resolved, opts)
}

// IsCached reports whether resolved is already present in the cache.
func (r *Registry) IsCached(resolved ResolvedTool, opts Options) bool {
	p, err := r.providerFor(resolved.Source)
	if err != nil {
		return false
	}
	return p.IsCached(resolved, opts)
}
