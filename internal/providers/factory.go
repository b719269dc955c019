// Package providers builds the vendor adapter behind the streaming relay.
package providers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"clarifyai/internal/core"
)

// ProviderOptions carries the shared dependencies handed to every adapter.
type ProviderOptions struct {
	// HTTPClient is used for outbound requests; nil means http.DefaultClient
	HTTPClient *http.Client
	// BaseURL overrides the vendor's default endpoint when non-empty
	BaseURL string
}

// Registration describes one adapter for the factory.
type Registration struct {
	Type string
	New  func(apiKey string, opts ProviderOptions) core.Provider
}

// ProviderFactory creates adapters by vendor type.
type ProviderFactory struct {
	mu       sync.RWMutex
	builders map[string]Registration
}

// NewProviderFactory returns an empty factory.
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{builders: make(map[string]Registration)}
}

// Add registers an adapter. A later registration for the same type replaces the earlier one.
func (f *ProviderFactory) Add(reg Registration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[reg.Type] = reg
}

// Create instantiates the adapter for cfg.Type.
// A blank API key is not an error here; adapters report it on first use.
func (f *ProviderFactory) Create(cfg Config, httpClient *http.Client) (core.Provider, error) {
	f.mu.RLock()
	reg, ok := f.builders[cfg.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s (registered: %s)", cfg.Type, strings.Join(f.ListRegistered(), ", "))
	}
	return reg.New(cfg.APIKey, ProviderOptions{HTTPClient: httpClient, BaseURL: cfg.BaseURL}), nil
}

// ListRegistered returns the registered vendor types in sorted order.
func (f *ProviderFactory) ListRegistered() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
