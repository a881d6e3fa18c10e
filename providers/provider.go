// Package providers adapts external listing sources to one paging and
// detail contract.
package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"homescout/config"
	"homescout/models"
	"homescout/utils"
)

// ErrUnknownProvider is returned by Registry.New for an unregistered key.
var ErrUnknownProvider = errors.New("providers: unknown provider")

// Provider is one listing source. Search returns one page of summaries and
// whether another page exists. GetDetails returns the richer record for an
// identifier, or nil when the source has nothing more. Transport failures
// are returned as errors; the caller decides how to degrade.
type Provider interface {
	Search(ctx context.Context, page int) ([]*models.RawListing, bool, error)
	GetDetails(ctx context.Context, id string) (*models.RawListing, error)
	Close() error
}

// Factory builds a provider from process config.
type Factory func(cfg *config.Config, logger *utils.Logger) (Provider, error)

// Registry maps source keys to provider factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry registers every built-in source.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("mock", func(*config.Config, *utils.Logger) (Provider, error) {
		return NewSampleProvider(), nil
	})
	r.Register("gateway", func(cfg *config.Config, logger *utils.Logger) (Provider, error) {
		return NewGatewayProvider(cfg, logger)
	})
	r.Register("page", func(cfg *config.Config, logger *utils.Logger) (Provider, error) {
		return NewPageProvider(cfg, logger)
	})
	r.Register("browser", func(cfg *config.Config, logger *utils.Logger) (Provider, error) {
		return NewBrowserProvider(cfg, logger)
	})
	r.Register("curated", func(cfg *config.Config, logger *utils.Logger) (Provider, error) {
		return NewCuratedProvider(cfg, logger), nil
	})
	return r
}

func (r *Registry) Register(key string, f Factory) {
	r.factories[key] = f
}

func (r *Registry) Has(key string) bool {
	_, ok := r.factories[key]
	return ok
}

// Keys lists registered sources in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// New builds the provider registered under key.
func (r *Registry) New(key string, cfg *config.Config, logger *utils.Logger) (Provider, error) {
	f, ok := r.factories[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, key)
	}
	p, err := f(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("providers: build %s: %w", key, err)
	}
	return p, nil
}
