package pos

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

// ErrNotImplemented is returned for providers without a registered adapter.
var ErrNotImplemented = errors.New("pos provider not implemented")

// Factory builds an adapter from resolved credentials.
type Factory func(ctx context.Context, creds Credentials) (Adapter, error)

// Registry maps providers to adapter factories and caches built adapters.
// Credentials are resolved on every lookup; an adapter built from credentials
// that have since changed is rebuilt.
type Registry struct {
	creds     CredentialSource
	mu        sync.Mutex
	factories map[enums.POSProvider]Factory
	adapters  map[enums.POSProvider]builtAdapter
}

type builtAdapter struct {
	creds   Credentials
	adapter Adapter
}

// NewRegistry returns an empty registry backed by the credential source.
func NewRegistry(creds CredentialSource) *Registry {
	return &Registry{
		creds:     creds,
		factories: map[enums.POSProvider]Factory{},
		adapters:  map[enums.POSProvider]builtAdapter{},
	}
}

// NewDefaultRegistry registers the rest and square providers.
func NewDefaultRegistry(creds CredentialSource, logg *logger.Logger, httpClient *http.Client) *Registry {
	r := NewRegistry(creds)
	r.Register(enums.POSProviderREST, func(ctx context.Context, c Credentials) (Adapter, error) {
		return NewRESTAdapter(c, WithHTTPClient(httpClient))
	})
	r.Register(enums.POSProviderSquare, func(ctx context.Context, c Credentials) (Adapter, error) {
		return NewSquareAdapter(ctx, c, logg)
	})
	return r
}

// Register installs or replaces the factory for a provider.
func (r *Registry) Register(provider enums.POSProvider, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = factory
	delete(r.adapters, provider)
}

// Adapter returns the adapter for provider, building it on first use and
// whenever its credentials change.
func (r *Registry) Adapter(ctx context.Context, provider enums.POSProvider) (Adapter, error) {
	if !provider.Syncable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location has no pos provider")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[provider]
	if !ok || factory == nil {
		return nil, ErrNotImplemented
	}
	if r.creds == nil {
		return nil, configurationError(provider, "credential source missing")
	}
	creds, err := r.creds.Credentials(provider)
	if err != nil {
		delete(r.adapters, provider)
		return nil, err
	}
	if built, ok := r.adapters[provider]; ok && built.creds == creds {
		return built.adapter, nil
	}
	adapter, err := factory(ctx, creds)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "build pos adapter")
	}
	r.adapters[provider] = builtAdapter{creds: creds, adapter: adapter}
	return adapter, nil
}

// Invalidate drops the cached adapter so the next lookup rebuilds it.
func (r *Registry) Invalidate(provider enums.POSProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, provider)
}
