package exchange

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tradepipe/internal/models"
)

var ErrUnsupportedExchange = errors.New("unsupported exchange")

// Factory constructs an adapter bound to one user's credentials.
type Factory func(creds models.Credentials, testnet bool) (Adapter, error)

// Registry maps exchange identifiers to adapter factories. The set of
// implementations is fixed at wiring time; lookups for unknown identifiers
// return ErrUnsupportedExchange rather than panicking.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under an exchange identifier.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// New constructs an adapter for the named exchange.
func (r *Registry) New(name string, creds models.Credentials, testnet bool) (Adapter, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExchange, name)
	}
	return f(creds, testnet)
}

// Supported returns the registered exchange identifiers.
func (r *Registry) Supported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
