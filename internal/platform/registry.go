package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Registry holds all registered platform adapters and provides dispatch
// methods for normalization and sending. It must be created via NewRegistry
// and passed explicitly to components that need it.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Platform]Adapter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: map[Platform]Adapter{},
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("adapter is nil")
	}
	p := Platform(strings.ToLower(strings.TrimSpace(adapter.Type().String())))
	if p == "" {
		return fmt.Errorf("platform is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[p]; exists {
		return fmt.Errorf("platform already registered: %s", p)
	}
	r.adapters[p] = adapter
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(adapter Adapter) {
	if err := r.Register(adapter); err != nil {
		panic(err)
	}
}

// Get returns the adapter for the given platform.
func (r *Registry) Get(p Platform) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[p]
	return adapter, ok
}

// List returns all registered adapters.
func (r *Registry) List() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		items = append(items, a)
	}
	return items
}

// GetNormalizer returns the Normalizer for the given platform, or false if
// the platform is unknown or does not receive webhooks.
func (r *Registry) GetNormalizer(p Platform) (Normalizer, bool) {
	adapter, ok := r.Get(p)
	if !ok {
		return nil, false
	}
	normalizer, ok := adapter.(Normalizer)
	return normalizer, ok
}

// GetSender returns the Sender for the given platform, or false if
// unsupported.
func (r *Registry) GetSender(p Platform) (Sender, bool) {
	adapter, ok := r.Get(p)
	if !ok {
		return nil, false
	}
	sender, ok := adapter.(Sender)
	return sender, ok
}

// RegistrySender dispatches Send calls to the adapter registered for the
// request's platform.
type RegistrySender struct {
	registry *Registry
}

// NewRegistrySender creates a Sender backed by adapter dispatch.
func NewRegistrySender(registry *Registry) *RegistrySender {
	return &RegistrySender{registry: registry}
}

// Send delivers the request through the platform's registered adapter.
func (s *RegistrySender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if s.registry == nil {
		return SendResult{}, fmt.Errorf("registry not configured")
	}
	sender, ok := s.registry.GetSender(req.Platform)
	if !ok {
		return SendResult{}, fmt.Errorf("platform does not support sending: %s", req.Platform)
	}
	return sender.Send(ctx, req)
}
