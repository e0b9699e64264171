package webhook

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Headers carries the provider-supplied HTTP headers the gate extracts.
type Headers map[string]string

// Get returns the first non-empty value among the given keys.
func (h Headers) Get(keys ...string) string {
	for _, k := range keys {
		if v, ok := h[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// Event is a provider-parsed payload. Kind drives logging and audit only;
// each provider type-asserts its own concrete event in Handle.
type Event interface {
	Kind() string
}

// Provider adapts one external system to the pipeline: authenticity
// material, signature scheme, payload shape and business effect. New
// providers register themselves; the gate and processor never grow a switch.
type Provider interface {
	Name() string
	// RequiredHeaders must all be present or the gate fails fast.
	RequiredHeaders() []string
	// EventID returns the provider's own event identifier, if any.
	EventID(h Headers) string
	// Nonce returns the anti-replay nonce; empty when the provider's scheme
	// has none (the event ID then serves as the replay key).
	Nonce(h Headers) string
	VerifySignature(body []byte, h Headers) bool
	Parse(body []byte) (Event, error)
	Handle(ctx context.Context, evt Event) error
}

// Registry is the capability table mapping provider tags to adapters.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider; a duplicate name is a wiring bug and panics.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Name()]; exists {
		panic(fmt.Sprintf("webhook: provider %q registered twice", p.Name()))
	}
	r.providers[p.Name()] = p
}

// Get resolves a provider by tag.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider tags, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
