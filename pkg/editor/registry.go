// Package editor maps sites to HTML editor integrations. Integrations are
// registered by key at startup; a site names its editor through a
// site_to_html_editor edge to an editor entity whose filename, minus its
// extension, is the key.
package editor

import (
	"sort"
	"sync"
)

// Plain is the key of the built-in plain textarea integration.
const Plain = "plain"

// Integration describes how a form should render a rich text field.
type Integration interface {
	// Name returns the registry key.
	Name() string
	// ElementType returns the form element type to render.
	ElementType() string
	// Options returns element options. It may return nil.
	Options() map[string]any
}

// Factory builds an Integration.
type Factory func() Integration

// Registry maps keys to integration factories. It is safe for concurrent
// use, but is normally filled once at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in integrations.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(Plain, func() Integration { return plainIntegration{} })
	r.Register(TinyMCE, func() Integration { return tinyMCEIntegration{} })
	return r
}

// Register binds key to f, replacing any earlier binding.
func (r *Registry) Register(key string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = f
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[key]
	return ok
}

// New builds the integration for key, or the plain integration if key is
// not registered.
func (r *Registry) New(key string) Integration {
	r.mu.RLock()
	f, ok := r.factories[key]
	if !ok {
		f = r.factories[Plain]
	}
	r.mu.RUnlock()
	if f == nil {
		return plainIntegration{}
	}
	return f()
}

// Keys returns the registered keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type plainIntegration struct{}

func (plainIntegration) Name() string            { return Plain }
func (plainIntegration) ElementType() string     { return "textarea" }
func (plainIntegration) Options() map[string]any { return nil }

// TinyMCE is the key of the built-in TinyMCE integration.
const TinyMCE = "tiny_mce"

type tinyMCEIntegration struct{}

func (tinyMCEIntegration) Name() string        { return TinyMCE }
func (tinyMCEIntegration) ElementType() string { return "tiny_mce" }
func (tinyMCEIntegration) Options() map[string]any {
	return map[string]any{"rows": 20, "cols": 80}
}
