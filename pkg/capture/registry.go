package capture

import (
	"fmt"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Factory builds a fresh Capture backend instance. Backends register
// themselves under a name (e.g. "nvfbc", "dxgi", "null") so the entrypoint
// can select one at startup without the core packages importing any
// concrete backend (spec.md section 6, CaptureFactory in original_source).
type Factory func() Capture

// Registry is a concurrent-safe name-to-Factory table. The zero value is
// not usable; use NewRegistry.
type Registry struct {
	factories cmap.ConcurrentMap[string, Factory]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: cmap.New[Factory]()}
}

// Register adds a backend factory under name, overwriting any previous
// registration for the same name.
func (r *Registry) Register(name string, f Factory) {
	r.factories.Set(name, f)
}

// New builds a fresh Capture instance for name.
func (r *Registry) New(name string) (Capture, error) {
	f, ok := r.factories.Get(name)
	if !ok {
		return nil, fmt.Errorf("capture: no backend registered under %q", name)
	}
	return f(), nil
}

// Names returns the currently registered backend names.
func (r *Registry) Names() []string {
	return r.factories.Keys()
}
