// Package source keeps the report sources known to the binary and picks the configured one.
package source

import (
	"errors"
	"fmt"
	"sort"

	"EarningsTracker/internal/ports"
)

// ErrUnknownSource is returned when config names a source nobody registered.
var ErrUnknownSource = errors.New("unknown report source")

// Registry keeps a mapping from source names to their implementations.
type Registry struct {
	sources map[string]ports.ReportSource
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.ReportSource{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(src ports.ReportSource) {
	if r.sources == nil {
		r.sources = map[string]ports.ReportSource{}
	}
	r.sources[src.Name()] = src
}

// Resolve returns a source by name.
func (r *Registry) Resolve(name string) (ports.ReportSource, error) {
	if src, ok := r.sources[name]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("%w: %s (registered: %v)", ErrUnknownSource, name, r.Names())
}

// Names lists registered sources alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
