package formatprovider

import (
	"fmt"

	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// ErrUnsupported is returned when no registered provider claims a file.
type ErrUnsupported struct {
	FileName string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("formatprovider: no provider supports %q", e.FileName)
}

// Registry holds the ordered list of enabled providers; the first whose
// Supports returns true wins.
type Registry struct {
	providers []Provider
}

// NewRegistry returns a registry over providers, preserving call order as
// dispatch priority.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Dispatch returns the first provider that supports file, or ErrUnsupported.
func (r *Registry) Dispatch(file *sourcefile.File) (Provider, error) {
	for _, p := range r.providers {
		if p.Supports(file) {
			return p, nil
		}
	}
	return nil, &ErrUnsupported{FileName: file.FileName}
}

// ByName returns the provider registered under name, or nil.
func (r *Registry) ByName(name string) Provider {
	for _, p := range r.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// CheckDisjointExtensions validates that no two providers claim the same
// extension, as required by the dispatch invariant. Returns the first
// collision found.
func (r *Registry) CheckDisjointExtensions() error {
	seen := make(map[string]string)
	for _, p := range r.providers {
		for _, ext := range p.Extensions() {
			if owner, ok := seen[ext]; ok {
				return fmt.Errorf("formatprovider: extension %q claimed by both %q and %q", ext, owner, p.Name())
			}
			seen[ext] = p.Name()
		}
	}
	return nil
}
