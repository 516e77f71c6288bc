package plugin

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicate is matched by errors.Is for a name that is already taken.
	ErrDuplicate = errors.New("plugin already registered")
	// ErrInvalidName is returned for empty names or names containing spaces.
	ErrInvalidName = errors.New("invalid plugin name")
)

// DuplicateError reports a second registration of the same subcommand name.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("plugin %q already registered", e.Name)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// Registry maps subcommand names to plugins.
// It is populated once before the command line is parsed and only read
// afterwards, so it carries no lock.
type Registry struct {
	byName  map[string]Plugin
	ordered []Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Plugin)}
}

// Register adds p under p.Name(). A taken name is rejected and the first
// registration stays in place.
func (r *Registry) Register(p Plugin) error {
	name := p.Name()
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, exists := r.byName[name]; exists {
		return &DuplicateError{Name: name}
	}
	r.byName[name] = p
	r.ordered = append(r.ordered, p)
	return nil
}

// Lookup returns the plugin registered as name and whether it exists.
func (r *Registry) Lookup(name string) (Plugin, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// All returns the plugins in registration order.
func (r *Registry) All() []Plugin {
	out := make([]Plugin, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the subcommand names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, p := range r.ordered {
		names[i] = p.Name()
	}
	return names
}
