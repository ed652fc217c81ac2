// Package registry maps class identifiers to the factory closures that build
// processors and properties. A registry is an explicit value handed to the
// network and workspace loaders; there is no package level instance.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
)

// Factory creates a processor instance. Factories do no I/O; resources are
// acquired in InitializeResources.
type Factory func(deps processor.Dependencies) (processor.Processor, error)

// PropertyFactory creates a property instance with the given identity.
type PropertyFactory func(identifier, displayName string) property.Property

// Registration holds a processor factory and the class metadata.
type Registration struct {
	ClassIdentifier string   `json:"class_identifier"`
	DisplayName     string   `json:"display_name"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	Tags            []string `json:"tags,omitempty"`
	Version         string   `json:"version"`
	Factory         Factory  `json:"-"`
}

// Info returns the registration as processor class information.
func (r *Registration) Info() processor.Info {
	return processor.Info{
		ClassIdentifier: r.ClassIdentifier,
		DisplayName:     r.DisplayName,
		Category:        r.Category,
		Description:     r.Description,
		Tags:            slices.Clone(r.Tags),
	}
}

// Registry holds processor and property factories.
type Registry struct {
	factories  map[string]*Registration
	properties map[string]PropertyFactory
	mu         sync.RWMutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		factories:  make(map[string]*Registration),
		properties: make(map[string]PropertyFactory),
	}
}

// RegisterFactory registers a processor class. Class identifiers are unique.
func (r *Registry) RegisterFactory(registration *Registration) error {
	if registration == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "registration validation")
	}
	if strings.TrimSpace(registration.ClassIdentifier) == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "class identifier validation")
	}
	if registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory function validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[registration.ClassIdentifier]; exists {
		msg := fmt.Errorf("%w: processor class '%s' is already registered",
			errors.ErrDuplicateIdentifier, registration.ClassIdentifier)
		return errors.WrapInvalid(msg, "Registry", "RegisterFactory", "duplicate factory check")
	}

	r.factories[registration.ClassIdentifier] = registration
	return nil
}

// RegisterProperty registers a property class.
func (r *Registry) RegisterProperty(classIdentifier string, factory PropertyFactory) error {
	if strings.TrimSpace(classIdentifier) == "" || factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterProperty", "registration validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.properties[classIdentifier]; exists {
		msg := fmt.Errorf("%w: property class '%s' is already registered", errors.ErrDuplicateIdentifier, classIdentifier)
		return errors.WrapInvalid(msg, "Registry", "RegisterProperty", "duplicate factory check")
	}
	r.properties[classIdentifier] = factory
	return nil
}

// Create builds a processor of the given class.
func (r *Registry) Create(classIdentifier string, deps processor.Dependencies) (processor.Processor, error) {
	r.mu.RLock()
	registration, exists := r.factories[classIdentifier]
	r.mu.RUnlock()

	if !exists {
		msg := fmt.Errorf("%w: processor class '%s'", errors.ErrUnknownClassIdentifier, classIdentifier)
		return nil, errors.WrapInvalid(msg, "Registry", "Create", "factory lookup")
	}

	p, err := registration.Factory(deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", fmt.Sprintf("factory execution for %s", classIdentifier))
	}
	if p == nil {
		return nil, errors.WrapFatal(errors.ErrInvalidData, "Registry", "Create",
			fmt.Sprintf("factory for %s returned nil", classIdentifier))
	}
	if got := p.Info().ClassIdentifier; got != classIdentifier {
		msg := fmt.Errorf("%w: factory for '%s' built a '%s'", errors.ErrInvariantViolation, classIdentifier, got)
		return nil, errors.WrapFatal(msg, "Registry", "Create", "class identifier check")
	}
	return p, nil
}

// CreateProperty builds a property of the given class.
func (r *Registry) CreateProperty(classIdentifier, identifier, displayName string) (property.Property, error) {
	r.mu.RLock()
	factory, exists := r.properties[classIdentifier]
	r.mu.RUnlock()

	if !exists {
		msg := fmt.Errorf("%w: property class '%s'", errors.ErrUnknownClassIdentifier, classIdentifier)
		return nil, errors.WrapInvalid(msg, "Registry", "CreateProperty", "factory lookup")
	}
	return factory(identifier, displayName), nil
}

// HasFactory reports whether a processor class is registered.
func (r *Registry) HasFactory(classIdentifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[classIdentifier]
	return ok
}

// Registration returns the registration of a processor class.
func (r *Registry) Registration(classIdentifier string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.factories[classIdentifier]
	return reg, ok
}

// ListAvailable returns the registered processor classes sorted by class identifier.
func (r *Registry) ListAvailable() []processor.Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]processor.Info, 0, len(r.factories))
	for _, reg := range r.factories {
		infos = append(infos, reg.Info())
	}
	slices.SortFunc(infos, func(a, b processor.Info) int {
		return strings.Compare(a.ClassIdentifier, b.ClassIdentifier)
	})
	return infos
}

// ListProperties returns the registered property classes, sorted.
func (r *Registry) ListProperties() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	classes := make([]string, 0, len(r.properties))
	for class := range r.properties {
		classes = append(classes, class)
	}
	slices.Sort(classes)
	return classes
}

// RegisterBuiltinProperties registers the property kinds of package property
// with default values.
func (r *Registry) RegisterBuiltinProperties() error {
	builtins := map[string]PropertyFactory{
		property.ClassInt: func(id, name string) property.Property {
			return property.NewInt(id, name, 0, -1<<31, 1<<31-1)
		},
		property.ClassFloat: func(id, name string) property.Property {
			return property.NewFloat(id, name, 0, -1e9, 1e9)
		},
		property.ClassBool: func(id, name string) property.Property {
			return property.NewBool(id, name, false)
		},
		property.ClassString: func(id, name string) property.Property {
			return property.NewString(id, name, "")
		},
		property.ClassComposite: func(id, name string) property.Property {
			return property.NewComposite(id, name)
		},
	}
	classes := make([]string, 0, len(builtins))
	for class := range builtins {
		classes = append(classes, class)
	}
	slices.Sort(classes)
	for _, class := range classes {
		if err := r.RegisterProperty(class, builtins[class]); err != nil {
			return err
		}
	}
	return nil
}
