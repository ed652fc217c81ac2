// Package property implements processor parameters: typed values with
// validation, change observers, an owner tree and the per-property guard
// used to terminate link propagation cycles.
package property

import (
	"slices"

	"github.com/c360/vizflow/observer"
	"github.com/c360/vizflow/types"
)

// Owner is implemented by anything that holds properties: processors and
// composite properties.
type Owner interface {
	// OwnerPath is the path prefix of properties held by this owner.
	OwnerPath() []string
	// OnPropertyChange runs after p took a new value and its observers ran.
	OnPropertyChange(p Property)
	// OnPropertyRemove runs before p, held directly or through composites,
	// is detached.
	OnPropertyRemove(p Property)
}

// Property is a named, typed, observable parameter.
type Property interface {
	Identifier() string
	DisplayName() string
	ClassIdentifier() string
	Path() []string
	Owner() Owner
	InvalidationLevel() types.InvalidationLevel

	ReadOnly() bool
	SetReadOnly(bool)
	Visible() bool
	SetVisible(bool)
	AutoLink() bool
	Serializable() bool

	// Value returns the current value in its plain Go form.
	Value() any
	// SetValue converts v to the property's type and sets it.
	SetValue(v any) error

	// Observe registers fn to run after each value change.
	Observe(fn func(Property)) *observer.Subscription
	// Close drops all observers. Called when the owning processor is destroyed.
	Close()

	// check reports whether SetValue would accept v, without changing anything.
	check(v any) error
	base() *Base
}

// Option configures the common attributes of a property.
type Option func(*Base)

// WithInvalidationLevel sets the level a change of the property triggers on
// its owner. The default is InvalidOutput.
func WithInvalidationLevel(level types.InvalidationLevel) Option {
	return func(b *Base) { b.level = level }
}

// WithReadOnly marks the property as not editable from outside the processor.
func WithReadOnly() Option {
	return func(b *Base) { b.readOnly = true }
}

// WithHidden hides the property from editors.
func WithHidden() Option {
	return func(b *Base) { b.visible = false }
}

// WithAutoLink lets the network link the property automatically to matching
// properties of other processors.
func WithAutoLink() Option {
	return func(b *Base) { b.autoLink = true }
}

// WithTransient excludes the property value from workspace documents.
func WithTransient() Option {
	return func(b *Base) { b.serializable = false }
}

// Base carries the attributes shared by all property kinds. Concrete
// properties embed it and call changed after storing a new value.
type Base struct {
	identifier   string
	displayName  string
	class        string
	level        types.InvalidationLevel
	readOnly     bool
	visible      bool
	autoLink     bool
	serializable bool

	owner       Owner
	self        Property
	observers   observer.Subject[Property]
	propagating bool
}

func (b *Base) init(self Property, class, identifier, displayName string, opts []Option) {
	b.self = self
	b.class = class
	b.identifier = identifier
	b.displayName = displayName
	if b.displayName == "" {
		b.displayName = identifier
	}
	b.level = types.InvalidOutput
	b.visible = true
	b.serializable = true
	for _, opt := range opts {
		opt(b)
	}
}

func (b *Base) base() *Base { return b }

func (b *Base) check(any) error { return nil }

// Identifier returns the property identifier, unique among its siblings.
func (b *Base) Identifier() string { return b.identifier }

// DisplayName returns the human readable name.
func (b *Base) DisplayName() string { return b.displayName }

// ClassIdentifier returns the factory class of the property.
func (b *Base) ClassIdentifier() string { return b.class }

// Owner returns the current owner or nil.
func (b *Base) Owner() Owner { return b.owner }

// Path returns the identifiers from the owning processor down to this property.
func (b *Base) Path() []string {
	if b.owner == nil {
		return []string{b.identifier}
	}
	return append(slices.Clone(b.owner.OwnerPath()), b.identifier)
}

// InvalidationLevel returns the level a change triggers on the owner.
func (b *Base) InvalidationLevel() types.InvalidationLevel { return b.level }

// ReadOnly reports whether external edits are rejected.
func (b *Base) ReadOnly() bool { return b.readOnly }

// SetReadOnly toggles the read-only flag.
func (b *Base) SetReadOnly(v bool) { b.readOnly = v }

// Visible reports whether editors show the property.
func (b *Base) Visible() bool { return b.visible }

// SetVisible toggles visibility.
func (b *Base) SetVisible(v bool) { b.visible = v }

// AutoLink reports whether the property takes part in automatic linking.
func (b *Base) AutoLink() bool { return b.autoLink }

// Serializable reports whether the value is written to workspace documents.
func (b *Base) Serializable() bool { return b.serializable }

// Observe registers fn to run after each value change.
func (b *Base) Observe(fn func(Property)) *observer.Subscription {
	return b.observers.Subscribe(fn)
}

// Close drops all observers.
func (b *Base) Close() {
	b.observers.Close()
}

// changed notifies observers and then the owner.
func (b *Base) changed() {
	b.observers.Notify(b.self)
	if b.owner != nil {
		b.owner.OnPropertyChange(b.self)
	}
}

// BeginPropagation marks p as the origin of a running link propagation.
// It returns false when p is already part of the running chain, in which
// case the caller must not follow p's links again.
func BeginPropagation(p Property) bool {
	b := p.base()
	if b.propagating {
		return false
	}
	b.propagating = true
	return true
}

// EndPropagation clears the mark set by BeginPropagation.
func EndPropagation(p Property) {
	p.base().propagating = false
}

// IsPropagating reports whether p is inside a running link propagation.
func IsPropagating(p Property) bool {
	return p.base().propagating
}

// RootOwner walks up through composite properties and returns the first
// owner that is not itself a property, normally the processor.
func RootOwner(p Property) Owner {
	owner := p.Owner()
	for owner != nil {
		parent, ok := owner.(Property)
		if !ok {
			return owner
		}
		owner = parent.Owner()
	}
	return nil
}

// IsDescendant reports whether p is held, directly or through composites, by owner.
func IsDescendant(p Property, owner Owner) bool {
	for o := p.Owner(); o != nil; {
		if o == owner {
			return true
		}
		parent, ok := o.(Property)
		if !ok {
			return false
		}
		o = parent.Owner()
	}
	return false
}
