package property

import (
	"fmt"

	"github.com/c360/vizflow/errors"
)

// Composite groups child properties under one identifier.
type Composite struct {
	Base
	children *Collection
}

// NewComposite creates an empty composite property.
func NewComposite(identifier, displayName string, opts ...Option) *Composite {
	p := &Composite{}
	p.children = NewCollection(p)
	p.init(p, ClassComposite, identifier, displayName, opts)
	return p
}

// Add appends a child property.
func (p *Composite) Add(child Property) error {
	return p.children.Add(child)
}

// Remove detaches the child with the given identifier.
func (p *Composite) Remove(identifier string) (Property, error) {
	return p.children.Remove(identifier)
}

// Child returns the direct child with the given identifier.
func (p *Composite) Child(identifier string) (Property, bool) {
	return p.children.Get(identifier)
}

// Children returns the direct children in insertion order.
func (p *Composite) Children() *Collection {
	return p.children
}

// OwnerPath implements Owner.
func (p *Composite) OwnerPath() []string {
	return p.Path()
}

// OnPropertyChange implements Owner by forwarding to the composite's owner.
func (p *Composite) OnPropertyChange(child Property) {
	if p.owner != nil {
		p.owner.OnPropertyChange(child)
	}
}

// OnPropertyRemove implements Owner by forwarding to the composite's owner.
func (p *Composite) OnPropertyRemove(child Property) {
	if p.owner != nil {
		p.owner.OnPropertyRemove(child)
	}
}

// Value returns the children's values keyed by identifier.
func (p *Composite) Value() any {
	values := make(map[string]any, p.children.Len())
	for _, c := range p.children.items {
		values[c.Identifier()] = c.Value()
	}
	return values
}

// SetValue sets each child named in v. Every value is checked before any
// child changes, so a rejected value leaves all children untouched.
func (p *Composite) SetValue(v any) error {
	if err := p.check(v); err != nil {
		return err
	}
	values := v.(map[string]any)
	for _, child := range p.children.items {
		if val, ok := values[child.Identifier()]; ok {
			if err := child.SetValue(val); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Composite) check(v any) error {
	values, ok := v.(map[string]any)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: composite %s needs a map, got %T", errors.ErrIncompatibleTypes, p.identifier, v),
			"Property", "SetValue", "type check")
	}
	for key, val := range values {
		child, ok := p.children.Get(key)
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s has no child %q", errors.ErrNotFound, p.identifier, key),
				"Property", "SetValue", "child lookup")
		}
		if err := child.check(val); err != nil {
			return err
		}
	}
	return nil
}

// Close drops the observers of the composite and all children.
func (p *Composite) Close() {
	p.Base.Close()
	p.children.Close()
}
