package property

import (
	"fmt"
	"iter"

	"github.com/c360/vizflow/errors"
)

// Collection holds the ordered properties of one owner.
type Collection struct {
	owner Owner
	items []Property
	index map[string]Property
}

// NewCollection creates an empty collection whose properties belong to owner.
func NewCollection(owner Owner) *Collection {
	return &Collection{owner: owner, index: make(map[string]Property)}
}

// Add appends p and makes the collection's owner its owner.
func (c *Collection) Add(p Property) error {
	if p == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Collection", "Add", "nil property check")
	}
	if p.Identifier() == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Collection", "Add", "empty identifier check")
	}
	if _, exists := c.index[p.Identifier()]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: property %q", errors.ErrDuplicateIdentifier, p.Identifier()),
			"Collection", "Add", "identifier check")
	}
	if p.Owner() != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: property %q already has an owner", errors.ErrInvalidData, p.Identifier()),
			"Collection", "Add", "ownership check")
	}
	if asProp, ok := c.owner.(Property); ok && (asProp == p || IsDescendant(asProp, ownerOf(p))) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: property %q would own itself", errors.ErrInvalidData, p.Identifier()),
			"Collection", "Add", "ownership cycle check")
	}

	p.base().owner = c.owner
	c.items = append(c.items, p)
	c.index[p.Identifier()] = p
	return nil
}

// ownerOf returns p as an Owner when p holds properties itself.
func ownerOf(p Property) Owner {
	if o, ok := p.(Owner); ok {
		return o
	}
	return nil
}

// Remove detaches and returns the property with the given identifier. The
// owner hears about the removal while the property is still attached.
func (c *Collection) Remove(identifier string) (Property, error) {
	p, ok := c.index[identifier]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: property %q", errors.ErrNotFound, identifier),
			"Collection", "Remove", "lookup")
	}
	c.owner.OnPropertyRemove(p)
	delete(c.index, identifier)
	for i, item := range c.items {
		if item == p {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			break
		}
	}
	p.base().owner = nil
	return p, nil
}

// Get returns the direct child with the given identifier.
func (c *Collection) Get(identifier string) (Property, bool) {
	p, ok := c.index[identifier]
	return p, ok
}

// Len returns the number of direct children.
func (c *Collection) Len() int { return len(c.items) }

// All returns the direct children in insertion order.
func (c *Collection) All() []Property {
	return append([]Property(nil), c.items...)
}

// Recursive yields every property depth first, parents before children.
func (c *Collection) Recursive() iter.Seq[Property] {
	return func(yield func(Property) bool) {
		c.walk(yield)
	}
}

func (c *Collection) walk(yield func(Property) bool) bool {
	for _, p := range c.items {
		if !yield(p) {
			return false
		}
		if comp, ok := p.(*Composite); ok {
			if !comp.children.walk(yield) {
				return false
			}
		}
	}
	return true
}

// Find resolves a path relative to this collection.
func (c *Collection) Find(path []string) (Property, bool) {
	if len(path) == 0 {
		return nil, false
	}
	p, ok := c.index[path[0]]
	if !ok {
		return nil, false
	}
	if len(path) == 1 {
		return p, true
	}
	comp, ok := p.(*Composite)
	if !ok {
		return nil, false
	}
	return comp.children.Find(path[1:])
}

// Close closes every property in the collection.
func (c *Collection) Close() {
	for p := range c.Recursive() {
		p.Close()
	}
}
