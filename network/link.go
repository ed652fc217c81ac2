package network

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
)

// Link is a directed property link: changes of Source are copied to
// Destination.
type Link struct {
	Source      property.Property
	Destination property.Property
}

// String formats the link as "A.x -> B.y".
func (l Link) String() string {
	return fmt.Sprintf("%s -> %s", propertyName(l.Source), propertyName(l.Destination))
}

func propertyName(p property.Property) string {
	if p == nil {
		return "<nil>"
	}
	return strings.Join(p.Path(), ".")
}

// AddLink links src to dst. Adding an existing link is a no-op. Links do
// not propagate when created.
func (n *Network) AddLink(src, dst property.Property) (l Link, err error) {
	defer func() { n.recordEdit("add_link", err) }()

	if src == nil || dst == nil {
		return Link{}, errors.WrapInvalid(errors.ErrInvalidData, "Network", "AddLink", "nil property check")
	}
	if src == dst {
		return Link{}, errors.WrapInvalid(
			fmt.Errorf("%w: property %s linked to itself", errors.ErrInvalidData, propertyName(src)),
			"Network", "AddLink", "self link check")
	}
	n.mu.RLock()
	member := n.ownsProperty(src) && n.ownsProperty(dst)
	n.mu.RUnlock()
	if !member {
		return Link{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s -> %s", errors.ErrForeignProperty, propertyName(src), propertyName(dst)),
			"Network", "AddLink", "membership check")
	}

	l = Link{Source: src, Destination: dst}
	n.mu.RLock()
	_, exists := n.linkIndex[l]
	n.mu.RUnlock()
	if exists {
		return l, nil
	}
	if !property.CanConvert(src, dst) {
		return Link{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s (%s) -> %s (%s)", errors.ErrIncompatibleTypes,
				propertyName(src), src.ClassIdentifier(), propertyName(dst), dst.ClassIdentifier()),
			"Network", "AddLink", "conversion check")
	}

	n.notify(Event{Kind: EventLinkWillAdd, Link: l})
	n.mu.Lock()
	n.links = append(n.links, l)
	n.linkIndex[l] = struct{}{}
	n.bySource[src] = append(n.bySource[src], dst)
	n.mu.Unlock()

	n.modified.Store(true)
	n.logger.Debug("Link added", "link", l.String())
	n.notify(Event{Kind: EventLinkAdded, Link: l})
	return l, nil
}

// AddBidirectionalLink links src and dst both ways.
func (n *Network) AddBidirectionalLink(a, b property.Property) error {
	if _, err := n.AddLink(a, b); err != nil {
		return err
	}
	if _, err := n.AddLink(b, a); err != nil {
		n.RemoveLink(a, b)
		return err
	}
	return nil
}

// ownsProperty reports whether prop belongs to a member processor. Callers hold mu.
func (n *Network) ownsProperty(prop property.Property) bool {
	owner, ok := processor.OwnerOfProperty(prop)
	return ok && n.contains(owner)
}

// RemoveLink removes the link from src to dst and reports whether it existed.
func (n *Network) RemoveLink(src, dst property.Property) bool {
	l := Link{Source: src, Destination: dst}
	n.mu.RLock()
	_, exists := n.linkIndex[l]
	n.mu.RUnlock()
	if !exists {
		return false
	}
	n.removeLink(l)
	n.recordEdit("remove_link", nil)
	return true
}

// RemoveBidirectionalLink removes the links between a and b in both directions.
func (n *Network) RemoveBidirectionalLink(a, b property.Property) {
	n.RemoveLink(a, b)
	n.RemoveLink(b, a)
}

func (n *Network) removeLink(l Link) {
	n.notify(Event{Kind: EventLinkWillRemove, Link: l})

	n.mu.Lock()
	delete(n.linkIndex, l)
	n.links = slices.DeleteFunc(slices.Clone(n.links), func(x Link) bool { return x == l })
	dsts := slices.DeleteFunc(slices.Clone(n.bySource[l.Source]), func(p property.Property) bool {
		return p == l.Destination
	})
	if len(dsts) == 0 {
		delete(n.bySource, l.Source)
	} else {
		n.bySource[l.Source] = dsts
	}
	n.mu.Unlock()

	n.modified.Store(true)
	n.notify(Event{Kind: EventLinkRemoved, Link: l})
}

// Destinations yields the destinations of src's outgoing links in the
// order the links were added. The sequence works on a snapshot taken when
// iteration starts.
func (n *Network) Destinations(src property.Property) iter.Seq[property.Property] {
	return func(yield func(property.Property) bool) {
		n.mu.RLock()
		dsts := slices.Clone(n.bySource[src])
		n.mu.RUnlock()
		for _, dst := range dsts {
			if !yield(dst) {
				return
			}
		}
	}
}

// OnPropertyChange implements processor.Host. It follows the links of the
// changed property and of the composites holding it.
func (n *Network) OnPropertyChange(_ processor.Processor, prop property.Property) {
	for p := prop; p != nil; {
		n.propagate(p)
		parent, ok := p.Owner().(property.Property)
		if !ok {
			break
		}
		p = parent
	}
}

// propagate copies src's value along its outgoing links. Each destination
// that changes propagates further through its own owner callback. A
// property already on the running chain is not entered again, which ends
// propagation around link cycles.
func (n *Network) propagate(src property.Property) {
	if !property.BeginPropagation(src) {
		return
	}
	defer property.EndPropagation(src)

	for dst := range n.Destinations(src) {
		if property.IsPropagating(dst) {
			continue
		}
		value, err := property.Convert(src.Value(), dst)
		if err != nil {
			n.logger.Warn("Link conversion failed", "source", propertyName(src),
				"destination", propertyName(dst), "error", err)
			continue
		}
		if err := dst.SetValue(value); err != nil {
			n.logger.Warn("Link propagation rejected", "source", propertyName(src),
				"destination", propertyName(dst), "error", err)
		}
	}
}
