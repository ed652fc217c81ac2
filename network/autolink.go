package network

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
)

// AutoLinkProcessor links every unlinked auto-link property of p to the
// matching property of the nearest other processor. The partner's value is
// copied to p's property first, then both are linked in both directions.
// It returns the number of properties linked.
func (n *Network) AutoLinkProcessor(p processor.Processor) (int, error) {
	if !n.Contains(p) {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: processor not in network", errors.ErrNotFound),
			"Network", "AutoLinkProcessor", "membership check")
	}

	var targets []property.Property
	for prop := range p.Properties().Recursive() {
		if prop.AutoLink() && len(n.LinksFor(prop)) == 0 {
			targets = append(targets, prop)
		}
	}

	n.BeginBatch()
	defer n.EndBatch()

	linked := 0
	for _, prop := range targets {
		candidates := n.AutoLinkCandidates(prop)
		if len(candidates) == 0 {
			continue
		}
		partner := candidates[0]
		if err := prop.SetValue(partner.Value()); err != nil {
			n.logger.Warn("Auto link value copy failed", "property", propertyName(prop), "error", err)
			continue
		}
		if err := n.AddBidirectionalLink(partner, prop); err != nil {
			return linked, err
		}
		linked++
	}
	return linked, nil
}

// AutoLinkCandidates lists the auto-link properties of other processors
// with the same class and relative path as prop, nearest processor first.
// Equal distances keep insertion order.
func (n *Network) AutoLinkCandidates(prop property.Property) []property.Property {
	owner, ok := processor.OwnerOfProperty(prop)
	if !ok {
		return nil
	}
	type scored struct {
		prop property.Property
		dist float64
	}
	relPath := prop.Path()[1:]
	var found []scored
	for _, other := range n.Processors() {
		if other == owner {
			continue
		}
		candidate, ok := processor.Find(other, relPath)
		if !ok || !candidate.AutoLink() || candidate.ClassIdentifier() != prop.ClassIdentifier() {
			continue
		}
		found = append(found, scored{candidate, owner.Position().Distance(other.Position())})
	}
	slices.SortStableFunc(found, func(a, b scored) int { return cmp.Compare(a.dist, b.dist) })

	out := make([]property.Property, len(found))
	for i, s := range found {
		out[i] = s.prop
	}
	return out
}
