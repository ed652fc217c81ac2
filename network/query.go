package network

import (
	"slices"

	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
)

// Processor returns the member with the given identifier.
func (n *Network) Processor(identifier string) (processor.Processor, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.processors[identifier]
	return p, ok
}

// Processors returns the members in insertion order.
func (n *Network) Processors() []processor.Processor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.order)
}

// Len returns the number of processors.
func (n *Network) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.order)
}

// Contains reports whether p is a member.
func (n *Network) Contains(p processor.Processor) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.contains(p)
}

// Connections returns the connections in insertion order.
func (n *Network) Connections() []Connection {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.connections)
}

// Connection returns the connection between out and in.
func (n *Network) Connection(out *port.Outport, in *port.Inport) (Connection, bool) {
	c := Connection{Outport: out, Inport: in}
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.connIndex[c]
	return c, ok
}

// IsConnected reports whether out is connected to in.
func (n *Network) IsConnected(out *port.Outport, in *port.Inport) bool {
	_, ok := n.Connection(out, in)
	return ok
}

// ConnectionsOf returns the connections touching any port of p, in
// insertion order.
func (n *Network) ConnectionsOf(p processor.Processor) []Connection {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var out []Connection
	for _, c := range n.connections {
		if ownedBy(c.Outport, p) || ownedBy(c.Inport, p) {
			out = append(out, c)
		}
	}
	return out
}

func ownedBy(pt port.Port, p processor.Processor) bool {
	owner, ok := processor.OwnerOfPort(pt)
	return ok && owner == p
}

// Links returns the links in insertion order.
func (n *Network) Links() []Link {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.links)
}

// IsLinked reports whether src is linked to dst.
func (n *Network) IsLinked(src, dst property.Property) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.linkIndex[Link{Source: src, Destination: dst}]
	return ok
}

// IsLinkedBidirectional reports whether a and b are linked both ways.
func (n *Network) IsLinkedBidirectional(a, b property.Property) bool {
	return n.IsLinked(a, b) && n.IsLinked(b, a)
}

// LinksFor returns the links with prop at either end.
func (n *Network) LinksFor(prop property.Property) []Link {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var out []Link
	for _, l := range n.links {
		if l.Source == prop || l.Destination == prop {
			out = append(out, l)
		}
	}
	return out
}

// LinksOfProcessor returns the links touching any property of p,
// including nested properties.
func (n *Network) LinksOfProcessor(p processor.Processor) []Link {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var out []Link
	for _, l := range n.links {
		if property.IsDescendant(l.Source, p) || property.IsDescendant(l.Destination, p) {
			out = append(out, l)
		}
	}
	return out
}

// LinksBetweenProcessors returns the links between properties of a and b in
// either direction.
func (n *Network) LinksBetweenProcessors(a, b processor.Processor) []Link {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var out []Link
	for _, l := range n.links {
		srcA, dstB := property.IsDescendant(l.Source, a), property.IsDescendant(l.Destination, b)
		srcB, dstA := property.IsDescendant(l.Source, b), property.IsDescendant(l.Destination, a)
		if (srcA && dstB) || (srcB && dstA) {
			out = append(out, l)
		}
	}
	return out
}

// PropertiesLinkedTo returns every property reachable from prop through
// outgoing links, breadth first, excluding prop itself.
func (n *Network) PropertiesLinkedTo(prop property.Property) []property.Property {
	n.mu.RLock()
	defer n.mu.RUnlock()

	seen := map[property.Property]bool{prop: true}
	queue := []property.Property{prop}
	var out []property.Property
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dst := range n.bySource[cur] {
			if seen[dst] {
				continue
			}
			seen[dst] = true
			out = append(out, dst)
			queue = append(queue, dst)
		}
	}
	return out
}

// IsPortInNetwork reports whether pt belongs to a member processor.
func (n *Network) IsPortInNetwork(pt port.Port) bool {
	owner, ok := processor.OwnerOfPort(pt)
	if !ok {
		return false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.contains(owner)
}

// IsPropertyInNetwork reports whether prop belongs to a member processor.
func (n *Network) IsPropertyInNetwork(prop property.Property) bool {
	if prop == nil {
		return false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ownsProperty(prop)
}

// Property resolves a path whose first element is a processor identifier.
func (n *Network) Property(path []string) (property.Property, bool) {
	if len(path) < 2 {
		return nil, false
	}
	p, ok := n.Processor(path[0])
	if !ok {
		return nil, false
	}
	return processor.Find(p, path[1:])
}

// DirectPredecessors returns the processors with a connection into p.
func (n *Network) DirectPredecessors(p processor.Processor) []processor.Processor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.neighbours(p, false)
}

// DirectSuccessors returns the processors p has a connection into.
func (n *Network) DirectSuccessors(p processor.Processor) []processor.Processor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.neighbours(p, true)
}

// neighbours lists adjacent processors once each, in connection order.
// Callers hold mu.
func (n *Network) neighbours(p processor.Processor, downstream bool) []processor.Processor {
	var out []processor.Processor
	for _, c := range n.connections {
		from, okFrom := processor.OwnerOfPort(c.Outport)
		to, okTo := processor.OwnerOfPort(c.Inport)
		if !okFrom || !okTo {
			continue
		}
		var next processor.Processor
		switch {
		case downstream && from == p:
			next = to
		case !downstream && to == p:
			next = from
		default:
			continue
		}
		if !slices.Contains(out, next) {
			out = append(out, next)
		}
	}
	return out
}

// Predecessors returns every processor p depends on, nearest first.
func (n *Network) Predecessors(p processor.Processor) []processor.Processor {
	return n.reachable(p, false)
}

// Successors returns every processor depending on p, nearest first.
func (n *Network) Successors(p processor.Processor) []processor.Processor {
	return n.reachable(p, true)
}

func (n *Network) reachable(p processor.Processor, downstream bool) []processor.Processor {
	n.mu.RLock()
	defer n.mu.RUnlock()

	seen := map[processor.Processor]bool{p: true}
	queue := []processor.Processor{p}
	var out []processor.Processor
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range n.neighbours(cur, downstream) {
			if seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}

// ConnectedGroups partitions the processors into groups joined by
// connections, ignoring direction. Groups and their members follow
// insertion order.
func (n *Network) ConnectedGroups() [][]processor.Processor {
	n.mu.RLock()
	defer n.mu.RUnlock()

	parent := make(map[processor.Processor]processor.Processor, len(n.order))
	find := func(p processor.Processor) processor.Processor {
		for parent[p] != p {
			parent[p] = parent[parent[p]]
			p = parent[p]
		}
		return p
	}
	for _, p := range n.order {
		parent[p] = p
	}
	for _, c := range n.connections {
		from, okFrom := processor.OwnerOfPort(c.Outport)
		to, okTo := processor.OwnerOfPort(c.Inport)
		if !okFrom || !okTo {
			continue
		}
		ra, rb := find(from), find(to)
		if ra != rb {
			parent[rb] = ra
		}
	}

	index := make(map[processor.Processor]int)
	var groups [][]processor.Processor
	for _, p := range n.order {
		root := find(p)
		i, ok := index[root]
		if !ok {
			i = len(groups)
			index[root] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], p)
	}
	return groups
}
