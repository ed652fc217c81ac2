package network

import (
	"fmt"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/types"
)

// Connection is an edge from an outport to an inport.
type Connection struct {
	Outport *port.Outport
	Inport  *port.Inport
}

// String formats the connection as "A.out -> B.in".
func (c Connection) String() string {
	return fmt.Sprintf("%s -> %s", portName(c.Outport), portName(c.Inport))
}

func portName(pt port.Port) string {
	if pt == nil {
		return "<nil>"
	}
	if owner, ok := processor.OwnerOfPort(pt); ok {
		return owner.Identifier() + "." + pt.Identifier()
	}
	return pt.Identifier()
}

// ConnectOption modifies AddConnection.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	replace bool
}

// WithReplace lets AddConnection replace the existing connection of a
// single inport instead of failing with ErrAlreadyConnected.
func WithReplace() ConnectOption {
	return func(o *connectOptions) { o.replace = true }
}

// AddConnection connects out to in. Connecting an already connected pair
// returns the existing connection. On success the inport's processor is
// invalidated at InvalidOutput.
func (n *Network) AddConnection(out *port.Outport, in *port.Inport, opts ...ConnectOption) (c Connection, err error) {
	defer func() { n.recordEdit("add_connection", err) }()

	var o connectOptions
	for _, opt := range opts {
		opt(&o)
	}

	if out == nil || in == nil {
		return Connection{}, errors.WrapInvalid(errors.ErrInvalidData, "Network", "AddConnection", "nil port check")
	}
	outOwner, inOwner, err := n.portOwners(out, in)
	if err != nil {
		return Connection{}, err
	}

	c = Connection{Outport: out, Inport: in}
	n.mu.RLock()
	_, exists := n.connIndex[c]
	n.mu.RUnlock()
	if exists {
		return c, nil
	}

	if !in.CanConnectTo(out) {
		return Connection{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s (%s) to %s (%s)", errors.ErrIncompatibleTypes,
				portName(out), out.DataType(), portName(in), in.DataType()),
			"Network", "AddConnection", "type check")
	}
	if !in.IsMulti() && in.IsConnected() && !o.replace {
		return Connection{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrAlreadyConnected, portName(in)),
			"Network", "AddConnection", "inport check")
	}

	n.BeginBatch()
	defer n.EndBatch()

	if !in.IsMulti() {
		for _, prev := range in.ConnectedOutports() {
			n.removeConnection(Connection{Outport: prev, Inport: in})
		}
	}

	n.notify(Event{Kind: EventConnectionWillAdd, Connection: c})

	port.Connect(out, in)
	n.mu.Lock()
	n.connections = append(n.connections, c)
	n.connIndex[c] = struct{}{}
	n.mu.Unlock()

	inOwner.Invalidate(types.InvalidOutput)
	n.modified.Store(true)
	n.logger.Debug("Connection added", "from", outOwner.Identifier(), "to", inOwner.Identifier(),
		"outport", out.Identifier(), "inport", in.Identifier())
	n.notify(Event{Kind: EventConnectionAdded, Connection: c})
	return c, nil
}

func (n *Network) portOwners(out *port.Outport, in *port.Inport) (processor.Processor, processor.Processor, error) {
	outOwner, okOut := processor.OwnerOfPort(out)
	inOwner, okIn := processor.OwnerOfPort(in)

	n.mu.RLock()
	member := okOut && okIn && n.contains(outOwner) && n.contains(inOwner)
	n.mu.RUnlock()
	if !member {
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s -> %s", errors.ErrForeignPort, portName(out), portName(in)),
			"Network", "AddConnection", "membership check")
	}
	return outOwner, inOwner, nil
}

// RemoveConnection disconnects out from in.
func (n *Network) RemoveConnection(out *port.Outport, in *port.Inport) (err error) {
	defer func() { n.recordEdit("remove_connection", err) }()

	c := Connection{Outport: out, Inport: in}
	n.mu.RLock()
	_, exists := n.connIndex[c]
	n.mu.RUnlock()
	if !exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: connection %s", errors.ErrNotFound, c),
			"Network", "RemoveConnection", "lookup")
	}
	n.removeConnection(c)
	return nil
}

// removeConnection removes a connection known to exist.
func (n *Network) removeConnection(c Connection) {
	n.notify(Event{Kind: EventConnectionWillRemove, Connection: c})

	n.mu.Lock()
	delete(n.connIndex, c)
	for i, x := range n.connections {
		if x == c {
			n.connections = append(n.connections[:i:i], n.connections[i+1:]...)
			break
		}
	}
	n.mu.Unlock()
	port.Disconnect(c.Outport, c.Inport)

	if owner, ok := processor.OwnerOfPort(c.Inport); ok {
		owner.Invalidate(types.InvalidOutput)
	}
	n.modified.Store(true)
	n.notify(Event{Kind: EventConnectionRemoved, Connection: c})
}
