// Package port implements typed processor endpoints. Outports publish
// immutable data handles; inports read the handles of the outports they are
// bound to and forward invalidation to their processor.
package port

import (
	"slices"
	"sync/atomic"

	"github.com/c360/vizflow/types"
)

// Direction for data flow
type Direction string

// Direction constants for port data flow
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// DataType tags the kind of data a port carries.
type DataType string

// AnyType is accepted by inports that take data of every type.
const AnyType DataType = "any"

// Owner is the processor side of a port.
type Owner interface {
	Identifier() string
	Invalidate(level types.InvalidationLevel)
}

// Port is the behavior shared by inports and outports.
type Port interface {
	Identifier() string
	Direction() Direction
	DataType() DataType
	Owner() Owner
	SetOwner(Owner)
	IsConnected() bool
}

// Data is an immutable handle to published port data. Publishers must not
// mutate Value after publishing it.
type Data struct {
	Value      any
	Type       DataType
	Generation uint64
}

// Outport publishes data to any number of inports.
type Outport struct {
	identifier  string
	dataType    DataType
	description string
	owner       Owner

	connected  []*Inport
	level      types.InvalidationLevel
	data       atomic.Pointer[Data]
	generation atomic.Uint64
}

// NewOutport creates an outport carrying dataType.
func NewOutport(identifier string, dataType DataType, description string) *Outport {
	return &Outport{identifier: identifier, dataType: dataType, description: description, level: types.InvalidOutput}
}

// Identifier returns the port identifier.
func (o *Outport) Identifier() string { return o.identifier }

// Direction returns DirectionOutput.
func (o *Outport) Direction() Direction { return DirectionOutput }

// DataType returns the data type tag.
func (o *Outport) DataType() DataType { return o.dataType }

// Description returns the human readable description.
func (o *Outport) Description() string { return o.description }

// Owner returns the owning processor.
func (o *Outport) Owner() Owner { return o.owner }

// SetOwner is called by the processor that adds the port.
func (o *Outport) SetOwner(owner Owner) { o.owner = owner }

// IsConnected reports whether any inport is bound.
func (o *Outport) IsConnected() bool { return len(o.connected) > 0 }

// ConnectedInports returns the bound inports in connection order.
func (o *Outport) ConnectedInports() []*Inport { return slices.Clone(o.connected) }

// IsConnectedTo reports whether in is bound to this outport.
func (o *Outport) IsConnectedTo(in *Inport) bool { return slices.Contains(o.connected, in) }

// Publish swaps in a new data handle. Readers see either the previous or the
// new handle, never a partial value.
func (o *Outport) Publish(value any) *Data {
	d := &Data{Value: value, Type: o.dataType, Generation: o.generation.Add(1)}
	o.data.Store(d)
	return d
}

// Data returns the current handle or nil.
func (o *Outport) Data() *Data { return o.data.Load() }

// HasData reports whether anything was published.
func (o *Outport) HasData() bool { return o.data.Load() != nil }

// Clear drops the published handle.
func (o *Outport) Clear() { o.data.Store(nil) }

// InvalidationLevel returns the outport's staleness.
func (o *Outport) InvalidationLevel() types.InvalidationLevel { return o.level }

// IsReady reports whether consumers may read the outport.
func (o *Outport) IsReady() bool { return o.level == types.Valid && o.HasData() }

// Invalidate marks the outport stale and invalidates every bound inport.
func (o *Outport) Invalidate(level types.InvalidationLevel) {
	o.level = types.MaxLevel(o.level, level)
	for _, in := range slices.Clone(o.connected) {
		in.Invalidate(level)
	}
}

// SetValid marks the outport current. Called after its processor computed.
func (o *Outport) SetValid() { o.level = types.Valid }

// InportOption configures an inport.
type InportOption func(*Inport)

// Multi lets the inport bind to several outports.
func Multi() InportOption { return func(i *Inport) { i.multi = true } }

// Optional lets the processor run while the inport is unconnected.
func Optional() InportOption { return func(i *Inport) { i.optional = true } }

// Accepting adds data types the inport accepts besides its own.
func Accepting(dataTypes ...DataType) InportOption {
	return func(i *Inport) { i.accepts = append(i.accepts, dataTypes...) }
}

// WithPropagation caps the level forwarded to the owning processor when an
// upstream outport is invalidated. The default is InvalidOutput.
func WithPropagation(level types.InvalidationLevel) InportOption {
	return func(i *Inport) { i.propagation = level }
}

// Inport receives data from one outport, or several for multi inports.
type Inport struct {
	identifier  string
	dataType    DataType
	description string
	accepts     []DataType
	multi       bool
	optional    bool
	propagation types.InvalidationLevel
	owner       Owner

	connected []*Outport
	changed   bool
}

// NewInport creates an inport for dataType.
func NewInport(identifier string, dataType DataType, description string, opts ...InportOption) *Inport {
	in := &Inport{
		identifier:  identifier,
		dataType:    dataType,
		description: description,
		propagation: types.InvalidOutput,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Identifier returns the port identifier.
func (i *Inport) Identifier() string { return i.identifier }

// Direction returns DirectionInput.
func (i *Inport) Direction() Direction { return DirectionInput }

// DataType returns the data type tag.
func (i *Inport) DataType() DataType { return i.dataType }

// Description returns the human readable description.
func (i *Inport) Description() string { return i.description }

// Owner returns the owning processor.
func (i *Inport) Owner() Owner { return i.owner }

// SetOwner is called by the processor that adds the port.
func (i *Inport) SetOwner(owner Owner) { i.owner = owner }

// IsMulti reports whether several outports may bind.
func (i *Inport) IsMulti() bool { return i.multi }

// IsOptional reports whether the processor may run unconnected.
func (i *Inport) IsOptional() bool { return i.optional }

// Propagation returns the cap applied to forwarded invalidation.
func (i *Inport) Propagation() types.InvalidationLevel { return i.propagation }

// IsConnected reports whether any outport is bound.
func (i *Inport) IsConnected() bool { return len(i.connected) > 0 }

// ConnectedOutports returns the bound outports in connection order.
func (i *Inport) ConnectedOutports() []*Outport { return slices.Clone(i.connected) }

// IsConnectedTo reports whether out is bound to this inport.
func (i *Inport) IsConnectedTo(out *Outport) bool { return slices.Contains(i.connected, out) }

// Accepts reports whether data of type t may flow into the inport.
func (i *Inport) Accepts(t DataType) bool {
	if i.dataType == AnyType || i.dataType == t {
		return true
	}
	return slices.Contains(i.accepts, t)
}

// CanConnectTo reports whether out's data type is accepted.
func (i *Inport) CanConnectTo(out *Outport) bool {
	return out != nil && i.Accepts(out.DataType())
}

// Changed reports whether upstream data changed since the processor last ran.
func (i *Inport) Changed() bool { return i.changed }

// SetValid clears the changed flag.
func (i *Inport) SetValid() { i.changed = false }

// Invalidate forwards upstream invalidation to the owner, capped by the
// inport's propagation level.
func (i *Inport) Invalidate(level types.InvalidationLevel) {
	i.changed = true
	if i.owner != nil {
		i.owner.Invalidate(types.MinLevel(level, i.propagation))
	}
}

// IsReady reports whether every bound outport has valid data. An
// unconnected inport is never ready.
func (i *Inport) IsReady() bool {
	if len(i.connected) == 0 {
		return false
	}
	for _, out := range i.connected {
		if !out.IsReady() {
			return false
		}
	}
	return true
}

// Data returns the handle of the first bound outport, or nil.
func (i *Inport) Data() *Data {
	if len(i.connected) == 0 {
		return nil
	}
	return i.connected[0].Data()
}

// AllData returns the handles of every bound outport that has data.
func (i *Inport) AllData() []*Data {
	out := make([]*Data, 0, len(i.connected))
	for _, o := range i.connected {
		if d := o.Data(); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Connect binds out and in symmetrically. Callers validate first; the
// network is the only caller.
func Connect(out *Outport, in *Inport) {
	if out.IsConnectedTo(in) {
		return
	}
	out.connected = append(out.connected, in)
	in.connected = append(in.connected, out)
}

// Disconnect removes the binding on both sides.
func Disconnect(out *Outport, in *Inport) {
	out.connected = slices.DeleteFunc(out.connected, func(x *Inport) bool { return x == in })
	in.connected = slices.DeleteFunc(in.connected, func(x *Outport) bool { return x == out })
}

// Value returns the first handle's value as T.
func Value[T any](in *Inport) (T, bool) {
	var zero T
	d := in.Data()
	if d == nil {
		return zero, false
	}
	v, ok := d.Value.(T)
	return v, ok
}

// Values returns the values of every bound handle that holds a T.
func Values[T any](in *Inport) []T {
	var out []T
	for _, d := range in.AllData() {
		if v, ok := d.Value.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
