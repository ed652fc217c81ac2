// Package processor defines the Processor contract and the Base type every
// processor embeds. Base keeps ports, properties and the invalidation state;
// the embedding type supplies Process.
package processor

import (
	"context"
	"fmt"
	"slices"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/observer"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/property"
	"github.com/c360/vizflow/types"
)

// Info describes a processor class.
type Info struct {
	ClassIdentifier string   `json:"class_identifier"`
	DisplayName     string   `json:"display_name"`
	Category        string   `json:"category"`
	Description     string   `json:"description,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Processor is a node of the network.
type Processor interface {
	Identifier() string
	SetIdentifier(id string) error
	Info() Info

	Inports() []*port.Inport
	Outports() []*port.Outport
	Inport(id string) (*port.Inport, bool)
	Outport(id string) (*port.Outport, bool)
	Properties() *property.Collection
	property.Owner

	InvalidationLevel() types.InvalidationLevel
	Invalidate(level types.InvalidationLevel)
	SetValid()
	IsReady() bool
	IsSource() bool
	IsSink() bool

	Position() types.Position
	SetPosition(types.Position)

	Observe(fn func(Event)) *observer.Subscription
	Host() Host

	// Process computes outputs from inputs and properties.
	Process(ctx context.Context) error

	base() *Base
}

// ResourceInitializer is implemented by processors that hold resources which
// must be rebuilt when invalidated at InvalidResources.
type ResourceInitializer interface {
	InitializeResources(ctx context.Context) error
}

// Deinitializer is implemented by processors that release resources when
// removed from the network.
type Deinitializer interface {
	Deinitialize()
}

// NotReadyHandler is implemented by processors that react to being skipped
// because an inport had no data.
type NotReadyHandler interface {
	NotReady()
}

// Host is the network a processor is attached to.
type Host interface {
	OnPropertyChange(p Processor, prop property.Property)
	OnInvalidationBegin(p Processor)
	OnInvalidationEnd(p Processor)
	OnIdentifierChange(p Processor, oldID, newID string) error
	OnPortRemove(p Processor, pt port.Port)
	// OnPropertyRemove runs before prop, or a composite holding it, is
	// detached from p.
	OnPropertyRemove(p Processor, prop property.Property)
	// OnProcessBegin and OnProcessEnd bracket every Process call.
	OnProcessBegin(p Processor)
	OnProcessEnd(p Processor)
}

// EventKind identifies a processor event.
type EventKind int

// Processor event kinds
const (
	EventInvalidated EventKind = iota
	EventProcessed
	EventIdentifierChanged
	EventPortAdded
	EventPortRemoved
)

// String returns the string representation of the kind
func (k EventKind) String() string {
	switch k {
	case EventInvalidated:
		return "invalidated"
	case EventProcessed:
		return "processed"
	case EventIdentifierChanged:
		return "identifier_changed"
	case EventPortAdded:
		return "port_added"
	case EventPortRemoved:
		return "port_removed"
	default:
		return "unknown"
	}
}

// Event is delivered to processor observers.
type Event struct {
	Kind          EventKind
	Processor     Processor
	Level         types.InvalidationLevel
	OldIdentifier string
	Port          port.Port
}

// Base implements everything in Processor except Process.
type Base struct {
	self       Processor
	identifier string
	info       Info
	position   types.Position

	inports    []*port.Inport
	outports   []*port.Outport
	properties *property.Collection

	level      types.InvalidationLevel
	processing bool
	host       Host
	events     observer.Subject[Event]
}

// Init prepares the embedded Base. self is the embedding processor. The
// identifier defaults to the class display name.
func (b *Base) Init(self Processor, info Info) {
	b.self = self
	b.info = info
	b.identifier = info.DisplayName
	if b.identifier == "" {
		b.identifier = info.ClassIdentifier
	}
	b.properties = property.NewCollection(self)
	b.level = types.InvalidResources
}

func (b *Base) base() *Base { return b }

// Identifier returns the network scoped identifier.
func (b *Base) Identifier() string { return b.identifier }

// SetIdentifier renames the processor. Attached processors ask their network
// first, which rejects identifiers already in use.
func (b *Base) SetIdentifier(id string) error {
	if id == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Processor", "SetIdentifier", "empty identifier check")
	}
	if id == b.identifier {
		return nil
	}
	old := b.identifier
	if b.host != nil {
		if err := b.host.OnIdentifierChange(b.self, old, id); err != nil {
			return err
		}
	}
	b.identifier = id
	b.events.Notify(Event{Kind: EventIdentifierChanged, Processor: b.self, OldIdentifier: old})
	return nil
}

// Info returns the class description.
func (b *Base) Info() Info { return b.info }

// Position returns the editor position.
func (b *Base) Position() types.Position { return b.position }

// SetPosition moves the processor in the editor.
func (b *Base) SetPosition(p types.Position) { b.position = p }

// Inports returns the inports in declaration order.
func (b *Base) Inports() []*port.Inport { return slices.Clone(b.inports) }

// Outports returns the outports in declaration order.
func (b *Base) Outports() []*port.Outport { return slices.Clone(b.outports) }

// Inport returns the inport with the given identifier.
func (b *Base) Inport(id string) (*port.Inport, bool) {
	for _, in := range b.inports {
		if in.Identifier() == id {
			return in, true
		}
	}
	return nil, false
}

// Outport returns the outport with the given identifier.
func (b *Base) Outport(id string) (*port.Outport, bool) {
	for _, out := range b.outports {
		if out.Identifier() == id {
			return out, true
		}
	}
	return nil, false
}

func (b *Base) hasPort(id string) bool {
	_, in := b.Inport(id)
	_, out := b.Outport(id)
	return in || out
}

// AddInport declares an inport. Port identifiers are unique per processor.
func (b *Base) AddInport(in *port.Inport) error {
	if err := b.checkNewPort(in); err != nil {
		return err
	}
	in.SetOwner(b.self)
	b.inports = append(b.inports, in)
	b.events.Notify(Event{Kind: EventPortAdded, Processor: b.self, Port: in})
	return nil
}

// AddOutport declares an outport. Port identifiers are unique per processor.
func (b *Base) AddOutport(out *port.Outport) error {
	if err := b.checkNewPort(out); err != nil {
		return err
	}
	out.SetOwner(b.self)
	b.outports = append(b.outports, out)
	b.events.Notify(Event{Kind: EventPortAdded, Processor: b.self, Port: out})
	return nil
}

func (b *Base) checkNewPort(pt port.Port) error {
	if pt == nil || pt.Identifier() == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Processor", "AddPort", "port check")
	}
	if pt.Owner() != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port %q already has an owner", errors.ErrInvalidData, pt.Identifier()),
			"Processor", "AddPort", "ownership check")
	}
	if b.hasPort(pt.Identifier()) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port %q on %s", errors.ErrDuplicateIdentifier, pt.Identifier(), b.identifier),
			"Processor", "AddPort", "identifier check")
	}
	return nil
}

// RemovePort removes an inport or outport. An attached network drops the
// port's connections first.
func (b *Base) RemovePort(id string) error {
	var pt port.Port
	if in, ok := b.Inport(id); ok {
		pt = in
	} else if out, ok := b.Outport(id); ok {
		pt = out
	} else {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port %q on %s", errors.ErrNotFound, id, b.identifier),
			"Processor", "RemovePort", "lookup")
	}

	if b.host != nil {
		b.host.OnPortRemove(b.self, pt)
	}
	errors.Invariant(!pt.IsConnected(), "port %s.%s still connected after removal", b.identifier, id)

	switch p := pt.(type) {
	case *port.Inport:
		b.inports = slices.DeleteFunc(b.inports, func(x *port.Inport) bool { return x == p })
	case *port.Outport:
		b.outports = slices.DeleteFunc(b.outports, func(x *port.Outport) bool { return x == p })
	}
	pt.SetOwner(nil)
	b.events.Notify(Event{Kind: EventPortRemoved, Processor: b.self, Port: pt})
	return nil
}

// Properties returns the processor's property collection.
func (b *Base) Properties() *property.Collection { return b.properties }

// AddProperty adds a property owned by the processor.
func (b *Base) AddProperty(p property.Property) error {
	return b.properties.Add(p)
}

// AddProperties adds several properties, stopping at the first error.
func (b *Base) AddProperties(props ...property.Property) error {
	for _, p := range props {
		if err := b.properties.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// OwnerPath implements property.Owner.
func (b *Base) OwnerPath() []string { return []string{b.identifier} }

// OnPropertyChange implements property.Owner: invalidate at the property's
// level, then let the network follow links from the property.
func (b *Base) OnPropertyChange(p property.Property) {
	b.Invalidate(p.InvalidationLevel())
	if b.host != nil {
		b.host.OnPropertyChange(b.self, p)
	}
}

// OnPropertyRemove implements property.Owner by letting the host drop links
// to the property before it leaves the processor.
func (b *Base) OnPropertyRemove(p property.Property) {
	if b.host != nil {
		b.host.OnPropertyRemove(b.self, p)
	}
}

// InvalidationLevel returns the current level.
func (b *Base) InvalidationLevel() types.InvalidationLevel { return b.level }

// Invalidate escalates the level and forwards it to the outports, which
// invalidate downstream processors. Lower or equal levels do not propagate,
// so propagation stops at processors that are already invalid enough. The
// host hears about every invalidation made outside Process, escalating or
// not.
func (b *Base) Invalidate(level types.InvalidationLevel) {
	if level == types.Valid {
		return
	}
	notifyHost := b.host != nil && !b.processing
	if notifyHost {
		b.host.OnInvalidationBegin(b.self)
	}
	if level > b.level {
		b.level = level
		b.events.Notify(Event{Kind: EventInvalidated, Processor: b.self, Level: level})
		for _, out := range b.outports {
			out.Invalidate(level)
		}
	}
	if notifyHost {
		b.host.OnInvalidationEnd(b.self)
	}
}

// SetValid marks the processor and its ports current.
func (b *Base) SetValid() {
	b.level = types.Valid
	for _, in := range b.inports {
		in.SetValid()
	}
	for _, out := range b.outports {
		out.SetValid()
	}
}

// IsReady reports whether every inport either has valid data or is
// optional and unconnected.
func (b *Base) IsReady() bool {
	for _, in := range b.inports {
		if in.IsOptional() && !in.IsConnected() {
			continue
		}
		if !in.IsReady() {
			return false
		}
	}
	return true
}

// IsSource reports whether the processor has no inports.
func (b *Base) IsSource() bool { return len(b.inports) == 0 }

// IsSink reports whether the processor has no outports.
func (b *Base) IsSink() bool { return len(b.outports) == 0 }

// IsProcessing reports whether Process is running.
func (b *Base) IsProcessing() bool { return b.processing }

// Observe registers fn for processor events.
func (b *Base) Observe(fn func(Event)) *observer.Subscription {
	return b.events.Subscribe(fn)
}

// Host returns the attached network or nil.
func (b *Base) Host() Host { return b.host }
