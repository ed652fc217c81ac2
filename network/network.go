// Package network implements the ProcessorNetwork: the single owner of
// processors, port connections and property links. Every structural edit
// goes through a Network so that membership rules hold and observers see a
// consistent graph.
//
// A Network is driven from one evaluation goroutine. Structural edits,
// property edits and processing happen there; the internal lock only makes
// read-only queries from other goroutines (metrics, event sinks) safe.
package network

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/metric"
	"github.com/c360/vizflow/observer"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
	"github.com/c360/vizflow/registry"
)

// Dependencies bundles the collaborators of a network.
type Dependencies struct {
	Registry        *registry.Registry      // Processor and property factories (required by CreateProcessor)
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	Processor       processor.Dependencies  // Handed to processor factories
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Network is the processor network.
type Network struct {
	deps    Dependencies
	logger  *slog.Logger
	metrics *metric.Metrics

	mu          sync.RWMutex
	processors  map[string]processor.Processor
	order       []processor.Processor
	watchers    map[processor.Processor]*observer.Subscription
	connections []Connection
	connIndex   map[Connection]struct{}
	links       []Link
	linkIndex   map[Link]struct{}
	bySource    map[property.Property][]property.Property

	events observer.Subject[Event]

	batch        int
	pending      bool
	invalidating int
	processing   int
	modified     atomic.Bool
}

var _ processor.Host = (*Network)(nil)

// New creates an empty network.
func New(deps Dependencies) *Network {
	n := &Network{
		deps:       deps,
		logger:     deps.GetLogger().With("component", "network"),
		processors: make(map[string]processor.Processor),
		watchers:   make(map[processor.Processor]*observer.Subscription),
		connIndex:  make(map[Connection]struct{}),
		linkIndex:  make(map[Link]struct{}),
		bySource:   make(map[property.Property][]property.Property),
	}
	if deps.MetricsRegistry != nil {
		n.metrics = deps.MetricsRegistry.CoreMetrics()
	}
	return n
}

// Dependencies returns the collaborators the network was created with.
func (n *Network) Dependencies() Dependencies { return n.deps }

// Observe registers fn for network events. Observers run synchronously on
// the goroutine that made the change, in registration order.
func (n *Network) Observe(fn func(Event)) *observer.Subscription {
	return n.events.Subscribe(fn)
}

func (n *Network) notify(ev Event) {
	n.events.Notify(ev)
}

// Modified reports whether the network changed since SetModified(false).
func (n *Network) Modified() bool { return n.modified.Load() }

// SetModified sets the modified flag.
func (n *Network) SetModified(v bool) { n.modified.Store(v) }

// BeginBatch starts a batch of edits. Evaluation requests raised while a
// batch is open are coalesced into one request when the outermost batch ends.
func (n *Network) BeginBatch() {
	n.batch++
}

// EndBatch closes a batch opened with BeginBatch.
func (n *Network) EndBatch() {
	errors.Invariant(n.batch > 0, "EndBatch without BeginBatch")
	n.batch--
	if n.batch == 0 && n.pending {
		n.pending = false
		n.notify(Event{Kind: EventEvaluateRequest})
	}
}

// Batch runs fn inside a batch.
func (n *Network) Batch(fn func() error) error {
	n.BeginBatch()
	defer n.EndBatch()
	return fn()
}

// IsBatched reports whether a batch is open.
func (n *Network) IsBatched() bool { return n.batch > 0 }

// RequestEvaluate asks the evaluator for a pass.
func (n *Network) RequestEvaluate() {
	if n.batch > 0 {
		n.pending = true
		return
	}
	n.notify(Event{Kind: EventEvaluateRequest})
}

func (n *Network) recordEdit(op string, err error) {
	if n.metrics == nil {
		return
	}
	n.metrics.RecordEdit(op, err)
	if err == nil {
		n.mu.RLock()
		procs, conns, links := len(n.order), len(n.connections), len(n.links)
		n.mu.RUnlock()
		n.metrics.RecordNetworkSize(procs, conns, links)
	}
}

// contains reports whether p is a member. Callers hold mu.
func (n *Network) contains(p processor.Processor) bool {
	if p == nil {
		return false
	}
	q, ok := n.processors[p.Identifier()]
	return ok && q == p
}

// AddProcessor adds p under its identifier and takes ownership of it.
func (n *Network) AddProcessor(p processor.Processor) (err error) {
	defer func() { n.recordEdit("add_processor", err) }()

	if p == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Network", "AddProcessor", "nil processor check")
	}
	if p.Host() != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: processor %q belongs to another network", errors.ErrInvalidData, p.Identifier()),
			"Network", "AddProcessor", "ownership check")
	}
	n.mu.RLock()
	_, exists := n.processors[p.Identifier()]
	n.mu.RUnlock()
	if exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: processor %q", errors.ErrDuplicateIdentifier, p.Identifier()),
			"Network", "AddProcessor", "identifier check")
	}

	n.notify(Event{Kind: EventProcessorWillAdd, Processor: p})

	n.mu.Lock()
	n.processors[p.Identifier()] = p
	n.order = append(n.order, p)
	n.mu.Unlock()

	processor.Bind(p, n)
	sub := p.Observe(n.forward)
	n.mu.Lock()
	n.watchers[p] = sub
	n.mu.Unlock()

	n.modified.Store(true)
	n.logger.Debug("Processor added", "processor", p.Identifier(), "class", p.Info().ClassIdentifier)
	n.notify(Event{Kind: EventProcessorAdded, Processor: p})
	n.RequestEvaluate()
	return nil
}

// forward re-emits processor events as network events.
func (n *Network) forward(ev processor.Event) {
	switch ev.Kind {
	case processor.EventInvalidated:
		n.notify(Event{Kind: EventProcessorInvalidated, Processor: ev.Processor, Level: ev.Level})
	case processor.EventProcessed:
		n.notify(Event{Kind: EventProcessorProcessed, Processor: ev.Processor})
	case processor.EventIdentifierChanged:
		n.modified.Store(true)
		n.notify(Event{Kind: EventProcessorRenamed, Processor: ev.Processor, OldIdentifier: ev.OldIdentifier})
	}
}

// CreateProcessor builds a processor of the given class through the
// registry and adds it. An empty identifier picks a unique one derived
// from the class display name.
func (n *Network) CreateProcessor(classIdentifier, identifier string) (processor.Processor, error) {
	if n.deps.Registry == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Network", "CreateProcessor", "registry check")
	}
	p, err := n.deps.Registry.Create(classIdentifier, n.deps.Processor)
	if err != nil {
		return nil, err
	}
	if identifier == "" {
		identifier = n.UniqueIdentifier(p.Identifier())
	}
	if err := p.SetIdentifier(identifier); err != nil {
		return nil, err
	}
	if err := n.AddProcessor(p); err != nil {
		processor.Destroy(p)
		return nil, err
	}
	return p, nil
}

var numberSuffix = regexp.MustCompile(`^(.*?) (\d+)$`)

// UniqueIdentifier returns base when it is free, otherwise base with the
// lowest free numeric suffix starting at 2.
func (n *Network) UniqueIdentifier(base string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if _, taken := n.processors[base]; !taken {
		return base
	}
	root := base
	if m := numberSuffix.FindStringSubmatch(base); m != nil {
		root = m[1]
	}
	for i := 2; ; i++ {
		candidate := root + " " + strconv.Itoa(i)
		if _, taken := n.processors[candidate]; !taken {
			return candidate
		}
	}
}

// RenameProcessor changes the identifier of a member processor.
func (n *Network) RenameProcessor(p processor.Processor, identifier string) (err error) {
	defer func() { n.recordEdit("rename_processor", err) }()

	n.mu.RLock()
	member := n.contains(p)
	n.mu.RUnlock()
	if !member {
		return errors.WrapInvalid(errors.ErrNotFound, "Network", "RenameProcessor", "membership check")
	}
	return p.SetIdentifier(identifier)
}

// OnIdentifierChange implements processor.Host.
func (n *Network) OnIdentifierChange(p processor.Processor, oldID, newID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if q, ok := n.processors[oldID]; !ok || q != p {
		return errors.WrapInvalid(
			fmt.Errorf("%w: processor %q", errors.ErrNotFound, oldID),
			"Network", "OnIdentifierChange", "membership check")
	}
	if _, taken := n.processors[newID]; taken {
		return errors.WrapInvalid(
			fmt.Errorf("%w: processor %q", errors.ErrDuplicateIdentifier, newID),
			"Network", "OnIdentifierChange", "identifier check")
	}
	delete(n.processors, oldID)
	n.processors[newID] = p
	return nil
}

// RemoveProcessor removes p. Every connection touching its ports and every
// link touching its properties is removed first, each with its own
// notifications; then p is detached and destroyed.
func (n *Network) RemoveProcessor(p processor.Processor) (err error) {
	defer func() { n.recordEdit("remove_processor", err) }()

	n.mu.RLock()
	member := n.contains(p)
	n.mu.RUnlock()
	if !member {
		id := "<nil>"
		if p != nil {
			id = p.Identifier()
		}
		return errors.WrapInvalid(
			fmt.Errorf("%w: processor %q", errors.ErrNotFound, id),
			"Network", "RemoveProcessor", "membership check")
	}

	n.notify(Event{Kind: EventProcessorWillRemove, Processor: p})

	n.BeginBatch()
	for _, c := range n.ConnectionsOf(p) {
		n.removeConnection(c)
	}
	for _, l := range n.LinksOfProcessor(p) {
		n.removeLink(l)
	}
	errors.Invariant(len(n.ConnectionsOf(p)) == 0, "connections of %s remain after cascade", p.Identifier())
	errors.Invariant(len(n.LinksOfProcessor(p)) == 0, "links of %s remain after cascade", p.Identifier())

	n.mu.Lock()
	delete(n.processors, p.Identifier())
	for i, q := range n.order {
		if q == p {
			n.order = append(n.order[:i:i], n.order[i+1:]...)
			break
		}
	}
	sub := n.watchers[p]
	delete(n.watchers, p)
	n.mu.Unlock()

	sub.Unsubscribe()
	processor.Bind(p, nil)
	processor.Destroy(p)
	n.EndBatch()

	n.modified.Store(true)
	n.logger.Debug("Processor removed", "processor", p.Identifier())
	n.notify(Event{Kind: EventProcessorRemoved, Processor: p})
	return nil
}

// Clear removes every processor, newest first.
func (n *Network) Clear() {
	n.BeginBatch()
	defer n.EndBatch()
	procs := n.Processors()
	for i := len(procs) - 1; i >= 0; i-- {
		if err := n.RemoveProcessor(procs[i]); err != nil {
			n.logger.Warn("Failed to remove processor during clear", "processor", procs[i].Identifier(), "error", err)
		}
	}
}

// OnPortRemove implements processor.Host by dropping the port's connections.
func (n *Network) OnPortRemove(_ processor.Processor, pt port.Port) {
	for _, c := range n.Connections() {
		if port.Port(c.Outport) == pt || port.Port(c.Inport) == pt {
			n.removeConnection(c)
		}
	}
	n.modified.Store(true)
}

// OnInvalidationBegin implements processor.Host.
func (n *Network) OnInvalidationBegin(processor.Processor) {
	n.invalidating++
}

// OnInvalidationEnd implements processor.Host. When the outermost
// invalidation of a cascade ends, one evaluation is requested, unless a
// processor is running: the pass in progress reaches downstream processors
// anyway.
func (n *Network) OnInvalidationEnd(processor.Processor) {
	n.invalidating--
	if n.invalidating == 0 && n.processing == 0 {
		n.RequestEvaluate()
	}
}

// OnProcessBegin implements processor.Host.
func (n *Network) OnProcessBegin(processor.Processor) {
	n.processing++
}

// OnProcessEnd implements processor.Host.
func (n *Network) OnProcessEnd(processor.Processor) {
	n.processing--
}

// OnPropertyRemove implements processor.Host by removing every link that
// touches prop or a property nested below it.
func (n *Network) OnPropertyRemove(_ processor.Processor, prop property.Property) {
	owner, _ := prop.(property.Owner)
	touches := func(p property.Property) bool {
		return p == prop || (owner != nil && property.IsDescendant(p, owner))
	}
	removed := false
	for _, l := range n.Links() {
		if touches(l.Source) || touches(l.Destination) {
			n.removeLink(l)
			removed = true
		}
	}
	if removed {
		n.recordEdit("remove_link", nil)
	}
}

// SetPropertyValue applies an external edit to the property at path
// (processor identifier first). Read-only properties reject external edits.
func (n *Network) SetPropertyValue(path []string, value any) error {
	prop, ok := n.Property(path)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: property %v", errors.ErrNotFound, path),
			"Network", "SetPropertyValue", "property lookup")
	}
	if prop.ReadOnly() {
		return errors.WrapInvalid(
			fmt.Errorf("%w: property %v", errors.ErrReadOnly, path),
			"Network", "SetPropertyValue", "read-only check")
	}
	if err := prop.SetValue(value); err != nil {
		return errors.Wrap(err, "Network", "SetPropertyValue", fmt.Sprintf("set %v", path))
	}
	n.modified.Store(true)
	return nil
}
