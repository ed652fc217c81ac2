package eventstream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/metric"
	"github.com/c360/vizflow/network"
	"github.com/c360/vizflow/observer"
)

// Sink receives forwarded messages.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Config controls a Forwarder.
type Config struct {
	// BufferSize is the number of messages held while sinks are busy.
	// Messages arriving on a full buffer are dropped.
	BufferSize int
	// Filter selects the events to forward. Nil forwards everything except
	// the Will* notifications.
	Filter func(network.Event) bool
}

// DefaultConfig returns the default forwarder configuration.
func DefaultConfig() Config {
	return Config{BufferSize: 1024}
}

// Dependencies of a Forwarder.
type Dependencies struct {
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
}

// Forwarder copies network events to sinks. Network observers run on the
// goroutine that edits the network, so events are queued there and
// delivered from Run.
type Forwarder struct {
	queue   chan Message
	sinks   []Sink
	filter  func(network.Event) bool
	sub     *observer.Subscription
	logger  *slog.Logger
	metrics *metric.Metrics

	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewForwarder subscribes to net. Call Run to deliver and Close to detach.
func NewForwarder(net *network.Network, cfg Config, deps Dependencies, sinks ...Sink) *Forwarder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.Filter == nil {
		cfg.Filter = withoutWillEvents
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f := &Forwarder{
		queue:  make(chan Message, cfg.BufferSize),
		sinks:  sinks,
		filter: cfg.Filter,
		logger: logger.With("component", "eventstream"),
	}
	if deps.MetricsRegistry != nil {
		f.metrics = deps.MetricsRegistry.CoreMetrics()
	}
	f.sub = net.Observe(f.enqueue)
	return f
}

func withoutWillEvents(ev network.Event) bool {
	switch ev.Kind {
	case network.EventProcessorWillAdd, network.EventProcessorWillRemove,
		network.EventConnectionWillAdd, network.EventConnectionWillRemove,
		network.EventLinkWillAdd, network.EventLinkWillRemove:
		return false
	}
	return true
}

func (f *Forwarder) enqueue(ev network.Event) {
	if !f.filter(ev) {
		return
	}
	select {
	case f.queue <- NewMessage(ev):
	default:
		if f.dropped.Add(1) == 1 {
			f.logger.Warn("Event buffer full, dropping events")
		}
	}
}

// Dropped returns the number of events lost to a full buffer.
func (f *Forwarder) Dropped() uint64 { return f.dropped.Load() }

// Run delivers queued messages until ctx is done. A failing sink is logged
// and does not stop delivery to the others.
func (f *Forwarder) Run(ctx context.Context) error {
	defer f.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-f.queue:
			f.deliver(ctx, msg)
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, msg Message) {
	for _, s := range f.sinks {
		if err := s.Send(ctx, msg); err != nil {
			f.logger.Debug("Event delivery failed", "sink", s.Name(), "kind", msg.Kind, "error", err)
			if f.metrics != nil {
				f.metrics.RecordError("eventstream", errors.Classify(err).String())
			}
			continue
		}
		if f.metrics != nil {
			f.metrics.RecordEventPublished(s.Name(), msg.Kind)
		}
	}
}

// Close detaches the forwarder from the network.
func (f *Forwarder) Close() {
	f.closeOnce.Do(f.sub.Unsubscribe)
}
