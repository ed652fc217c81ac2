package eventstream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/metric"
	"github.com/c360/vizflow/network"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/processors"
	"github.com/c360/vizflow/registry"
	"github.com/c360/vizflow/types"
)

func newNetwork(t *testing.T) *network.Network {
	t.Helper()
	reg := registry.New()
	require.NoError(t, processors.Register(reg))
	return network.New(network.Dependencies{Registry: reg})
}

func mustCreate(t *testing.T, net *network.Network, class, id string) processor.Processor {
	t.Helper()
	p, err := net.CreateProcessor(class, id)
	require.NoError(t, err)
	return p
}

func TestNewMessage(t *testing.T) {
	net := newNetwork(t)
	var events []network.Event
	sub := net.Observe(func(ev network.Event) { events = append(events, ev) })
	defer sub.Unsubscribe()

	a := mustCreate(t, net, processors.ClassIntSource, "a").(*processors.IntSource)
	b := mustCreate(t, net, processors.ClassIntSource, "b").(*processors.IntSource)
	off := mustCreate(t, net, processors.ClassIntOffset, "off").(*processors.IntOffset)
	_, err := net.AddConnection(a.Out, off.In)
	require.NoError(t, err)
	_, err = net.AddLink(a.Value, b.Value)
	require.NoError(t, err)

	byKind := map[string]Message{}
	for _, ev := range events {
		msg := NewMessage(ev)
		byKind[msg.Kind] = msg
		assert.NotEmpty(t, msg.ID)
		assert.NotZero(t, msg.Timestamp)
	}

	added := byKind["processor_added"]
	assert.Equal(t, "off", added.Processor)
	assert.Equal(t, processors.ClassIntOffset, added.Class)

	conn := byKind["connection_added"]
	assert.Equal(t, "a.outport", conn.Outport)
	assert.Equal(t, "off.inport", conn.Inport)

	link := byKind["link_added"]
	assert.Equal(t, "a.value", link.Source)
	assert.Equal(t, "b.value", link.Destination)

	inv := NewMessage(network.Event{Kind: network.EventProcessorInvalidated, Processor: a, Level: types.InvalidResources})
	assert.Equal(t, "processor_invalidated", inv.Kind)
	assert.Equal(t, "invalid_resources", inv.Level)
	assert.Empty(t, NewMessage(network.Event{Kind: network.EventEvaluateRequest}).Processor)

	data, err := link.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"link_added"`)
	assert.NotContains(t, string(data), "outport")
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func TestNATSPublisher(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, "app.events.processor_added", mock.MatchedBy(func(data []byte) bool {
		var msg Message
		return json.Unmarshal(data, &msg) == nil && msg.Processor == "a"
	})).Return(nil).Once()
	pub.On("Publish", mock.Anything, "app.events.processor_removed", mock.Anything).
		Return(errors.ErrConnectionLost).Once()

	p := NewNATSPublisher(pub, "app.events.")
	assert.Equal(t, "nats", p.Name())

	require.NoError(t, p.Send(context.Background(), Message{Kind: "processor_added", Processor: "a"}))
	err := p.Send(context.Background(), Message{Kind: "processor_removed"})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	pub.AssertExpectations(t)

	assert.Equal(t, "vizflow.events.x", NewNATSPublisher(pub, "").Subject("x"))
}

type recordingSink struct {
	name string
	err  error

	mu   sync.Mutex
	msgs []Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Kind)
	}
	return out
}

func TestForwarder(t *testing.T) {
	net := newNetwork(t)
	reg := metric.NewMetricsRegistry()
	failing := &recordingSink{name: "failing", err: errors.ErrConnectionLost}
	good := &recordingSink{name: "good"}

	fwd := NewForwarder(net, DefaultConfig(), Dependencies{MetricsRegistry: reg}, failing, good)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx) }()

	p := mustCreate(t, net, processors.ClassSink, "sink")
	require.NoError(t, net.RemoveProcessor(p))

	assert.Eventually(t, func() bool {
		return slices.Contains(good.kinds(), "processor_removed")
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	for _, k := range good.kinds() {
		assert.False(t, strings.Contains(k, "will"), k)
	}
	assert.Equal(t, good.kinds(), failing.kinds())

	core := reg.CoreMetrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(core.EventsPublished.WithLabelValues("good", "processor_added")))
	assert.Equal(t, 0.0, testutil.ToFloat64(core.EventsPublished.WithLabelValues("failing", "processor_added")))
	assert.Positive(t, testutil.ToFloat64(core.ErrorsTotal.WithLabelValues("eventstream", "transient")))

	// Detached after Run returns.
	before := len(good.kinds())
	mustCreate(t, net, processors.ClassSink, "later")
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, good.kinds(), before)
}

func TestForwarder_DropsWhenFull(t *testing.T) {
	net := newNetwork(t)
	cfg := Config{
		BufferSize: 1,
		Filter:     func(ev network.Event) bool { return ev.Kind == network.EventProcessorAdded },
	}
	fwd := NewForwarder(net, cfg, Dependencies{}, &recordingSink{name: "idle"})
	defer fwd.Close()

	for _, id := range []string{"a", "b", "c"} {
		mustCreate(t, net, processors.ClassIntSource, id)
	}
	assert.Equal(t, uint64(2), fwd.Dropped())
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHub(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c1 := dial(t, srv)
	defer c1.Close()
	c2 := dial(t, srv)
	defer c2.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	sent := Message{ID: "1", Kind: "processor_added", Processor: "a"}
	require.NoError(t, hub.Send(context.Background(), sent))

	for _, c := range []*websocket.Conn{c1, c2} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := c.ReadMessage()
		require.NoError(t, err)
		var got Message
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, sent, got)
	}

	require.NoError(t, c2.Close())
	assert.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())
	require.NoError(t, c1.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c1.ReadMessage()
	assert.Error(t, err)

	err = hub.Send(context.Background(), sent)
	assert.True(t, errors.Is(err, errors.ErrShuttingDown))
}
