package evaluator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/metric"
	"github.com/c360/vizflow/network"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
	"github.com/c360/vizflow/types"
)

type node struct {
	processor.Base
	in       *port.Inport
	out      *port.Outport
	value    *property.Int
	stat     *property.Int
	runs     int
	trace    *[]string
	fail     error
	panicMsg string
}

func newNode(t *testing.T, id string, trace *[]string, withInput bool) *node {
	t.Helper()
	n := &node{
		out:   port.NewOutport("out", "int", ""),
		value: property.NewInt("value", "Value", 0, -1000, 1000),
		stat:  property.NewInt("runs", "Runs", 0, 0, 1<<20,
			property.WithReadOnly(), property.WithInvalidationLevel(types.InvalidResources)),
		trace: trace,
	}
	n.Init(n, processor.Info{ClassIdentifier: "test.Node", DisplayName: "Node"})
	require.NoError(t, n.SetIdentifier(id))
	if withInput {
		n.in = port.NewInport("in", "int", "")
		require.NoError(t, n.AddInport(n.in))
	}
	require.NoError(t, n.AddOutport(n.out))
	require.NoError(t, n.AddProperties(n.value, n.stat))
	return n
}

func (n *node) Process(context.Context) error {
	n.runs++
	if n.trace != nil {
		*n.trace = append(*n.trace, n.Identifier())
	}
	if n.panicMsg != "" {
		panic(n.panicMsg)
	}
	if n.fail != nil {
		return n.fail
	}
	v := 0
	if n.in != nil {
		v, _ = port.Value[int](n.in)
	}
	n.out.Publish(v + n.value.Get())
	return n.stat.Set(n.runs)
}

func build(t *testing.T, nodes ...*node) *network.Network {
	t.Helper()
	net := network.New(network.Dependencies{})
	for _, n := range nodes {
		require.NoError(t, net.AddProcessor(n))
	}
	return net
}

func connect(t *testing.T, net *network.Network, from, to *node) {
	t.Helper()
	_, err := net.AddConnection(from.out, to.in)
	require.NoError(t, err)
}

func position(order []processor.Processor) map[string]int {
	pos := make(map[string]int, len(order))
	for i, p := range order {
		pos[p.Identifier()] = i
	}
	return pos
}

func TestOrder_ProducersBeforeConsumers(t *testing.T) {
	d := newNode(t, "D", nil, true)
	c := newNode(t, "C", nil, true)
	b := newNode(t, "B", nil, true)
	a := newNode(t, "A", nil, false)
	m := newNode(t, "M", nil, true)
	require.NoError(t, m.RemovePort("in"))
	m.in = port.NewInport("in", "int", "", port.Multi())
	require.NoError(t, m.AddInport(m.in))

	net := build(t, m, d, c, b, a)
	connect(t, net, a, b)
	connect(t, net, a, c)
	connect(t, net, b, d)
	connect(t, net, c, m)
	connect(t, net, d, m)

	order, err := Order(net)
	require.NoError(t, err)
	require.Len(t, order, 5)

	pos := position(order)
	for _, conn := range net.Connections() {
		from, _ := processor.OwnerOfPort(conn.Outport)
		to, _ := processor.OwnerOfPort(conn.Inport)
		assert.Less(t, pos[from.Identifier()], pos[to.Identifier()], conn.String())
	}
}

func TestOrder_InsertionOrderBreaksTies(t *testing.T) {
	x, y, z := newNode(t, "X", nil, false), newNode(t, "Y", nil, false), newNode(t, "Z", nil, false)
	net := build(t, z, x, y)

	order, err := Order(net)
	require.NoError(t, err)
	assert.Equal(t, []processor.Processor{z, x, y}, order)
}

func TestEvaluate_CycleProcessesNothing(t *testing.T) {
	a := newNode(t, "A", nil, false)
	b, c := newNode(t, "B", nil, true), newNode(t, "C", nil, true)
	net := build(t, a, b, c)
	connect(t, net, b, c)
	connect(t, net, c, b)

	_, err := Order(net)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConnectionCycle))

	e := New(net, Config{}, Dependencies{})
	_, err = e.Evaluate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Zero(t, a.runs)
	assert.Zero(t, b.runs)
	assert.Zero(t, c.runs)
}

func TestEvaluate_SourceToConsumer(t *testing.T) {
	var trace []string
	a := newNode(t, "A", &trace, false)
	b := newNode(t, "B", &trace, true)
	net := build(t, a, b)
	connect(t, net, a, b)
	e := New(net, Config{}, Dependencies{})

	report, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, report.Processed)
	assert.Equal(t, types.Valid, b.InvalidationLevel())

	trace = nil
	require.NoError(t, a.value.Set(5))
	assert.Equal(t, types.InvalidOutput, b.InvalidationLevel())

	report, err = e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, []string{"A", "B"}, trace)
	assert.Equal(t, 2, b.runs)
	v, ok := b.out.Data().Value.(int)
	require.True(t, ok)
	assert.Equal(t, 5, v)

	report, err = e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Processed)
}

func TestEvaluate_ProcessorErrorIsRecoverable(t *testing.T) {
	a := newNode(t, "A", nil, false)
	f := newNode(t, "F", nil, true)
	g := newNode(t, "G", nil, true)
	h := newNode(t, "H", nil, true)
	f.fail = errors.NewProcessorError("F", fmt.Errorf("bad input"))
	net := build(t, a, f, g, h)
	connect(t, net, a, f)
	connect(t, net, f, g)
	connect(t, net, a, h)
	e := New(net, Config{}, Dependencies{})

	report, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "H"}, report.Processed)
	assert.Equal(t, []string{"G"}, report.Skipped)
	require.Contains(t, report.Failed, "F")
	assert.False(t, report.OK())
	assert.Equal(t, types.InvalidResources, f.InvalidationLevel())

	status, ok := e.Health().Get("F")
	require.True(t, ok)
	assert.True(t, status.IsUnhealthy())
	status, _ = e.Health().Get("G")
	assert.True(t, status.IsDegraded())

	_, err = e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.runs)

	f.fail = nil
	report, err = e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"F", "G"}, report.Processed)
	assert.Equal(t, types.Valid, g.InvalidationLevel())
}

func TestEvaluate_FatalFailureAbortsPass(t *testing.T) {
	a := newNode(t, "A", nil, false)
	p := newNode(t, "P", nil, true)
	q := newNode(t, "Q", nil, true)
	p.panicMsg = "boom"
	net := build(t, a, p, q)
	connect(t, net, a, p)
	connect(t, net, a, q)
	e := New(net, Config{}, Dependencies{})

	report, err := e.Evaluate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.True(t, errors.Is(err, errors.ErrProcessFailed))
	assert.Contains(t, report.Failed, "P")
	assert.Equal(t, 1, a.runs)
	assert.Zero(t, q.runs)
}

func TestEvaluate_SelfMutationDoesNotRequestAnotherPass(t *testing.T) {
	a := newNode(t, "A", nil, false)
	net := build(t, a)
	e := New(net, Config{}, Dependencies{})
	_, err := e.Evaluate(context.Background())
	require.NoError(t, err)

	requests := 0
	net.Observe(func(ev network.Event) {
		if ev.Kind == network.EventEvaluateRequest {
			requests++
		}
	})

	require.NoError(t, a.value.Set(1))
	require.Equal(t, 1, requests)

	// Process raises a.stat, whose level is InvalidResources.
	report, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, report.Processed)
	assert.Equal(t, 2, a.stat.Get())
	assert.Equal(t, types.Valid, a.InvalidationLevel())
	assert.Equal(t, 1, requests)

	report, err = e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Processed)
}

func TestEvaluate_Cancelled(t *testing.T) {
	a := newNode(t, "A", nil, false)
	e := New(build(t, a), Config{}, Dependencies{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Evaluate(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Zero(t, a.runs)
}

func TestRun_ServesRequestsAndDispatch(t *testing.T) {
	a := newNode(t, "A", nil, false)
	b := newNode(t, "B", nil, true)
	net := build(t, a, b)
	connect(t, net, a, b)
	e := New(net, Config{}, Dependencies{})

	reports := make(chan Report, 16)
	e.OnReport(func(r Report) { reports <- r })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	waitReport := func() Report {
		select {
		case r := <-reports:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("no evaluation report")
			return Report{}
		}
	}

	first := waitReport()
	assert.Equal(t, []string{"A", "B"}, first.Processed)

	require.NoError(t, e.Do(ctx, func() error { return a.value.Set(3) }))
	second := waitReport()
	assert.Equal(t, []string{"A", "B"}, second.Processed)

	var out int
	require.NoError(t, e.Do(ctx, func() error {
		out, _ = b.out.Data().Value.(int)
		return nil
	}))
	assert.Equal(t, 3, out)
	assert.Equal(t, second.Pass, e.LastReport().Pass)

	err := e.Run(ctx)
	assert.Error(t, err)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	err = e.Dispatch(func() {})
	assert.True(t, errors.Is(err, errors.ErrShuttingDown))
}

func TestHealthFollowsNetwork(t *testing.T) {
	a := newNode(t, "A", nil, false)
	b := newNode(t, "B", nil, false)
	net := build(t, a, b)
	e := New(net, Config{}, Dependencies{})
	_, err := e.Evaluate(context.Background())
	require.NoError(t, err)

	require.NoError(t, net.RenameProcessor(a, "Renamed"))
	_, ok := e.Health().Get("Renamed")
	assert.True(t, ok)

	require.NoError(t, net.RemoveProcessor(b))
	_, ok = e.Health().Get("B")
	assert.False(t, ok)

	e.Close()
	require.NoError(t, net.RenameProcessor(a, "Again"))
	_, ok = e.Health().Get("Again")
	assert.False(t, ok)
}

func TestEvaluatorMetrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	a := newNode(t, "A", nil, false)
	net := build(t, a)
	e := New(net, Config{}, Dependencies{MetricsRegistry: reg})
	require.NotNil(t, e.metrics)

	_, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.passes))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.runs.WithLabelValues("processed")))

	second := New(net, Config{}, Dependencies{MetricsRegistry: reg})
	assert.Nil(t, second.metrics)
}

func TestEvaluate_RefusedPassStillReports(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	b, c := newNode(t, "B", nil, true), newNode(t, "C", nil, true)
	net := build(t, b, c)
	connect(t, net, b, c)
	connect(t, net, c, b)
	e := New(net, Config{}, Dependencies{MetricsRegistry: reg})

	report, err := e.Evaluate(context.Background())
	require.Error(t, err)
	assert.Equal(t, report.Pass, e.LastReport().Pass)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.cycleErrors))

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)
	var observed uint64
	for _, f := range families {
		if f.GetName() == "vizflow_evaluator_pass_duration_seconds" {
			observed = f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(1), observed)
}

func countRequests(net *network.Network) *int {
	requests := new(int)
	net.Observe(func(ev network.Event) {
		if ev.Kind == network.EventEvaluateRequest {
			*requests++
		}
	})
	return requests
}

func TestEvaluate_EditAfterFailureRequestsPass(t *testing.T) {
	f := newNode(t, "F", nil, false)
	f.fail = errors.NewProcessorError("F", fmt.Errorf("bad input"))
	net := build(t, f)
	e := New(net, Config{}, Dependencies{})

	report, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	require.Contains(t, report.Failed, "F")
	require.Equal(t, types.InvalidResources, f.InvalidationLevel())

	requests := countRequests(net)
	f.fail = nil
	require.NoError(t, f.value.Set(7))
	assert.Equal(t, 1, *requests)
	assert.Equal(t, types.InvalidResources, f.InvalidationLevel())

	report, err = e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"F"}, report.Processed)
}

func TestRun_EditAfterFailureIsEvaluated(t *testing.T) {
	f := newNode(t, "F", nil, false)
	f.fail = errors.NewProcessorError("F", fmt.Errorf("bad input"))
	net := build(t, f)
	e := New(net, Config{}, Dependencies{})

	reports := make(chan Report, 16)
	e.OnReport(func(r Report) { reports <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	waitReport := func() Report {
		select {
		case r := <-reports:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("no evaluation report")
			return Report{}
		}
	}

	first := waitReport()
	assert.Contains(t, first.Failed, "F")

	require.NoError(t, e.Do(ctx, func() error {
		f.fail = nil
		return f.value.Set(7)
	}))
	second := waitReport()
	assert.Equal(t, []string{"F"}, second.Processed)
	assert.True(t, second.OK())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestEvaluate_DownstreamInvalidationDuringPassIsQuiet(t *testing.T) {
	a := newNode(t, "A", nil, false)
	b := newNode(t, "B", nil, true)
	net := build(t, a, b)
	connect(t, net, a, b)
	e := New(net, Config{}, Dependencies{})
	_, err := e.Evaluate(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.value.Set(2))
	requests := countRequests(net)

	// A's Process raises a.stat, which invalidates B through the connection.
	report, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, report.Processed)
	assert.Equal(t, types.Valid, b.InvalidationLevel())
	assert.Zero(t, *requests)

	report, err = e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Processed)
}
