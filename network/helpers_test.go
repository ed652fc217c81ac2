package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
)

type source struct {
	processor.Base
	out   *port.Outport
	value *property.Int
	runs  int
}

func newSource(t *testing.T, id string) *source {
	t.Helper()
	s := &source{
		out:   port.NewOutport("out", "int", ""),
		value: property.NewInt("value", "Value", 0, -100, 100, property.WithAutoLink()),
	}
	s.Init(s, processor.Info{ClassIdentifier: "test.Source", DisplayName: "Source"})
	require.NoError(t, s.SetIdentifier(id))
	require.NoError(t, s.AddOutport(s.out))
	require.NoError(t, s.AddProperty(s.value))
	return s
}

func (s *source) Process(context.Context) error {
	s.runs++
	s.out.Publish(s.value.Get())
	return nil
}

type pass struct {
	processor.Base
	in     *port.Inport
	out    *port.Outport
	offset *property.Int
	group  *property.Composite
	scale  *property.Float
}

func newPass(t *testing.T, id string, opts ...port.InportOption) *pass {
	t.Helper()
	p := &pass{
		in:     port.NewInport("in", "int", "", opts...),
		out:    port.NewOutport("out", "int", ""),
		offset: property.NewInt("offset", "Offset", 0, -100, 100),
		group:  property.NewComposite("group", "Group"),
		scale:  property.NewFloat("scale", "Scale", 1, 0, 10),
	}
	p.Init(p, processor.Info{ClassIdentifier: "test.Pass", DisplayName: "Pass"})
	require.NoError(t, p.SetIdentifier(id))
	require.NoError(t, p.AddInport(p.in))
	require.NoError(t, p.AddOutport(p.out))
	require.NoError(t, p.group.Add(p.scale))
	require.NoError(t, p.AddProperties(p.offset, p.group))
	return p
}

func (p *pass) Process(context.Context) error {
	v, _ := port.Value[int](p.in)
	p.out.Publish(v + p.offset.Get())
	return nil
}

type eventLog struct {
	kinds []EventKind
}

func (l *eventLog) record(ev Event) { l.kinds = append(l.kinds, ev.Kind) }

func (l *eventLog) count(kind EventKind) int {
	c := 0
	for _, k := range l.kinds {
		if k == kind {
			c++
		}
	}
	return c
}

func (l *eventLog) without(kind EventKind) []EventKind {
	var out []EventKind
	for _, k := range l.kinds {
		if k != kind && k != EventProcessorInvalidated {
			out = append(out, k)
		}
	}
	return out
}

func newNetwork(t *testing.T, procs ...processor.Processor) *Network {
	t.Helper()
	n := New(Dependencies{})
	for _, p := range procs {
		require.NoError(t, n.AddProcessor(p))
	}
	return n
}
