package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/evaluator"
	"github.com/c360/vizflow/network"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/processors"
	"github.com/c360/vizflow/property"
	"github.com/c360/vizflow/registry"
	"github.com/c360/vizflow/types"
)

func newNetwork(t *testing.T) *network.Network {
	t.Helper()
	reg := registry.New()
	require.NoError(t, processors.Register(reg))
	return network.New(network.Dependencies{Registry: reg})
}

type fixture struct {
	net  *network.Network
	a, b *processors.IntSource
	off  *processors.IntOffset
	sum  *processors.IntSum
	sink *processors.Sink
}

// buildFixture wires a + offset and b into a sum feeding a sink, and links
// a.value to b.value.
func buildFixture(t *testing.T) *fixture {
	t.Helper()
	net := newNetwork(t)
	create := func(class, id string) processor.Processor {
		p, err := net.CreateProcessor(class, id)
		require.NoError(t, err)
		return p
	}
	connect := func(out *port.Outport, in *port.Inport) {
		_, err := net.AddConnection(out, in)
		require.NoError(t, err)
	}

	f := &fixture{
		net:  net,
		a:    create(processors.ClassIntSource, "a").(*processors.IntSource),
		b:    create(processors.ClassIntSource, "b").(*processors.IntSource),
		off:  create(processors.ClassIntOffset, "offset").(*processors.IntOffset),
		sum:  create(processors.ClassIntSum, "sum").(*processors.IntSum),
		sink: create(processors.ClassSink, "sink").(*processors.Sink),
	}
	f.a.SetPosition(types.Position{X: 1, Y: 2})

	connect(f.a.Out, f.off.In)
	connect(f.off.Out, f.sum.In)
	connect(f.b.Out, f.sum.In)
	connect(f.sum.Out, f.sink.In)
	_, err := net.AddLink(f.a.Value, f.b.Value)
	require.NoError(t, err)

	require.NoError(t, f.a.Value.Set(4))
	require.NoError(t, f.off.Offset.Set(3))
	require.NoError(t, f.sink.Format.SetValue("json"))
	return f
}

func evaluate(t *testing.T, net *network.Network) {
	t.Helper()
	report, err := evaluator.New(net, evaluator.Config{}, evaluator.Dependencies{}).Evaluate(context.Background())
	require.NoError(t, err)
	require.True(t, report.OK())
}

func TestSerialize(t *testing.T) {
	f := buildFixture(t)
	doc := Serialize(f.net)

	assert.Equal(t, CurrentVersion, doc.Version)
	ids := make([]string, 0, len(doc.Processors))
	for _, p := range doc.Processors {
		ids = append(ids, p.Identifier)
	}
	assert.Equal(t, []string{"a", "b", "offset", "sum", "sink"}, ids)

	a, ok := doc.Processor("a")
	require.True(t, ok)
	assert.Equal(t, processors.ClassIntSource, a.Class)
	assert.Equal(t, types.Position{X: 1, Y: 2}, a.Position)
	assert.Equal(t, []PortDoc{{Identifier: "outport", Direction: "output", Type: processors.TypeInt}}, a.Ports)

	value, ok := doc.Property(PropertyPath{"a", "value"})
	require.True(t, ok)
	assert.Equal(t, 4, value.Value)
	assert.Equal(t, property.ClassInt, value.Class)

	// Transient properties are not saved.
	_, ok = doc.Property(PropertyPath{"sum", "count"})
	assert.False(t, ok)
	_, ok = doc.Property(PropertyPath{"sink", "last"})
	assert.False(t, ok)

	require.Len(t, doc.Connections, 4)
	assert.Equal(t, "a.outport -> offset.inport", doc.Connections[0].String())
	assert.Equal(t, "sum.outport -> sink.inport", doc.Connections[3].String())
	require.Len(t, doc.Links, 1)
	assert.Equal(t, LinkDoc{Source: PropertyPath{"a", "value"}, Destination: PropertyPath{"b", "value"}}, doc.Links[0])
}

func TestRoundTrip(t *testing.T) {
	f := buildFixture(t)
	evaluate(t, f.net)
	require.Equal(t, "11", f.sink.Last.Get())

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Marshal(Serialize(f.net), format)
			require.NoError(t, err)
			doc, err := Unmarshal(data, format)
			require.NoError(t, err)

			net := newNetwork(t)
			report, err := Deserialize(net, doc)
			require.NoError(t, err)
			require.NoError(t, report.Err())
			assert.Equal(t, 5, report.Processors)
			assert.Equal(t, 4, report.Connections)
			assert.Equal(t, 1, report.Links)
			assert.False(t, net.Modified())

			again, err := Marshal(Serialize(net), format)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again))

			evaluate(t, net)
			p, ok := net.Processor("sink")
			require.True(t, ok)
			assert.Equal(t, "11", p.(*processors.Sink).Last.Get())

			// The link is live after loading.
			require.NoError(t, net.SetPropertyValue([]string{"a", "value"}, 10))
			b, ok := net.Property([]string{"b", "value"})
			require.True(t, ok)
			assert.Equal(t, 10, b.Value())
		})
	}
}

func TestDeserialize_ReplacesContent(t *testing.T) {
	f := buildFixture(t)
	doc := Serialize(f.net)

	net := newNetwork(t)
	_, err := net.CreateProcessor(processors.ClassSink, "leftover")
	require.NoError(t, err)

	_, err = Deserialize(net, doc)
	require.NoError(t, err)
	_, ok := net.Processor("leftover")
	assert.False(t, ok)
	assert.Equal(t, 5, net.Len())
}

func TestDeserialize_CollectsErrors(t *testing.T) {
	f := buildFixture(t)
	doc := Serialize(f.net)
	doc.Processors = append(doc.Processors,
		ProcessorDoc{Identifier: "ghost", Class: "org.example.Unknown"},
		ProcessorDoc{Identifier: "a", Class: processors.ClassIntSource},
	)
	doc.Connections = append(doc.Connections,
		ConnectionDoc{Outport: PortRef{"ghost", "outport"}, Inport: PortRef{"sink", "inport"}},
		ConnectionDoc{Outport: PortRef{"b", "nope"}, Inport: PortRef{"offset", "inport"}},
		ConnectionDoc{Outport: PortRef{"b", "outport"}, Inport: PortRef{"offset", "inport"}},
	)
	doc.Links = append(doc.Links,
		LinkDoc{Source: PropertyPath{"a", "value"}, Destination: PropertyPath{"ghost", "value"}},
		LinkDoc{Source: PropertyPath{"a", "missing"}, Destination: PropertyPath{"b", "value"}},
	)
	doc.Processors[2].Properties = append(doc.Processors[2].Properties,
		PropertyDoc{Identifier: "offset", Class: property.ClassString, Value: "x"})

	net := newNetwork(t)
	report, err := Deserialize(net, doc)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Processors)
	assert.Equal(t, 4, report.Connections)
	assert.Equal(t, 1, report.Links)
	require.Len(t, report.Errors, 8)

	joined := report.Err()
	assert.True(t, errors.Is(joined, errors.ErrUnknownClassIdentifier))
	assert.True(t, errors.Is(joined, errors.ErrDuplicateIdentifier))
	assert.True(t, errors.Is(joined, errors.ErrNotFound))
	assert.True(t, errors.Is(joined, errors.ErrAlreadyConnected))
	assert.True(t, errors.Is(joined, errors.ErrIncompatibleTypes))

	items := make([]string, 0, len(report.Errors))
	for _, e := range report.Errors {
		var item *ItemError
		require.True(t, errors.As(e, &item))
		items = append(items, item.Item)
	}
	assert.Equal(t, []string{
		"property offset.offset",
		"processor ghost",
		"processor a",
		"connection ghost.outport -> sink.inport",
		"connection b.nope -> offset.inport",
		"connection b.outport -> offset.inport",
		"link a.value -> ghost.value",
		"link a.missing -> b.value",
	}, items)
}

func TestDeserialize_DynamicProperties(t *testing.T) {
	f := buildFixture(t)
	group := property.NewComposite("group", "Group")
	require.NoError(t, group.Add(property.NewBool("enabled", "Enabled", true)))
	require.NoError(t, f.a.AddProperty(group))
	require.NoError(t, f.a.AddProperty(property.NewString("note", "Note", "", property.WithHidden())))

	doc := Serialize(f.net)
	net := newNetwork(t)
	report, err := Deserialize(net, doc)
	require.NoError(t, err)
	require.NoError(t, report.Err())

	enabled, ok := net.Property([]string{"a", "group", "enabled"})
	require.True(t, ok)
	assert.Equal(t, true, enabled.Value())

	note, ok := net.Property([]string{"a", "note"})
	require.True(t, ok)
	assert.Equal(t, "", note.Value())
	assert.False(t, note.Visible())
}

func TestDeserialize_Rejects(t *testing.T) {
	net := newNetwork(t)

	_, err := Deserialize(net, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidData))

	_, err = Deserialize(net, &Document{Version: CurrentVersion + 1})
	assert.True(t, errors.Is(err, errors.ErrVersionTooNew))

	bare := network.New(network.Dependencies{})
	_, err = Deserialize(bare, &Document{Version: CurrentVersion})
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))
}

func TestSerializeSelection(t *testing.T) {
	f := buildFixture(t)

	doc, err := SerializeSelection(f.net, []string{"sum", "a", "offset"})
	require.NoError(t, err)
	require.Len(t, doc.Processors, 3)
	assert.Equal(t, "a", doc.Processors[0].Identifier)
	require.Len(t, doc.Connections, 2)
	assert.Equal(t, "a.outport -> offset.inport", doc.Connections[0].String())
	assert.Equal(t, "offset.outport -> sum.inport", doc.Connections[1].String())
	assert.Empty(t, doc.Links)

	doc, err = SerializeSelection(f.net, []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, doc.Connections)
	assert.Len(t, doc.Links, 1)

	_, err = SerializeSelection(f.net, []string{"a", "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAppend(t *testing.T) {
	f := buildFixture(t)
	doc, err := SerializeSelection(f.net, []string{"a", "b", "offset"})
	require.NoError(t, err)
	f.net.SetModified(false)

	report, err := Append(f.net, doc)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 3, report.Processors)
	assert.Equal(t, map[string]string{"a": "a 2", "b": "b 2", "offset": "offset 2"}, report.Renamed)
	assert.Equal(t, 8, f.net.Len())
	assert.True(t, f.net.Modified())

	a2, ok := f.net.Processor("a 2")
	require.True(t, ok)
	off2, ok := f.net.Processor("offset 2")
	require.True(t, ok)
	out, _ := a2.Outport("outport")
	in, _ := off2.Inport("inport")
	assert.True(t, f.net.IsConnected(out, in))

	src, _ := f.net.Property([]string{"a 2", "value"})
	dst, _ := f.net.Property([]string{"b 2", "value"})
	assert.True(t, f.net.IsLinked(src, dst))
	assert.Equal(t, 4, src.Value())

	// Copies are independent of the originals.
	require.NoError(t, f.net.SetPropertyValue([]string{"a 2", "value"}, 9))
	assert.Equal(t, 4, f.a.Value.Get())
	assert.Equal(t, 9, dst.Value())
}
