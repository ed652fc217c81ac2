package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vferrors "github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/property"
	"github.com/c360/vizflow/types"
)

type stage struct {
	Base
	in       *port.Inport
	out      *port.Outport
	gain     *property.Int
	runs     int
	inits    int
	failWith error
	panicMsg string
	deinit   bool
}

func newStage(t *testing.T, id string) *stage {
	t.Helper()
	s := &stage{
		in:   port.NewInport("inport", "int", ""),
		out:  port.NewOutport("outport", "int", ""),
		gain: property.NewInt("gain", "Gain", 1, 0, 10),
	}
	s.Init(s, Info{ClassIdentifier: "test.Stage", DisplayName: "Stage", Category: "test"})
	require.NoError(t, s.SetIdentifier(id))
	require.NoError(t, s.AddInport(s.in))
	require.NoError(t, s.AddOutport(s.out))
	require.NoError(t, s.AddProperty(s.gain))
	return s
}

func (s *stage) InitializeResources(context.Context) error {
	s.inits++
	return nil
}

func (s *stage) Process(context.Context) error {
	s.runs++
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.failWith != nil {
		return s.failWith
	}
	v, _ := port.Value[int](s.in)
	s.out.Publish(v * s.gain.Get())
	return nil
}

func (s *stage) Deinitialize() { s.deinit = true }

type recordingHost struct {
	propertyChanges   []string
	begins, ends      int
	renames           [][2]string
	rejectRename      error
	removedPorts      []string
	removedProperties []string
	processing        []string
}

func (h *recordingHost) OnPropertyChange(p Processor, prop property.Property) {
	h.propertyChanges = append(h.propertyChanges, p.Identifier()+"."+prop.Identifier())
}
func (h *recordingHost) OnInvalidationBegin(Processor) { h.begins++ }
func (h *recordingHost) OnInvalidationEnd(Processor) { h.ends++ }
func (h *recordingHost) OnIdentifierChange(_ Processor, oldID, newID string) error {
	if h.rejectRename != nil {
		return h.rejectRename
	}
	h.renames = append(h.renames, [2]string{oldID, newID})
	return nil
}
func (h *recordingHost) OnPropertyRemove(p Processor, prop property.Property) {
	h.removedProperties = append(h.removedProperties, p.Identifier()+"."+prop.Identifier())
}
func (h *recordingHost) OnProcessBegin(p Processor) {
	h.processing = append(h.processing, "begin "+p.Identifier())
}
func (h *recordingHost) OnProcessEnd(p Processor) {
	h.processing = append(h.processing, "end "+p.Identifier())
}
func (h *recordingHost) OnPortRemove(p Processor, pt port.Port) {
	h.removedPorts = append(h.removedPorts, pt.Identifier())
	if in, ok := pt.(*port.Inport); ok {
		for _, out := range in.ConnectedOutports() {
			port.Disconnect(out, in)
		}
	}
}

func TestBase_Defaults(t *testing.T) {
	s := newStage(t, "A")
	assert.Equal(t, "A", s.Identifier())
	assert.Equal(t, "test.Stage", s.Info().ClassIdentifier)
	assert.Equal(t, types.InvalidResources, s.InvalidationLevel(), "new processors start out needing resources")
	assert.False(t, s.IsSource())
	assert.False(t, s.IsSink())
	assert.Equal(t, []string{"A", "gain"}, s.gain.Path())

	owner, ok := OwnerOfPort(s.in)
	require.True(t, ok)
	assert.Same(t, s, owner)
	owner, ok = OwnerOfProperty(s.gain)
	require.True(t, ok)
	assert.Same(t, s, owner)

	found, ok := Find(s, []string{"gain"})
	require.True(t, ok)
	assert.Same(t, s.gain, found)
}

func TestBase_PortRules(t *testing.T) {
	s := newStage(t, "A")
	assert.ErrorIs(t, s.AddInport(port.NewInport("outport", "int", "")), vferrors.ErrDuplicateIdentifier)
	assert.ErrorIs(t, s.AddInport(s.in), vferrors.ErrInvalidData)
	assert.ErrorIs(t, s.RemovePort("missing"), vferrors.ErrNotFound)

	var events []EventKind
	s.Observe(func(e Event) { events = append(events, e.Kind) })

	extra := port.NewOutport("extra", "int", "")
	require.NoError(t, s.AddOutport(extra))
	require.NoError(t, s.RemovePort("extra"))
	assert.Nil(t, extra.Owner())
	assert.Equal(t, []EventKind{EventPortAdded, EventPortRemoved}, events)
}

func TestBase_RemovePortAsksHost(t *testing.T) {
	s := newStage(t, "B")
	host := &recordingHost{}
	Bind(s, host)

	upstream := port.NewOutport("up", "int", "")
	port.Connect(upstream, s.in)

	require.NoError(t, s.RemovePort("inport"))
	assert.Equal(t, []string{"inport"}, host.removedPorts)
	assert.False(t, upstream.IsConnected())
	_, ok := s.Inport("inport")
	assert.False(t, ok)
}

func TestBase_InvalidateEscalatesAndAlwaysTellsHost(t *testing.T) {
	s := newStage(t, "A")
	s.SetValid()
	host := &recordingHost{}
	Bind(s, host)

	var levels []types.InvalidationLevel
	s.Observe(func(e Event) {
		if e.Kind == EventInvalidated {
			levels = append(levels, e.Level)
		}
	})

	s.Invalidate(types.InvalidOutput)
	s.Invalidate(types.InvalidOutput)
	s.Invalidate(types.Valid)
	s.Invalidate(types.InvalidResources)

	assert.Equal(t, []types.InvalidationLevel{types.InvalidOutput, types.InvalidResources}, levels)
	assert.Equal(t, types.InvalidResources, s.InvalidationLevel())
	// The repeated InvalidOutput does not escalate but still reaches the host.
	assert.Equal(t, 3, host.begins)
	assert.Equal(t, 3, host.ends)
}

func TestBase_EditOfInvalidProcessorReachesHost(t *testing.T) {
	s := newStage(t, "A")
	host := &recordingHost{}
	Bind(s, host)
	require.Equal(t, types.InvalidResources, s.InvalidationLevel())

	require.NoError(t, s.gain.Set(4))
	assert.Equal(t, 1, host.begins)
	assert.Equal(t, 1, host.ends)
	assert.Equal(t, types.InvalidResources, s.InvalidationLevel())
}

func TestBase_PropertyRemovalReachesHost(t *testing.T) {
	s := newStage(t, "A")
	host := &recordingHost{}
	Bind(s, host)

	group := property.NewComposite("group", "")
	inner := property.NewBool("inner", "", false)
	require.NoError(t, group.Add(inner))
	require.NoError(t, s.AddProperty(group))

	_, err := group.Remove("inner")
	require.NoError(t, err)
	_, err = s.Properties().Remove("gain")
	require.NoError(t, err)
	assert.Equal(t, []string{"A.inner", "A.gain"}, host.removedProperties)
}

func TestBase_InvalidationFlowsDownstream(t *testing.T) {
	a := newStage(t, "A")
	b := newStage(t, "B")
	port.Connect(a.out, b.in)
	a.SetValid()
	b.SetValid()

	require.NoError(t, a.gain.Set(3))

	assert.Equal(t, types.InvalidOutput, a.InvalidationLevel())
	assert.Equal(t, types.InvalidOutput, b.InvalidationLevel())
	assert.True(t, b.in.Changed())
}

func TestBase_PropertyChangeReachesHost(t *testing.T) {
	s := newStage(t, "A")
	host := &recordingHost{}
	Bind(s, host)

	require.NoError(t, s.gain.Set(2))
	require.NoError(t, s.gain.Set(2))
	assert.Equal(t, []string{"A.gain"}, host.propertyChanges)
}

func TestBase_SetIdentifier(t *testing.T) {
	s := newStage(t, "A")
	host := &recordingHost{}
	Bind(s, host)

	var old string
	s.Observe(func(e Event) {
		if e.Kind == EventIdentifierChanged {
			old = e.OldIdentifier
		}
	})

	require.NoError(t, s.SetIdentifier("Renamed"))
	assert.Equal(t, "Renamed", s.Identifier())
	assert.Equal(t, "A", old)
	assert.Equal(t, [][2]string{{"A", "Renamed"}}, host.renames)
	assert.Equal(t, []string{"Renamed", "gain"}, s.gain.Path())

	host.rejectRename = vferrors.ErrDuplicateIdentifier
	assert.ErrorIs(t, s.SetIdentifier("Taken"), vferrors.ErrDuplicateIdentifier)
	assert.Equal(t, "Renamed", s.Identifier())

	assert.Error(t, s.SetIdentifier(""))
}

func TestRun(t *testing.T) {
	src := newStage(t, "A")
	sink := newStage(t, "B")
	port.Connect(src.out, sink.in)

	ctx := context.Background()
	require.NoError(t, Run(ctx, src))
	assert.Equal(t, 1, src.inits)
	assert.Equal(t, types.Valid, src.InvalidationLevel())
	assert.True(t, sink.IsReady())

	require.NoError(t, Run(ctx, sink))
	v, ok := sink.out.Data().Value.(int)
	require.True(t, ok)
	assert.Equal(t, 0, v)

	// Output-only invalidation skips resource initialization.
	src.Invalidate(types.InvalidOutput)
	require.NoError(t, Run(ctx, src))
	assert.Equal(t, 1, src.inits)
	assert.Equal(t, 2, src.runs)
}

func TestRun_FailureKeepsLevel(t *testing.T) {
	s := newStage(t, "A")
	s.failWith = vferrors.NewProcessorError("A", errors.New("no data"))

	err := Run(context.Background(), s)
	require.Error(t, err)
	_, ok := vferrors.AsProcessorError(err)
	assert.True(t, ok)
	assert.Equal(t, types.InvalidResources, s.InvalidationLevel())
	assert.False(t, s.IsProcessing())
}

func TestRun_PanicIsFatal(t *testing.T) {
	s := newStage(t, "A")
	s.panicMsg = "index out of range"

	err := Run(context.Background(), s)
	require.Error(t, err)
	assert.True(t, vferrors.IsFatal(err))
	assert.ErrorIs(t, err, vferrors.ErrProcessFailed)
}

func TestRun_SelfInvalidationDoesNotReachHost(t *testing.T) {
	s := &selfTouching{}
	s.Init(s, Info{ClassIdentifier: "test.SelfTouching"})
	s.count = property.NewInt("count", "", 0, 0, 100, property.WithReadOnly())
	require.NoError(t, s.AddProperty(s.count))
	s.SetValid()

	host := &recordingHost{}
	Bind(s, host)
	s.Invalidate(types.InvalidOutput)
	host.begins, host.ends = 0, 0

	require.NoError(t, Run(context.Background(), s))
	assert.Equal(t, 1, s.count.Get())
	assert.Equal(t, types.Valid, s.InvalidationLevel())
	assert.Equal(t, 0, host.begins)
	assert.Equal(t, []string{"begin " + s.Identifier(), "end " + s.Identifier()}, host.processing)
}

func TestRun_TellsHostEvenOnPanic(t *testing.T) {
	s := newStage(t, "A")
	s.panicMsg = "boom"
	host := &recordingHost{}
	Bind(s, host)

	require.Error(t, Run(context.Background(), s))
	assert.Equal(t, []string{"begin A", "end A"}, host.processing)
}

type selfTouching struct {
	Base
	count *property.Int
}

func (s *selfTouching) Process(context.Context) error {
	return s.count.Set(s.count.Get() + 1)
}

func TestDestroy(t *testing.T) {
	s := newStage(t, "A")
	Bind(s, &recordingHost{})

	fired := false
	sub := s.Observe(func(Event) { fired = true })
	propSub := s.gain.Observe(func(property.Property) { fired = true })

	Destroy(s)
	assert.True(t, s.deinit)
	assert.Nil(t, s.Host())
	assert.False(t, sub.Active())
	assert.False(t, propSub.Active())

	s.Invalidate(types.InvalidResources)
	require.NoError(t, s.gain.Set(5))
	assert.False(t, fired)
}
