package processors

import (
	"context"
	"fmt"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
)

// IntOffset adds its "offset" property to the input.
type IntOffset struct {
	processor.Base
	In     *port.Inport
	Out    *port.Outport
	Offset *property.Int
}

// NewIntOffset creates an IntOffset.
func NewIntOffset(processor.Dependencies) (*IntOffset, error) {
	p := &IntOffset{
		In:     port.NewInport("inport", TypeInt, "Input value"),
		Out:    port.NewOutport("outport", TypeInt, "Input plus offset"),
		Offset: property.NewInt("offset", "Offset", 0, -1_000_000, 1_000_000),
	}
	p.Init(p, processor.Info{ClassIdentifier: ClassIntOffset, DisplayName: "Int Offset", Category: "math"})
	if err := errors.Join(p.AddInport(p.In), p.AddOutport(p.Out), p.AddProperty(p.Offset)); err != nil {
		return nil, err
	}
	return p, nil
}

// Process publishes input + offset.
func (p *IntOffset) Process(context.Context) error {
	v, ok := port.Value[int](p.In)
	if !ok {
		return errors.NewProcessorError(p.Identifier(), fmt.Errorf("%w: inport expects int", errors.ErrInvalidData))
	}
	p.Out.Publish(v + p.Offset.Get())
	return nil
}

// IntSum sums every outport connected to its multi inport. The number of
// summed inputs is reported in the read-only "count" property.
type IntSum struct {
	processor.Base
	In    *port.Inport
	Out   *port.Outport
	Count *property.Int
}

// NewIntSum creates an IntSum.
func NewIntSum(processor.Dependencies) (*IntSum, error) {
	p := &IntSum{
		In:    port.NewInport("inport", TypeInt, "Values to sum", port.Multi()),
		Out:   port.NewOutport("outport", TypeInt, "Sum"),
		Count: property.NewInt("count", "Inputs", 0, 0, 1<<16, property.WithReadOnly(), property.WithTransient()),
	}
	p.Init(p, processor.Info{ClassIdentifier: ClassIntSum, DisplayName: "Int Sum", Category: "math"})
	if err := errors.Join(p.AddInport(p.In), p.AddOutport(p.Out), p.AddProperty(p.Count)); err != nil {
		return nil, err
	}
	return p, nil
}

// Process publishes the sum of all inputs.
func (p *IntSum) Process(context.Context) error {
	values := port.Values[int](p.In)
	sum := 0
	for _, v := range values {
		sum += v
	}
	p.Out.Publish(sum)
	return p.Count.Set(len(values))
}
