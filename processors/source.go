package processors

import (
	"context"
	"log/slog"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
)

// IntSource publishes the value of its "value" property.
type IntSource struct {
	processor.Base
	Out   *port.Outport
	Value *property.Int
}

// NewIntSource creates an IntSource.
func NewIntSource(processor.Dependencies) (*IntSource, error) {
	p := &IntSource{
		Out:   port.NewOutport("outport", TypeInt, "Current value"),
		Value: property.NewInt("value", "Value", 0, -1_000_000, 1_000_000, property.WithAutoLink()),
	}
	p.Init(p, processor.Info{ClassIdentifier: ClassIntSource, DisplayName: "Int Source", Category: "source"})
	if err := errors.Join(p.AddOutport(p.Out), p.AddProperty(p.Value)); err != nil {
		return nil, err
	}
	return p, nil
}

// Process publishes the current value.
func (p *IntSource) Process(context.Context) error {
	p.Out.Publish(p.Value.Get())
	return nil
}

// FloatSource publishes the value of its "value" property.
type FloatSource struct {
	processor.Base
	Out   *port.Outport
	Value *property.Float
	Scale *property.Float

	logger *slog.Logger
}

// NewFloatSource creates a FloatSource. The published value is value * scale.
func NewFloatSource(deps processor.Dependencies) (*FloatSource, error) {
	p := &FloatSource{
		Out:    port.NewOutport("outport", TypeFloat, "Current value"),
		Value:  property.NewFloat("value", "Value", 0, -1e6, 1e6, property.WithAutoLink()),
		Scale:  property.NewFloat("scale", "Scale", 1, 0, 1000),
		logger: deps.GetLoggerWithComponent("float-source"),
	}
	p.Init(p, processor.Info{ClassIdentifier: ClassFloatSource, DisplayName: "Float Source", Category: "source"})
	if err := errors.Join(p.AddOutport(p.Out), p.AddProperties(p.Value, p.Scale)); err != nil {
		return nil, err
	}
	return p, nil
}

// Process publishes value * scale.
func (p *FloatSource) Process(context.Context) error {
	v := p.Value.Get() * p.Scale.Get()
	p.Out.Publish(v)
	p.logger.Debug("Published", "processor", p.Identifier(), "value", v)
	return nil
}
