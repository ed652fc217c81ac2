package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
)

// Sink formats whatever it receives into its read-only "last" property.
type Sink struct {
	processor.Base
	In     *port.Inport
	Format *property.OptionProperty
	Last   *property.String

	received int
	logger   *slog.Logger
}

// NewSink creates a Sink.
func NewSink(deps processor.Dependencies) (*Sink, error) {
	p := &Sink{
		In: port.NewInport("inport", port.AnyType, "Any data"),
		Format: property.NewOption("format", "Format", []property.Choice{
			{Identifier: "plain", DisplayName: "Plain"},
			{Identifier: "json", DisplayName: "JSON"},
		}, "plain"),
		Last:   property.NewString("last", "Last value", "", property.WithReadOnly(), property.WithTransient()),
		logger: deps.GetLoggerWithComponent("sink"),
	}
	p.Init(p, processor.Info{ClassIdentifier: ClassSink, DisplayName: "Sink", Category: "output"})
	if err := errors.Join(p.AddInport(p.In), p.AddProperties(p.Format, p.Last)); err != nil {
		return nil, err
	}
	return p, nil
}

// Received returns how many values the sink processed.
func (p *Sink) Received() int { return p.received }

// Process records the input.
func (p *Sink) Process(context.Context) error {
	d := p.In.Data()
	if d == nil {
		return errors.NewProcessorError(p.Identifier(), errors.ErrNotReady)
	}

	var text string
	switch p.Format.Selected() {
	case "json":
		b, err := json.Marshal(d.Value)
		if err != nil {
			return errors.NewProcessorError(p.Identifier(), err)
		}
		text = string(b)
	default:
		text = fmt.Sprint(d.Value)
	}

	p.received++
	p.Last.Set(text)
	p.logger.Debug("Sink received value", "processor", p.Identifier(), "type", d.Type, "value", text)
	return nil
}

// NotReady clears the recorded value when the input has nothing to offer.
func (p *Sink) NotReady() {
	p.Last.Set("")
}
