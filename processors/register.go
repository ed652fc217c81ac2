package processors

import (
	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/registry"
)

// Class identifiers of the built-in processors.
const (
	ClassIntSource   = "org.vizflow.IntSource"
	ClassFloatSource = "org.vizflow.FloatSource"
	ClassIntOffset   = "org.vizflow.IntOffset"
	ClassIntSum      = "org.vizflow.IntSum"
	ClassSink        = "org.vizflow.Sink"
	ClassAsyncSquare = "org.vizflow.AsyncSquare"
)

// Data types of the built-in ports.
const (
	TypeInt   = "int"
	TypeFloat = "float"
)

// Register adds the built-in processor classes and property classes to reg.
func Register(reg *registry.Registry) error {
	registrations := []*registry.Registration{
		{
			ClassIdentifier: ClassIntSource,
			DisplayName:     "Int Source",
			Category:        "source",
			Description:     "Publishes the value of its value property",
			Version:         "1.0.0",
			Factory:         factory(NewIntSource),
		},
		{
			ClassIdentifier: ClassFloatSource,
			DisplayName:     "Float Source",
			Category:        "source",
			Description:     "Publishes the value of its value property",
			Version:         "1.0.0",
			Factory:         factory(NewFloatSource),
		},
		{
			ClassIdentifier: ClassIntOffset,
			DisplayName:     "Int Offset",
			Category:        "math",
			Description:     "Adds its offset property to the input",
			Version:         "1.0.0",
			Factory:         factory(NewIntOffset),
		},
		{
			ClassIdentifier: ClassIntSum,
			DisplayName:     "Int Sum",
			Category:        "math",
			Description:     "Sums every connected input",
			Version:         "1.0.0",
			Factory:         factory(NewIntSum),
		},
		{
			ClassIdentifier: ClassSink,
			DisplayName:     "Sink",
			Category:        "output",
			Description:     "Records the last received value",
			Version:         "1.0.0",
			Factory:         factory(NewSink),
		},
		{
			ClassIdentifier: ClassAsyncSquare,
			DisplayName:     "Async Square",
			Category:        "math",
			Description:     "Squares the input on the worker pool",
			Tags:            []string{"async"},
			Version:         "1.0.0",
			Factory:         factory(NewAsyncSquare),
		},
	}

	for _, r := range registrations {
		if err := reg.RegisterFactory(r); err != nil {
			return errors.Wrap(err, "processors", "Register", "register "+r.ClassIdentifier)
		}
	}
	return reg.RegisterBuiltinProperties()
}

// factory adapts a typed constructor to registry.Factory.
func factory[P processor.Processor](ctor func(processor.Dependencies) (P, error)) registry.Factory {
	return func(deps processor.Dependencies) (processor.Processor, error) {
		p, err := ctor(deps)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
