package processors

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
	"github.com/c360/vizflow/types"
)

// AsyncSquare squares its input on the worker pool. Process submits the job
// and clears the outport; the job hands its result back through the
// dispatcher, which invalidates the processor so that the next pass
// publishes it. Without a pool or dispatcher the square is computed inline.
type AsyncSquare struct {
	processor.Base
	In      *port.Inport
	Out     *port.Outport
	Pending *property.Bool

	deps    processor.Dependencies
	logger  *slog.Logger
	pending *port.Data
	result  *squareResult
}

type squareResult struct {
	input *port.Data
	value int
}

// NewAsyncSquare creates an AsyncSquare.
func NewAsyncSquare(deps processor.Dependencies) (*AsyncSquare, error) {
	p := &AsyncSquare{
		In:      port.NewInport("inport", TypeInt, "Value to square"),
		Out:     port.NewOutport("outport", TypeInt, "Squared value"),
		Pending: property.NewBool("pending", "Pending", false, property.WithReadOnly(), property.WithTransient()),
		deps:    deps,
		logger:  deps.GetLoggerWithComponent("async-square"),
	}
	p.Init(p, processor.Info{ClassIdentifier: ClassAsyncSquare, DisplayName: "Async Square", Category: "math", Tags: []string{"async"}})
	if err := errors.Join(p.AddInport(p.In), p.AddOutport(p.Out), p.AddProperty(p.Pending)); err != nil {
		return nil, err
	}
	return p, nil
}

// Process publishes a finished result or starts the job for the current input.
func (p *AsyncSquare) Process(context.Context) error {
	d := p.In.Data()
	v, ok := port.Value[int](p.In)
	if !ok {
		return errors.NewProcessorError(p.Identifier(), fmt.Errorf("%w: inport expects int", errors.ErrInvalidData))
	}

	if p.deps.Workers == nil || p.deps.Dispatcher == nil {
		p.Out.Publish(v * v)
		return nil
	}
	if p.result != nil && p.result.input == d {
		p.Out.Publish(p.result.value)
		p.Pending.Set(false)
		return nil
	}

	p.Out.Clear()
	if p.pending == d {
		return nil
	}
	p.pending = d
	p.Pending.Set(true)

	dispatcher := p.deps.Dispatcher
	err := p.deps.Workers.Submit(func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		square := v * v
		return dispatcher.Dispatch(func() {
			p.result = &squareResult{input: d, value: square}
			p.Invalidate(types.InvalidOutput)
		})
	})
	if err != nil {
		p.pending = nil
		p.Pending.Set(false)
		return errors.NewProcessorError(p.Identifier(), err)
	}
	p.logger.Debug("Square job submitted", "processor", p.Identifier(), "input", v)
	return nil
}
