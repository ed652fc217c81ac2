package processor

import (
	"context"
	"fmt"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/property"
	"github.com/c360/vizflow/types"
)

// Run executes one evaluation step of p: resources are rebuilt first when
// the level is InvalidResources, then Process computes outputs. On success
// the processor becomes Valid. Invalidation raised by p while it runs does
// not reach the host, so a processor cannot request its own re-run. The
// host is told when processing starts and ends, so it can hold back requests
// raised by downstream processors as well.
func Run(ctx context.Context, p Processor) (err error) {
	b := p.base()
	host := b.host
	b.processing = true
	if host != nil {
		host.OnProcessBegin(p)
	}
	defer func() {
		b.processing = false
		if host != nil {
			host.OnProcessEnd(p)
		}
		if r := recover(); r != nil {
			err = errors.WrapFatal(fmt.Errorf("%w: panic: %v", errors.ErrProcessFailed, r),
				"Processor", "Run", fmt.Sprintf("process %s", b.identifier))
		}
	}()

	if b.level >= types.InvalidResources {
		if ri, ok := p.(ResourceInitializer); ok {
			if err := ri.InitializeResources(ctx); err != nil {
				return err
			}
		}
	}
	if err := p.Process(ctx); err != nil {
		return err
	}

	p.SetValid()
	b.events.Notify(Event{Kind: EventProcessed, Processor: p})
	return nil
}

// Bind attaches p to a network. Passing nil detaches it.
func Bind(p Processor, host Host) {
	p.base().host = host
}

// Destroy releases p after the network removed it: Deinitialize runs and
// every processor and property observer is dropped.
func Destroy(p Processor) {
	b := p.base()
	b.host = nil
	if d, ok := p.(Deinitializer); ok {
		d.Deinitialize()
	}
	b.properties.Close()
	b.events.Close()
}

// OwnerOfPort returns the processor that declared pt.
func OwnerOfPort(pt port.Port) (Processor, bool) {
	if pt == nil {
		return nil, false
	}
	p, ok := pt.Owner().(Processor)
	return p, ok
}

// OwnerOfProperty returns the processor that holds prop, directly or
// through composite properties.
func OwnerOfProperty(prop property.Property) (Processor, bool) {
	if prop == nil {
		return nil, false
	}
	p, ok := property.RootOwner(prop).(Processor)
	return p, ok
}

// Find resolves a property path below p. The path does not include the
// processor identifier.
func Find(p Processor, path []string) (property.Property, bool) {
	return p.Properties().Find(path)
}
